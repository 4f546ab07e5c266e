// Package cfg holds the per-function control-flow graph the Usecode code
// generator builds: instructions, basic blocks kept in an arena and
// addressed by BlockID, the optimizer passes that shrink the graph to a
// fixed point, and the resolver that picks jump widths and linearizes the
// surviving blocks into bytecode.
package cfg

import (
	"encoding/binary"

	"github.com/tos-network/ucc/uc/opcode"
)

// Instr is one opcode plus its fixed operand bytes. For jumps the
// displacement is not part of Params; it is computed at layout time and its
// width is selected by Wide.
type Instr struct {
	Op     opcode.Op
	Params []byte
	Wide   bool
}

// IsJump reports whether the instruction carries a branch displacement.
func (in *Instr) IsJump() bool { return in.Op.IsJump() }

// Size is the encoded size, including the displacement of a jump.
func (in *Instr) Size() int {
	n := 1 + len(in.Params)
	if in.IsJump() {
		if in.Wide {
			n += 4
		} else {
			n += 2
		}
	}
	return n
}

// RealOp is the opcode byte written to the code stream.
func (in *Instr) RealOp() byte {
	if in.Wide && in.IsJump() {
		return byte(in.Op | opcode.WideBit)
	}
	return byte(in.Op)
}

// AppendTo writes the opcode byte and operands, but not the displacement.
func (in *Instr) AppendTo(dst []byte) []byte {
	dst = append(dst, in.RealOp())
	return append(dst, in.Params...)
}

func (in *Instr) clone() Instr {
	out := *in
	out.Params = append([]byte(nil), in.Params...)
	return out
}

// U8 encodes a one-byte operand.
func U8(v int) []byte { return []byte{byte(v)} }

// U16 encodes a little-endian two-byte operand. Negative values wrap, which
// is how global static slots are addressed.
func U16(v int) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(v))
	return b[:]
}

// U32 encodes a little-endian four-byte operand.
func U32(v int) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

// Fits16 reports whether v can be stored in a 16-bit operand, read either
// as signed or unsigned.
func Fits16(v int) bool {
	high := int32(v) >> 16
	return int64(v) == int64(int32(v)) && (high == 0 || high == -1)
}

// FitsSigned16 reports whether v fits a signed 16-bit displacement.
func FitsSigned16(v int) bool {
	return v >= -0x8000 && v <= 0x7fff
}

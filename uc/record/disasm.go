package record

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/nikandfor/errors"

	"github.com/tos-network/ucc/uc/opcode"
)

// Instruction is one decoded instruction of a code stream.
type Instruction struct {
	Offset int
	Op     opcode.Op
	Wide   bool // 32-bit jump displacement
	Params []byte
	Disp   int
	Target int // jump destination, -1 for other instructions
	Size   int
}

func (in Instruction) String() string {
	var sb strings.Builder
	name := in.Op.String()
	if in.Wide {
		name += "32"
	}
	fmt.Fprintf(&sb, "%04x: %-12s", in.Offset, name)
	for _, p := range in.Params {
		fmt.Fprintf(&sb, " %02x", p)
	}
	if in.Target >= 0 {
		fmt.Fprintf(&sb, " -> %04x", in.Target)
	}
	return strings.TrimRight(sb.String(), " ")
}

// DecodeCode splits a code stream into instructions.
func DecodeCode(code []byte) ([]Instruction, error) {
	var out []Instruction
	for pc := 0; pc < len(code); {
		op, wide := opcode.Split(code[pc])
		if !op.Known() {
			return out, errors.New("unknown opcode %#02x at %04x", code[pc], pc)
		}
		in := Instruction{Offset: pc, Op: op, Wide: wide, Target: -1}
		n := 1 + op.ParamSize()
		if pc+n > len(code) {
			return out, errors.New("%v at %04x: truncated operands", op, pc)
		}
		in.Params = code[pc+1 : pc+n]
		if op.IsJump() {
			dw := 2
			if wide {
				dw = 4
			}
			if pc+n+dw > len(code) {
				return out, errors.New("%v at %04x: truncated displacement", op, pc)
			}
			if wide {
				in.Disp = int(int32(binary.LittleEndian.Uint32(code[pc+n:])))
			} else {
				in.Disp = int(int16(binary.LittleEndian.Uint16(code[pc+n:])))
			}
			n += dw
			in.Target = pc + n + in.Disp
		}
		in.Size = n
		out = append(out, in)
		pc += n
	}
	return out, nil
}

// Disasm writes one line per instruction. String operands are annotated
// from text when it is not nil.
func Disasm(w io.Writer, code []byte, text map[int]string) error {
	ins, err := DecodeCode(code)
	for _, in := range ins {
		line := in.String()
		if s, ok := stringOperand(in, text); ok {
			line += fmt.Sprintf("\t; %q", s)
		}
		if _, werr := fmt.Fprintln(w, line); werr != nil {
			return errors.Wrap(werr, "write")
		}
	}
	return err
}

func stringOperand(in Instruction, text map[int]string) (string, bool) {
	if text == nil {
		return "", false
	}
	var off int
	switch in.Op {
	case opcode.PushS, opcode.AddSI:
		off = int(binary.LittleEndian.Uint16(in.Params))
	case opcode.PushS32, opcode.AddSI32:
		off = int(binary.LittleEndian.Uint32(in.Params))
	default:
		return "", false
	}
	s, ok := text[off]
	return s, ok
}

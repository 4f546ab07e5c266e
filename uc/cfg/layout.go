package cfg

import (
	"github.com/nikandfor/errors"

	"github.com/tos-network/ucc/uc/opcode"
)

// AssignIndices numbers blocks in their final order and records the numbers
// on every edge into them.
func AssignIndices(blocks []*Block) {
	for i, b := range blocks {
		b.SetIndex(i)
		b.LinkPredecessors()
	}
}

// Offsets returns the byte offset of each block and the total code size
// under the current jump widths.
func Offsets(blocks []*Block) ([]int, int) {
	locs := make([]int, len(blocks))
	pos := 0
	for i, b := range blocks {
		locs[i] = pos
		pos += b.Size()
	}
	return locs, pos
}

// jumpTarget is the block index a branching block's displacement refers to:
// taken for JMP, the alternate successor for every conditional form.
func jumpTarget(b *Block) int {
	if b.IsJumpBlock() {
		return b.takenIndex
	}
	return b.ntakenIndex
}

// Distance is b's displacement, measured from the end of the block.
func Distance(b *Block, locs []int) (int, error) {
	dest := jumpTarget(b)
	if dest < 0 || dest >= len(locs) || b.index < 0 || b.index >= len(locs) {
		return 0, errors.New("block %d: %v branches to unplaced block", b.id, b.Op())
	}
	return locs[dest] - (locs[b.index] + b.Size()), nil
}

// ResolveJumps widens every jump whose displacement does not fit 16 bits and
// repeats with the grown layout until a pass widens nothing. Jumps are never
// narrowed, so each pass either widens at least one more jump or is the
// last one. It returns the number of passes.
func ResolveJumps(blocks []*Block) (int, error) {
	limit := len(blocks) + 2
	for pass := 1; pass <= limit; pass++ {
		locs, _ := Offsets(blocks)
		widened := 0
		for _, b := range blocks {
			if b.DoesNotJump() || b.IsWideJump() || !b.jump.IsJump() {
				continue
			}
			dist, err := Distance(b, locs)
			if err != nil {
				return pass, err
			}
			if !FitsSigned16(dist) {
				b.SetWideJump()
				widened++
			}
		}
		if widened == 0 {
			return pass, nil
		}
	}
	return limit, errors.New("jump widths did not settle after %d passes", limit)
}

// Layout is the linear form of an optimized block list.
type Layout struct {
	Code    []byte
	Offsets []int
	Passes  int  // jump resolution passes
	Implied bool // an implicit return was appended
}

// Linearize indexes blocks, resolves jump widths and writes the code. When
// the last block does not end the function itself an implicit RETZ (returns
// set) or RET is appended.
func Linearize(blocks []*Block, returns bool) (*Layout, error) {
	l := &Layout{}
	if len(blocks) > 0 {
		AssignIndices(blocks)
		passes, err := ResolveJumps(blocks)
		if err != nil {
			return nil, err
		}
		l.Passes = passes

		locs, size := Offsets(blocks)
		l.Offsets = locs
		code := make([]byte, 0, size+1)
		for _, b := range blocks {
			for i := range b.code {
				code = b.code[i].AppendTo(code)
			}
			if b.jump == nil || !b.jump.IsJump() {
				continue
			}
			dist, err := Distance(b, locs)
			if err != nil {
				return nil, err
			}
			code = b.jump.AppendTo(code)
			if b.jump.Wide {
				code = append(code, U32(dist)...)
			} else {
				code = append(code, U16(dist)...)
			}
		}
		l.Code = code
	}

	if !endsFunction(blocks) {
		l.Implied = true
		if returns {
			l.Code = append(l.Code, byte(opcode.RetZ))
		} else {
			l.Code = append(l.Code, byte(opcode.Ret))
		}
	}
	return l, nil
}

func endsFunction(blocks []*Block) bool {
	if len(blocks) == 0 {
		return false
	}
	last := blocks[len(blocks)-1]
	return last.DoesNotJump() && (last.EndsInReturn() || last.EndsInAbort())
}

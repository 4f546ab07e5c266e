package cfg

import (
	"github.com/tos-network/ucc/uc/opcode"
)

// BlockID addresses a block in its graph's arena.
type BlockID int

// NoBlock is the absent successor.
const NoBlock BlockID = -1

// Graph owns every block allocated while translating one function. Blocks
// refer to each other by BlockID; the edge helpers on Block keep successor
// references and predecessor sets in agreement.
type Graph struct {
	arena []*Block
	Entry *Block
	Exit  *Block
}

// NewGraph returns a graph holding only the entry and exit sentinels. Both
// sentinels have index -1 and a terminal that is neither a jump nor a
// fall-through, so no optimization ever splices or merges them.
func NewGraph() *Graph {
	g := &Graph{}
	g.Entry = g.alloc(-1)
	g.Entry.jump = &Instr{Op: opcode.Invalid}
	g.Exit = g.alloc(-1)
	g.Exit.jump = &Instr{Op: opcode.Invalid}
	return g
}

func (g *Graph) alloc(index int) *Block {
	b := &Block{
		g:           g,
		id:          BlockID(len(g.arena)),
		index:       index,
		taken:       NoBlock,
		ntaken:      NoBlock,
		takenIndex:  -1,
		ntakenIndex: -1,
	}
	g.arena = append(g.arena, b)
	return b
}

// NewBlock allocates an ordinary, unlinked block.
func (g *Graph) NewBlock() *Block { return g.alloc(0) }

// Block resolves id; it returns nil for NoBlock and for freed blocks.
func (g *Graph) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(g.arena) {
		return nil
	}
	return g.arena[id]
}

// Free unlinks b in both directions and releases its arena slot.
func (g *Graph) Free(b *Block) {
	if b == nil || g.Block(b.id) != b {
		return
	}
	b.UnlinkDescendants()
	b.UnlinkPredecessors()
	g.arena[b.id] = nil
}

// Live counts blocks that have not been freed, sentinels included.
func (g *Graph) Live() int {
	n := 0
	for _, b := range g.arena {
		if b != nil {
			n++
		}
	}
	return n
}

// Block is a straight-line run of instructions with an optional terminal
// branch. Without a terminal the block falls through to taken.
type Block struct {
	g  *Graph
	id BlockID

	index       int
	taken       BlockID
	ntaken      BlockID
	takenIndex  int
	ntakenIndex int

	jump      *Instr
	code      []Instr
	preds     []BlockID
	reachable bool
}

func (b *Block) ID() BlockID   { return b.id }
func (b *Block) Index() int    { return b.index }
func (b *Block) SetIndex(i int) { b.index = i }
func (b *Block) Graph() *Graph { return b.g }

func (b *Block) Taken() *Block  { return b.g.Block(b.taken) }
func (b *Block) NTaken() *Block { return b.g.Block(b.ntaken) }

// TakenIndex and NTakenIndex are valid after LinkPredecessors ran on the
// successors.
func (b *Block) TakenIndex() int  { return b.takenIndex }
func (b *Block) NTakenIndex() int { return b.ntakenIndex }

// Jump is the terminal branch, or nil for a fall-through block.
func (b *Block) Jump() *Instr { return b.jump }

// Op is the terminal's opcode, opcode.Invalid without one.
func (b *Block) Op() opcode.Op {
	if b.jump == nil {
		return opcode.Invalid
	}
	return b.jump.Op
}

// Code returns the block's instructions, terminal excluded.
func (b *Block) Code() []Instr { return b.code }

// Emit appends an instruction.
func (b *Block) Emit(op opcode.Op, params ...byte) {
	in := Instr{Op: op}
	if len(params) > 0 {
		in.Params = append(make([]byte, 0, len(params)), params...)
	}
	b.code = append(b.code, in)
}

// PopInstr drops the last instruction, if any.
func (b *Block) PopInstr() {
	if len(b.code) > 0 {
		b.code = b.code[:len(b.code)-1]
	}
}

// LastOp is the opcode of the last instruction, opcode.Invalid when empty.
func (b *Block) LastOp() opcode.Op {
	if len(b.code) == 0 {
		return opcode.Invalid
	}
	return b.code[len(b.code)-1].Op
}

// JumpParam appends operand bytes to the terminal branch.
func (b *Block) JumpParam(params ...byte) {
	if b.jump == nil {
		return
	}
	b.jump.Params = append(b.jump.Params, params...)
}

// ClearJump turns the block into a fall-through to taken.
func (b *Block) ClearJump() { b.jump = nil }

func (b *Block) SetWideJump() {
	if b.jump != nil && b.jump.IsJump() {
		b.jump.Wide = true
	}
}

func (b *Block) IsWideJump() bool { return b.jump != nil && b.jump.Wide }

func (b *Block) DoesNotJump() bool { return b.jump == nil }

func (b *Block) JumpSize() int {
	if b.jump == nil {
		return 0
	}
	return b.jump.Size()
}

// Size is the encoded size of the block, terminal included.
func (b *Block) Size() int {
	n := b.JumpSize()
	for i := range b.code {
		n += b.code[i].Size()
	}
	return n
}

func (b *Block) EndsInReturn() bool { return b.LastOp().IsReturn() }
func (b *Block) EndsInAbort() bool  { return b.LastOp().IsAbort() }

// ReturnOp is the trailing return opcode, opcode.Invalid if the block does
// not end in one.
func (b *Block) ReturnOp() opcode.Op {
	if b.EndsInReturn() {
		return b.LastOp()
	}
	return opcode.Invalid
}

func (b *Block) IsJumpBlock() bool       { return b.Op() == opcode.Jmp }
func (b *Block) IsSimpleJumpBlock() bool { return b.IsJumpBlock() && len(b.code) == 0 }
func (b *Block) IsConditionalJump() bool { return b.Op() == opcode.Jne }

func (b *Block) IsArrayLoopBlock() bool {
	switch b.Op() {
	case opcode.LoopTop, opcode.LoopTopS, opcode.LoopTopTHV:
		return true
	}
	return false
}

func (b *Block) IsConverseCaseBlock() bool {
	op := b.Op()
	return op == opcode.Cmps || op == opcode.Default
}

func (b *Block) IsFallthrough() bool { return b.jump == nil && b.taken != NoBlock }
func (b *Block) IsEmpty() bool       { return b.jump == nil && len(b.code) == 0 }

// IsEndBlock reports a fall-through into a sentinel, which in practice is
// the function's exit.
func (b *Block) IsEndBlock() bool {
	if b.jump != nil {
		return false
	}
	t := b.Taken()
	return t != nil && t.index == -1
}

// IsForcedTarget reports whether every predecessor reaches b by a plain
// jump or fall-through, so b can be bypassed without changing any branch.
func (b *Block) IsForcedTarget() bool {
	for _, p := range b.Preds() {
		if !p.IsJumpBlock() && !p.IsFallthrough() {
			return false
		}
	}
	return true
}

func (b *Block) IsSimpleReturnBlock() bool {
	return len(b.code) == 1 && b.code[0].Op.IsReturn()
}

func (b *Block) IsSimpleAbortBlock() bool {
	return b.IsEndBlock() && len(b.code) == 1 && b.code[0].Op.IsAbort()
}

func (b *Block) IsChildless() bool { return b.taken == NoBlock && b.ntaken == NoBlock }
func (b *Block) NoParents() bool   { return len(b.preds) == 0 }

// IsOrphan reports an ordinary block nothing branches to.
func (b *Block) IsOrphan() bool { return b.index >= 0 && b.NoParents() }

func (b *Block) IsReachable() bool { return b.reachable }

func (b *Block) HasSinglePredecessor() bool { return len(b.preds) == 1 }
func (b *Block) PredecessorCount() int      { return len(b.preds) }

// Preds returns the predecessors in the order their edges were created.
func (b *Block) Preds() []*Block {
	out := make([]*Block, 0, len(b.preds))
	for _, id := range b.preds {
		if p := b.g.Block(id); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// MarkReachable flags every block reachable from b.
func (b *Block) MarkReachable() {
	stack := []*Block{b}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == nil || cur.reachable {
			continue
		}
		cur.reachable = true
		stack = append(stack, cur.NTaken(), cur.Taken())
	}
}

func (b *Block) addPred(p BlockID) {
	for _, id := range b.preds {
		if id == p {
			return
		}
	}
	b.preds = append(b.preds, p)
}

func (b *Block) dropPred(p BlockID) {
	for i, id := range b.preds {
		if id == p {
			b.preds = append(b.preds[:i], b.preds[i+1:]...)
			return
		}
	}
}

// retarget moves one outgoing edge and repairs both predecessor sets. The
// old target only loses b as a predecessor when no other edge of b still
// points at it.
func (b *Block) retarget(edge *BlockID, dest *Block) {
	old := b.g.Block(*edge)
	if dest == nil {
		*edge = NoBlock
	} else {
		*edge = dest.id
		dest.addPred(b.id)
	}
	if old != nil && old != dest && b.taken != old.id && b.ntaken != old.id {
		old.dropPred(b.id)
	}
}

func (b *Block) SetTaken(dest *Block)  { b.retarget(&b.taken, dest) }
func (b *Block) SetNTaken(dest *Block) { b.retarget(&b.ntaken, dest) }

// SetTargets replaces the terminal with op (none for opcode.Invalid) and
// both successors.
func (b *Block) SetTargets(op opcode.Op, taken, ntaken *Block) {
	b.jump = nil
	if op != opcode.Invalid {
		b.jump = &Instr{Op: op}
	}
	b.SetTaken(taken)
	b.SetNTaken(ntaken)
}

// UnlinkDescendants drops both outgoing edges.
func (b *Block) UnlinkDescendants() {
	b.SetTaken(nil)
	b.SetNTaken(nil)
}

// UnlinkPredecessors drops every edge pointing at b.
func (b *Block) UnlinkPredecessors() {
	for _, p := range b.Preds() {
		if p.taken == b.id {
			p.taken = NoBlock
			p.takenIndex = -1
		}
		if p.ntaken == b.id {
			p.ntaken = NoBlock
			p.ntakenIndex = -1
		}
	}
	b.preds = nil
}

// LinkPredecessors records b's final index in each predecessor's edge.
func (b *Block) LinkPredecessors() {
	for _, p := range b.Preds() {
		if p.taken == b.id {
			p.takenIndex = b.index
		}
		if p.ntaken == b.id {
			p.ntakenIndex = b.index
		}
	}
}

// LinkThrough redirects every predecessor edge past b to b's own
// successors, then detaches b. An alternate edge into b falls back to b's
// taken successor when b has no alternate of its own.
func (b *Block) LinkThrough() {
	taken, ntaken := b.Taken(), b.NTaken()
	if taken == b {
		taken = nil
	}
	if ntaken == b {
		ntaken = nil
	}
	for _, p := range b.Preds() {
		if p.taken == b.id {
			p.SetTaken(taken)
		}
		if p.ntaken == b.id {
			if ntaken != nil {
				p.SetNTaken(ntaken)
			} else {
				p.SetNTaken(taken)
			}
		}
	}
	b.preds = nil
	b.UnlinkDescendants()
}

// MergeTaken absorbs the taken successor: its instructions, terminal and
// successors move into b. The successor is left empty and childless for the
// caller to free.
func (b *Block) MergeTaken() {
	child := b.Taken()
	if child == nil {
		return
	}
	for i := range child.code {
		b.code = append(b.code, child.code[i].clone())
	}
	b.jump = child.jump
	t, n := child.Taken(), child.NTaken()
	child.code = nil
	child.jump = nil
	b.SetTaken(t)
	b.SetNTaken(n)
	child.UnlinkDescendants()
}

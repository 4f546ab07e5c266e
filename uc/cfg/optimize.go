package cfg

import "github.com/tos-network/ucc/uc/opcode"

// Stats summarizes one optimizer run.
type Stats struct {
	Rounds      int // alternations of OptimizeJumps and RemoveDeadBlocks
	JumpChanges int
	DeadRemoved int
}

// Prune is the cleanup that runs once between translation and the
// optimizer. It drops trailing blocks nothing branches to, splices out every
// empty block that has a successor, marks what the entry reaches and cuts
// the label blocks it does not reach loose so RemoveDeadBlocks deletes them.
func Prune(g *Graph, blocks []*Block, labels []*Block) []*Block {
	for len(blocks) > 0 && blocks[len(blocks)-1].NoParents() {
		g.Free(blocks[len(blocks)-1])
		blocks = blocks[:len(blocks)-1]
	}

	out := blocks[:0]
	for _, b := range blocks {
		if b.IsEmpty() && b.Taken() != nil {
			b.LinkThrough()
			g.Free(b)
			continue
		}
		out = append(out, b)
	}
	blocks = out

	g.Entry.MarkReachable()
	for _, l := range labels {
		if l == nil || g.Block(l.id) != l || l.reachable {
			continue
		}
		l.UnlinkDescendants()
		l.UnlinkPredecessors()
	}
	return blocks
}

// RemoveDeadBlocks deletes blocks that are unreachable or have no
// predecessors and splices out empty blocks every predecessor reaches
// unconditionally. A block left without a successor first gets a
// fall-through to the exit. Reachability is the marking Prune left behind.
// It repeats until a sweep removes nothing and returns the surviving blocks
// with the number removed.
func RemoveDeadBlocks(g *Graph, blocks []*Block) ([]*Block, int) {
	total := 0
	for {
		removed := 0
		out := blocks[:0]
		for _, b := range blocks {
			if b.Taken() == nil {
				b.SetTargets(opcode.Invalid, g.Exit, nil)
			}
			switch {
			case !b.reachable || b.NoParents():
				g.Free(b)
			case b.IsEmpty() && b.IsForcedTarget() && !b.IsEndBlock():
				b.LinkThrough()
				g.Free(b)
			default:
				out = append(out, b)
				continue
			}
			removed++
		}
		blocks = out
		total += removed
		if removed == 0 {
			return blocks, total
		}
	}
}

// OptimizeJumps scans adjacent block pairs and rewrites branches that the
// layout makes redundant. It repeats until a scan changes nothing and
// returns the surviving blocks with the number of changes. returns selects
// the implicit return used when a jump to an empty end block is inlined.
func OptimizeJumps(g *Graph, blocks []*Block, returns bool) ([]*Block, int) {
	total := 0
	for {
		changed := 0
		i := 0
		for i+1 < len(blocks) {
			b, next := blocks[i], blocks[i+1]
			aux := b.Taken()
			remove := false

			switch {
			case b.IsJumpBlock():
				if aux == next {
					b.ClearJump()
					changed++
					continue
				}
				if aux != nil && aux.IsSimpleJumpBlock() {
					if dest := jumpChainTarget(b, aux); dest != aux {
						b.SetTaken(dest)
						changed++
						continue
					}
				}
				if aux != nil && aux.IsEndBlock() {
					inlined := true
					switch {
					case aux.IsEmpty():
						if returns {
							b.Emit(opcode.RetZ)
						} else {
							b.Emit(opcode.Ret)
						}
					case aux.IsSimpleReturnBlock():
						b.Emit(aux.ReturnOp())
					case aux.IsSimpleAbortBlock():
						b.Emit(opcode.Abrt)
					default:
						inlined = false
					}
					if inlined {
						b.SetTargets(opcode.Invalid, aux.Taken(), nil)
						changed++
						continue
					}
				}

			case aux == next:
				switch {
				case b.IsFallthrough():
					if aux.HasSinglePredecessor() {
						b.MergeTaken()
						remove = true
					}
				case i+2 < len(blocks) &&
					b.IsConditionalJump() &&
					aux.IsSimpleJumpBlock() &&
					aux.HasSinglePredecessor() &&
					b.NTaken() == blocks[i+2]:
					invertCondition(b)
					ntaken := b.NTaken()
					b.SetNTaken(aux.Taken())
					b.SetTaken(ntaken)
					remove = true
				case b.IsConditionalJump() || b.IsConverseCaseBlock() || b.IsArrayLoopBlock():
					if naux := b.NTaken(); naux != nil && naux.IsSimpleJumpBlock() {
						if dest := jumpChainTarget(b, naux); dest != naux {
							b.SetNTaken(dest)
							changed++
							continue
						}
					}
				}

			case b.IsEndBlock() && next.IsEndBlock() &&
				b.EndsInReturn() && next.IsSimpleReturnBlock() &&
				b.ReturnOp() == next.ReturnOp():
				b.SetTaken(next)
				b.PopInstr()
				changed++
				continue
			}

			if remove {
				changed++
				g.Free(next)
				blocks = append(blocks[:i+1], blocks[i+2:]...)
				continue
			}
			i++
		}
		total += changed
		if changed == 0 {
			return blocks, total
		}
	}
}

// jumpChainTarget follows the bare jumps starting at aux and returns the
// first block that is not one. A chain that loops back on itself, or on
// from, is left alone: aux is returned unchanged.
func jumpChainTarget(from, aux *Block) *Block {
	seen := map[*Block]bool{from: true}
	cur := aux
	for cur.IsSimpleJumpBlock() {
		seen[cur] = true
		next := cur.Taken()
		if next == nil || seen[next] {
			return aux
		}
		cur = next
	}
	return cur
}

// invertCondition makes the value tested by b's conditional branch its own
// negation: a trailing comparison is swapped for its opposite, a trailing
// NOT is dropped and anything else gets a NOT appended.
func invertCondition(b *Block) {
	last := b.LastOp()
	if last == opcode.Not {
		b.PopInstr()
		return
	}
	if neg, ok := last.Negate(); ok {
		b.PopInstr()
		b.Emit(neg)
		return
	}
	b.Emit(opcode.Not)
}

// Optimize runs a dead-block sweep and then alternates OptimizeJumps and
// RemoveDeadBlocks until neither changes the graph.
func Optimize(g *Graph, blocks []*Block, returns bool) ([]*Block, Stats) {
	var st Stats
	blocks, st.DeadRemoved = RemoveDeadBlocks(g, blocks)
	for {
		var jumps, dead int
		blocks, jumps = OptimizeJumps(g, blocks, returns)
		blocks, dead = RemoveDeadBlocks(g, blocks)
		st.Rounds++
		st.JumpChanges += jumps
		st.DeadRemoved += dead
		if jumps == 0 && dead == 0 {
			return blocks, st
		}
	}
}

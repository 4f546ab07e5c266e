package codegen

import "github.com/tos-network/ucc/uc/cfg"

// frame is one entry of the break/continue stack. Start is where continue
// goes, Exit where break goes. Switch arms push an unnamed frame that
// inherits the enclosing Start. Left is set once a break has jumped out
// of the frame, directly or from a frame nested inside it.
type frame struct {
	Start *cfg.Block
	Exit  *cfg.Block
	Name  string
	Left  *bool
}

type loopStack []frame

func (s *loopStack) push(start, exit *cfg.Block, name string) {
	*s = append(*s, frame{Start: start, Exit: exit, Name: name, Left: new(bool)})
}

// leave marks the frame at index i and every frame inside it as left.
func (s loopStack) leave(i int) {
	for ; i >= 0 && i < len(s); i++ {
		*s[i].Left = true
	}
}

func (s *loopStack) pop() {
	*s = (*s)[:len(*s)-1]
}

// top is the innermost frame; ok is false on an empty stack.
func (s loopStack) top() (frame, bool) {
	if len(s) == 0 {
		return frame{}, false
	}
	return s[len(s)-1], true
}

type findKind int

const (
	foundNamed findKind = iota
	foundInnermost
	notFound
)

type findResult struct {
	Kind  findKind
	Frame frame
	Index int
}

// find resolves a break or continue target. An empty name selects the
// innermost frame. A name nothing matches yields notFound with the innermost
// frame, if any, as the fallback.
func (s loopStack) find(name string) (findResult, bool) {
	if name == "" {
		fr, ok := s.top()
		return findResult{Kind: foundInnermost, Frame: fr, Index: len(s) - 1}, ok
	}
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Name == name {
			return findResult{Kind: foundNamed, Frame: s[i], Index: i}, true
		}
	}
	fr, ok := s.top()
	return findResult{Kind: notFound, Frame: fr, Index: len(s) - 1}, ok
}

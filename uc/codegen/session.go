// Package codegen turns resolved function bodies into Usecode function
// records: statements become a block graph, the graph is optimized and laid
// out, and the result is serialized with its text pool and link table.
package codegen

import (
	"fmt"

	"github.com/tos-network/ucc/uc/ast"
	"github.com/tos-network/ucc/uc/cfg"
	"github.com/tos-network/ucc/uc/diag"
)

// Intrinsics are the engine function numbers the conversation statements
// call.
type Intrinsics struct {
	AddAnswer    int `json:"add_answer"`
	RemoveAnswer int `json:"remove_answer"`
	PushAnswers  int `json:"push_answers"`
	PopAnswers   int `json:"pop_answers"`
}

// DefaultIntrinsics returns the numbers shared by both game tables.
func DefaultIntrinsics() Intrinsics {
	return Intrinsics{
		AddAnswer:    0x05,
		RemoveAnswer: 0x06,
		PushAnswers:  0x07,
		PopAnswers:   0x08,
	}
}

// Session carries the state shared by every function compiled in one run:
// diagnostics, the temporary name counters, converse nesting and function
// number allocation. A Session is not safe for concurrent use; separate
// runs use separate sessions.
type Session struct {
	File       string
	Intrinsics Intrinsics

	// AutoNumber is set when the unit asked for automatic function numbers.
	AutoNumber bool

	sink diag.Sink

	lastID int
	used   map[int]usedID

	tmpVal   int
	tmpRet   int
	tmpError int

	nest int
}

type usedID struct {
	name   string
	params int
}

// NewSession starts a session whose automatically numbered functions begin
// at base.
func NewSession(file string, in Intrinsics, base int) *Session {
	return &Session{
		File:       file,
		Intrinsics: in,
		lastID:     base - 1,
		used:       map[int]usedID{},
	}
}

func (s *Session) Sink() *diag.Sink { return &s.sink }

func (s *Session) Diagnostics() diag.Diagnostics { return s.sink.Diagnostics() }

func (s *Session) ErrorCount() int { return s.sink.ErrorCount() }

func (s *Session) span(line, col int) diag.Span {
	return diag.Span{
		File:  s.File,
		Start: diag.Position{Line: line, Column: col},
		End:   diag.Position{Line: line, Column: col},
	}
}

func (s *Session) errorf(line, col int, code, format string, args ...interface{}) {
	s.sink.Errorf(s.span(line, col), code, format, args...)
}

func (s *Session) warnf(line, col int, code, format string, args ...interface{}) {
	s.sink.Warnf(s.span(line, col), code, format, args...)
}

// AssignID returns the number fn is compiled under and whether it needs the
// 32-bit call and header forms. Functions without an id get one past the
// last number handed out.
func (s *Session) AssignID(fn *ast.Function) (int, bool) {
	num := -1
	if fn.ID != nil {
		num = *fn.ID
	}
	if num < 0 && !s.AutoNumber {
		s.warnf(fn.Line, 0, diag.CodeAutoNumber,
			"Auto-numbering function '%s', but '#autonumber' directive not used.", fn.Name)
	}

	id := num
	if num < 0 {
		id = s.lastID + 1
	}
	if num < 0 || !s.AutoNumber {
		s.lastID = id
	}

	if prev, ok := s.used[id]; ok {
		if prev.name != fn.Name || prev.params != len(fn.Params) {
			s.errorf(fn.Line, 0, diag.CodeDuplicateFunction,
				"Function 0x%x already used for '%s' with %d params.", id, prev.name, prev.params)
		} else {
			s.errorf(fn.Line, 0, diag.CodeDuplicateFunction,
				"Duplicate declaration of function '%s'.", fn.Name)
		}
	} else {
		s.used[id] = usedID{name: fn.Name, params: len(fn.Params)}
	}
	return id, !cfg.Fits16(id)
}

func (s *Session) nextTemp(counter *int, prefix string) string {
	name := fmt.Sprintf("%s_%d", prefix, *counter)
	*counter++
	return name
}

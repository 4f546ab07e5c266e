package codegen

import (
	"github.com/tos-network/ucc/uc/ast"
	"github.com/tos-network/ucc/uc/cfg"
	"github.com/tos-network/ucc/uc/diag"
	"github.com/tos-network/ucc/uc/opcode"
)

// genConverse translates a conversation loop:
//
//	top:    CONVERSE body, nobreak
//	body:   statements and cases; JMP top
//	nobreak
//	past:   CONVERSELOC
//
// A nested conversation saves the answers of the enclosing one first and
// restores them after its past block.
func (f *Function) genConverse(s *ast.Stmt, curr **cfg.Block) {
	if len(s.Cases) == 0 && s.Nobreak == nil && s.Body == nil {
		return
	}
	in := f.s.Intrinsics

	nested := f.s.nest > 0 || s.Nested
	f.s.nest++
	if nested {
		f.callIntrinsic(*curr, in.PushAnswers, nil)
	}
	if s.Expr != nil {
		f.callIntrinsic(*curr, in.AddAnswer, s.Expr)
	}

	top := f.g.NewBlock()
	(*curr).SetTargets(opcode.Invalid, top, nil)
	f.push(top)
	body := f.newBlock()
	nob := f.g.NewBlock()
	past := f.g.NewBlock()
	past.Emit(opcode.ConverseLoc)
	top.SetTargets(opcode.Converse, body, nob)

	f.loops.push(top, past, s.Name)
	f.stmt(s.Body, &body)
	for _, c := range s.Cases {
		f.stmt(c, &body)
	}
	f.loops.pop()
	body.SetTargets(opcode.Jmp, top, nil)

	f.finishNobreak(s, nob, past, curr)

	f.s.nest--
	if f.s.nest > 0 || s.Nested {
		f.callIntrinsic(*curr, in.PopAnswers, nil)
	}
}

// genConverseAttend enters a conversation loop whose exit is the label
// block.
func (f *Function) genConverseAttend(s *ast.Stmt, curr **cfg.Block) {
	past, ok := f.labels[s.Label]
	if !ok {
		f.s.errorf(s.Line, s.Col, diag.CodeUndeclaredLabel, "Undeclared label: '%s'", s.Label)
		return
	}
	top := f.g.NewBlock()
	(*curr).SetTargets(opcode.Invalid, top, nil)
	f.push(top)
	body := f.g.NewBlock()
	top.SetTargets(opcode.Converse, body, past)
	*curr = f.push(body)
}

// genCase tests the chosen answer and runs the case body, which goes back to
// the top of the conversation unless it falls through to the next case.
func (f *Function) genCase(s *ast.Stmt, curr **cfg.Block) {
	if !s.Remove && s.Body == nil {
		return
	}
	body := f.newBlock()
	past := f.g.NewBlock()
	f.caseCheck(*curr, s, body, past, 1)

	last := body
	if s.Remove {
		f.caseRemove(last, s)
	}
	f.stmt(s.Body, &last)

	fr, ok := f.loops.top()
	switch {
	case !s.FallsThrough() && ok && fr.Start != nil:
		last.SetTargets(opcode.Jmp, fr.Start, nil)
	default:
		last.SetTargets(opcode.Invalid, past, nil)
	}
	*curr = f.push(past)
}

// genCaseAttend tests the chosen answer of a running conversation; when the
// test fails control goes to the label block.
func (f *Function) genCaseAttend(s *ast.Stmt, curr **cfg.Block) {
	past, ok := f.labels[s.Label]
	if !ok {
		f.s.errorf(s.Line, s.Col, diag.CodeUndeclaredLabel, "Undeclared label: '%s'", s.Label)
		return
	}
	body := f.g.NewBlock()
	f.caseCheck(*curr, s, body, past, s.Value)
	if s.Remove {
		f.caseRemove(body, s)
	}
	*curr = f.push(body)
}

// caseCheck ends c with the answer test. def is the operand of a default
// test.
func (f *Function) caseCheck(c *cfg.Block, s *ast.Stmt, body, past *cfg.Block, def int) {
	switch s.Match {
	case ast.MatchStrings:
		for i := len(s.Strings) - 1; i >= 0; i-- {
			pushString(c, f.AddString(s.Strings[i]))
		}
		c.SetTargets(opcode.Cmps, body, past)
		c.JumpParam(cfg.U16(len(s.Strings))...)

	case ast.MatchVariable:
		if s.Expr == nil {
			c.SetTargets(opcode.Invalid, body, nil)
			return
		}
		f.genValue(c, s.Expr)
		c.SetTargets(opcode.Cmps, body, past)
		c.JumpParam(cfg.U16(1)...)

	case ast.MatchDefault:
		c.SetTargets(opcode.Default, body, past)
		c.JumpParam(cfg.U16(def)...)

	default:
		c.SetTargets(opcode.Invalid, body, nil)
	}
}

// caseRemove takes the matched answer off the answer list.
func (f *Function) caseRemove(b *cfg.Block, s *ast.Stmt) {
	var arg *ast.Expr
	switch s.Match {
	case ast.MatchStrings:
		switch len(s.Strings) {
		case 0:
			arg = &ast.Expr{Kind: ast.ExprChoice}
		case 1:
			arg = &ast.Expr{Kind: ast.ExprString, Text: s.Strings[0]}
		default:
			arr := &ast.Expr{Kind: ast.ExprArray}
			for _, t := range s.Strings {
				arr.Elems = append(arr.Elems, &ast.Expr{Kind: ast.ExprString, Text: t})
			}
			arg = arr
		}
	case ast.MatchVariable:
		arg = s.Expr
		if arg == nil {
			arg = &ast.Expr{Kind: ast.ExprChoice}
		}
	default:
		return
	}
	f.callIntrinsic(b, f.s.Intrinsics.RemoveAnswer, arg)
}

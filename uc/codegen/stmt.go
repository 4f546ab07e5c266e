package codegen

import (
	"slices"

	"github.com/tos-network/ucc/uc/ast"
	"github.com/tos-network/ucc/uc/cfg"
	"github.com/tos-network/ucc/uc/diag"
	"github.com/tos-network/ucc/uc/opcode"
)

// stmt translates s into the graph. curr is the block code is being added
// to; on return it points at a block without a terminal, pushed last.
func (f *Function) stmt(s *ast.Stmt, curr **cfg.Block) {
	if s == nil {
		return
	}
	c := *curr

	switch s.Kind {
	case ast.StmtBlock:
		for _, sub := range s.Stmts {
			f.stmt(sub, curr)
		}

	case ast.StmtExpr:
		if s.Expr.Kind == ast.ExprCall {
			f.genCall(c, s.Expr, false)
		} else {
			f.needVar(c, s.Expr)
		}

	case ast.StmtAssign:
		f.genValue(c, s.Expr)
		f.genAssign(c, s.Target)

	case ast.StmtDelete:
		if s.Expr != nil {
			f.genValue(c, s.Expr)
		}

	case ast.StmtIf:
		f.genIf(s, curr)
	case ast.StmtTryCatch:
		f.genTryCatch(s, curr)
	case ast.StmtBreakable:
		f.genBreakable(s, curr)
	case ast.StmtWhile:
		f.genWhile(s, curr)
	case ast.StmtDoWhile:
		f.genDoWhile(s, curr)
	case ast.StmtLoop:
		f.genLoop(s, curr)
	case ast.StmtForeach:
		f.genForeach(s, curr)
	case ast.StmtForeachAttend:
		f.genForeachAttend(s, curr)

	case ast.StmtReturn:
		switch {
		case s.Expr == nil:
			c.Emit(opcode.Ret)
		case f.isConstZero(s.Expr):
			c.Emit(opcode.RetZ)
		default:
			f.genValue(c, s.Expr)
			c.Emit(opcode.RetV)
		}
		c.SetTargets(opcode.Invalid, f.end(), nil)
		*curr = f.newBlock()

	case ast.StmtAbort:
		if s.Expr != nil {
			f.genValue(c, s.Expr)
			c.Emit(opcode.Throw)
		} else {
			c.Emit(opcode.Abrt)
		}
		c.SetTargets(opcode.Invalid, f.end(), nil)
		*curr = f.newBlock()

	case ast.StmtBreak, ast.StmtContinue:
		f.genBreak(s, curr)

	case ast.StmtFallthrough:
		// Marks the end of a case body; the arms are laid out adjacently.

	case ast.StmtLabel:
		l, ok := f.labels[s.Name]
		if !ok || f.placed[l] {
			f.s.errorf(s.Line, s.Col, diag.CodeUndeclaredLabel, "Label '%s' cannot be placed here", s.Name)
			return
		}
		if !c.IsJumpBlock() && !c.EndsInReturn() && !c.EndsInAbort() {
			c.SetTaken(l)
		}
		f.placeLog = append(f.placeLog, s.Name)
		*curr = f.push(l)

	case ast.StmtGoto:
		if l, ok := f.labels[s.Name]; ok {
			c.SetTargets(opcode.Jmp, l, nil)
			f.gotoLog = append(f.gotoLog, s.Name)
		} else {
			f.s.errorf(s.Line, s.Col, diag.CodeUndeclaredLabel, "Undeclared label: '%s'", s.Name)
			c.SetTargets(opcode.Invalid, f.end(), nil)
		}
		*curr = f.newBlock()

	case ast.StmtSwitch:
		f.genSwitch(s, curr)

	case ast.StmtConverse:
		f.genConverse(s, curr)
	case ast.StmtConverseAttend:
		f.genConverseAttend(s, curr)
	case ast.StmtCase:
		f.genCase(s, curr)
	case ast.StmtCaseAttend:
		f.genCaseAttend(s, curr)

	case ast.StmtMessage:
		f.genMessage(c, s.Msgs)
	case ast.StmtSay:
		f.genMessage(c, s.Msgs)
		c.Emit(opcode.Say)

	case ast.StmtEndConv:
		c.Emit(opcode.ConverseLoc)
	case ast.StmtLoopStart:
		c.Emit(opcode.Loop)

	default:
		f.s.errorf(s.Line, s.Col, diag.CodeInternal, "no code for %s statement", s.Kind)
	}
}

func (f *Function) isConstZero(e *ast.Expr) bool {
	v, ok := f.evalConst(e)
	return ok && v == 0
}

// genIf lays out the test, the then arm, the else arm and the join block in
// that order. A constant test drops the arm it never takes; the dropped arm
// stays reachable through labels only.
func (f *Function) genIf(s *ast.Stmt, curr **cfg.Block) {
	if s.Then == nil && s.Else == nil {
		return
	}
	c := *curr
	then := f.newBlock()
	past := f.g.NewBlock()

	v, isConst := 0, true
	if s.Expr != nil {
		v, isConst = f.evalConst(s.Expr)
	}
	switch {
	case !isConst:
		f.genValue(c, s.Expr)
		c.SetTargets(opcode.Jne, then, nil)
	case v != 0:
		c.SetTargets(opcode.Invalid, then, nil)
	default:
		c.SetTargets(opcode.Jmp, past, nil)
	}

	f.stmt(s.Then, &then)

	if s.Else == nil {
		if !isConst {
			c.SetNTaken(past)
		}
		then.SetTargets(opcode.Invalid, past, nil)
		*curr = f.push(past)
		return
	}

	els := f.newBlock()
	switch {
	case !isConst:
		c.SetNTaken(els)
	case v == 0:
		c.SetTaken(els)
	}
	then.SetTargets(opcode.Jmp, past, nil)
	last := els
	f.stmt(s.Else, &last)
	last.SetTargets(opcode.Invalid, past, nil)
	*curr = f.push(past)
}

func (f *Function) genTryCatch(s *ast.Stmt, curr **cfg.Block) {
	if s.Body == nil {
		return
	}
	try := f.g.NewBlock()
	catch := f.g.NewBlock()
	past := f.g.NewBlock()

	(*curr).SetTargets(opcode.TryStart, try, catch)

	last := f.push(try)
	f.stmt(s.Body, &last)
	last.Emit(opcode.TryEnd)
	last.SetTargets(opcode.Jmp, past, nil)

	v := s.Var
	if v == nil {
		v = f.newTemp(f.s.nextTemp(&f.s.tmpError, "_tmperror"))
	}
	f.push(catch)
	popVar(catch, v)
	last = catch
	f.stmt(s.Catch, &last)
	last.SetTargets(opcode.Invalid, past, nil)

	*curr = f.push(past)
}

// finishNobreak lays out the nobreak trailer of a loop at nob and links its
// end to past, then places past. It returns the trailer's last block.
func (f *Function) finishNobreak(s *ast.Stmt, nob, past *cfg.Block, curr **cfg.Block) *cfg.Block {
	last := f.push(nob)
	f.stmt(s.Nobreak, &last)
	last.SetTargets(opcode.Invalid, past, nil)
	*curr = f.push(past)
	return last
}

func (f *Function) genBreakable(s *ast.Stmt, curr **cfg.Block) {
	if s.Body == nil && s.Nobreak == nil {
		return
	}
	nob := f.g.NewBlock()
	past := f.g.NewBlock()
	if s.Body != nil {
		f.loops.push(nob, past, s.Name)
		f.stmt(s.Body, curr)
		f.loops.pop()
	}
	(*curr).SetTargets(opcode.Invalid, nob, nil)
	f.finishNobreak(s, nob, past, curr)
}

func (f *Function) genWhile(s *ast.Stmt, curr **cfg.Block) {
	if s.Body == nil && s.Nobreak == nil {
		return
	}
	top := f.g.NewBlock()
	nob := f.g.NewBlock()
	past := f.g.NewBlock()

	(*curr).SetTargets(opcode.Invalid, top, nil)
	f.push(top)
	body := f.newBlock()
	if s.Expr == nil {
		top.SetTargets(opcode.Jmp, nob, nil)
	} else {
		f.genValue(top, s.Expr)
		top.SetTargets(opcode.Jne, body, nob)
	}

	if s.Body != nil {
		f.loops.push(top, past, s.Name)
		f.stmt(s.Body, &body)
		f.loops.pop()
	}
	body.SetTargets(opcode.Jmp, top, nil)
	f.finishNobreak(s, nob, past, curr)
}

func (f *Function) genDoWhile(s *ast.Stmt, curr **cfg.Block) {
	if s.Body == nil && s.Nobreak == nil {
		return
	}
	body := f.newBlock()
	(*curr).SetTargets(opcode.Invalid, body, nil)

	test := f.g.NewBlock()
	f.genValue(test, s.Expr)
	nob := f.g.NewBlock()
	past := f.g.NewBlock()
	back := f.g.NewBlock()
	back.SetTargets(opcode.Jmp, body, nil)
	test.SetTargets(opcode.Jne, back, nob)

	if s.Body != nil {
		f.loops.push(test, past, s.Name)
		f.stmt(s.Body, &body)
		f.loops.pop()
	}
	body.SetTargets(opcode.Invalid, test, nil)
	f.push(test)
	f.push(back)
	f.finishNobreak(s, nob, past, curr)
}

// genLoop translates a loop without a condition. Leaving it needs a break
// out of the body or a return or abort inside it; without one the loop is
// reported.
func (f *Function) genLoop(s *ast.Stmt, curr **cfg.Block) {
	if s.Body == nil && s.Nobreak == nil {
		return
	}
	ends := f.end().PredecessorCount()
	gotos, placed := len(f.gotoLog), len(f.placeLog)

	top := f.g.NewBlock()
	(*curr).SetTargets(opcode.Invalid, top, nil)
	body := f.push(top)
	past := f.g.NewBlock()
	left := false
	if s.Body != nil {
		f.loops.push(top, past, s.Name)
		fr, _ := f.loops.top()
		f.stmt(s.Body, &body)
		f.loops.pop()
		left = *fr.Left
	}
	body.SetTargets(opcode.Jmp, top, nil)
	left = left || gotoOutside(f.gotoLog[gotos:], f.placeLog[placed:])

	if !left && past.IsOrphan() && ends == f.end().PredecessorCount() {
		f.s.errorf(s.Line, s.Col, diag.CodeInfiniteLoop,
			"Infinite loop without any 'abort', 'break', or 'return' statements")
	}

	if s.Nobreak != nil {
		nob := f.newBlock()
		last := nob
		f.stmt(s.Nobreak, &last)
		last.SetTargets(opcode.Invalid, past, nil)
		if nob.IsOrphan() {
			switch {
			case last == nob:
				f.s.warnf(s.Nobreak.Line, s.Nobreak.Col, diag.CodeUnreachableNobreak,
					"Statements in 'nobreak' block will never execute")
			case !nob.IsEmpty():
				f.s.warnf(s.Nobreak.Line, s.Nobreak.Col, diag.CodeUnreachableNobreak,
					"Some statements in 'nobreak' block will never execute")
			}
		}
	}
	*curr = f.push(past)
}

// gotoOutside reports whether some goto targets a label that was not
// placed in the same stretch of statements.
func gotoOutside(gotos, placed []string) bool {
	for _, g := range gotos {
		if !slices.Contains(placed, g) {
			return true
		}
	}
	return false
}

// loopCheck makes top the bounds check of an array loop: it branches to
// body while elements remain and to past afterwards.
func (f *Function) loopCheck(s *ast.Stmt, top, body, past *cfg.Block) {
	op := opcode.LoopTop
	switch {
	case s.Array.IsStatic():
		op = opcode.LoopTopS
	case s.Array.Storage == ast.StorageMember:
		op = opcode.LoopTopTHV
	}
	if s.Index == nil {
		s.Index = f.newTemp("_" + s.Array.Name + "_index")
	}
	if s.Size == nil {
		s.Size = f.newTemp("_" + s.Array.Name + "_size")
	}
	top.SetTargets(op, body, past)
	top.JumpParam(cfg.U16(s.Index.Offset())...)
	top.JumpParam(cfg.U16(s.Size.Offset())...)
	top.JumpParam(cfg.U16(s.Var.Offset())...)
	top.JumpParam(cfg.U16(s.Array.Offset())...)
}

func (f *Function) genForeach(s *ast.Stmt, curr **cfg.Block) {
	if s.Body == nil && s.Nobreak == nil {
		return
	}
	(*curr).Emit(opcode.Loop)
	top := f.g.NewBlock()
	(*curr).SetTargets(opcode.Invalid, top, nil)
	f.push(top)
	body := f.newBlock()
	nob := f.g.NewBlock()
	past := f.g.NewBlock()
	f.loopCheck(s, top, body, nob)

	if s.Body != nil {
		f.loops.push(top, past, s.Name)
		f.stmt(s.Body, &body)
		f.loops.pop()
	}
	body.SetTargets(opcode.Jmp, top, nil)
	f.finishNobreak(s, nob, past, curr)
}

// genForeachAttend enters an array loop whose exit is the label block.
func (f *Function) genForeachAttend(s *ast.Stmt, curr **cfg.Block) {
	past, ok := f.labels[s.Label]
	if !ok {
		f.s.errorf(s.Line, s.Col, diag.CodeUndeclaredLabel, "Undeclared label: '%s'", s.Label)
		return
	}
	top := f.g.NewBlock()
	(*curr).SetTargets(opcode.Invalid, top, nil)
	f.push(top)
	body := f.g.NewBlock()
	f.loopCheck(s, top, body, past)
	*curr = f.push(body)
}

// genBreak jumps to the exit (break) or start (continue) of the selected
// frame. An unknown loop name falls back to the innermost frame.
func (f *Function) genBreak(s *ast.Stmt, curr **cfg.Block) {
	res, ok := f.loops.find(s.Name)
	if res.Kind == notFound {
		f.s.errorf(s.Line, s.Col, diag.CodeUndeclaredLoop, "Undeclared loop: '%s'", s.Name)
	}
	dest := res.Frame.Exit
	if s.Kind == ast.StmtContinue {
		dest = res.Frame.Start
	}
	c := *curr
	if !ok || dest == nil {
		if res.Kind != notFound {
			f.s.errorf(s.Line, s.Col, diag.CodeBreakOutsideLoop, "'%s' statement not within a loop", s.Kind)
		}
		c.SetTargets(opcode.Invalid, f.end(), nil)
	} else {
		c.SetTargets(opcode.Jmp, dest, nil)
		if s.Kind == ast.StmtBreak {
			f.loops.leave(res.Index)
		}
	}
	*curr = f.newBlock()
}

// genSwitch compares the scrutinee against every non-default arm in order,
// then lays the arm bodies out back to back so a body without a break runs
// into the next one.
func (f *Function) genSwitch(s *ast.Stmt, curr **cfg.Block) {
	ast.CheckSwitch(s, func(a *ast.Arm) {
		f.s.errorf(a.Line, 0, diag.CodeDuplicateDefault, "switch statement already has a default case.")
	})
	c := *curr
	v := f.needVar(c, s.Expr)

	arms := make([]*cfg.Block, len(s.Arms))
	var def *cfg.Block
	for i, a := range s.Arms {
		if a.Default {
			arms[i] = f.g.NewBlock()
			if def == nil {
				def = arms[i]
			}
			continue
		}
		pushVar(c, v)
		f.genValue(c, a.Value)
		c.Emit(opcode.CmpNE)
		arms[i] = f.g.NewBlock()
		next := f.newBlock()
		c.SetTargets(opcode.Jne, next, arms[i])
		c = next
	}

	past := f.g.NewBlock()
	if def != nil {
		c.SetTargets(opcode.Jmp, def, nil)
	} else {
		c.SetTargets(opcode.Jmp, past, nil)
	}

	outer, _ := f.loops.top()
	for i, a := range s.Arms {
		if i > 0 {
			c.SetTargets(opcode.Invalid, arms[i], nil)
		}
		c = f.push(arms[i])
		f.loops.push(outer.Start, past, "")
		f.stmt(a.Body, &c)
		f.loops.pop()
	}
	c.SetTargets(opcode.Invalid, past, nil)
	*curr = f.push(past)
}

// genMessage appends each part to the pending message: known strings by
// offset, anything else through a temporary.
func (f *Function) genMessage(c *cfg.Block, msgs []*ast.Expr) {
	for _, m := range msgs {
		if off := f.stringOffset(m); off >= 0 {
			if cfg.Fits16(off) {
				c.Emit(opcode.AddSI, cfg.U16(off)...)
			} else {
				c.Emit(opcode.AddSI32, cfg.U32(off)...)
			}
			continue
		}
		v := f.needVar(c, m)
		c.Emit(opcode.AddSV, cfg.U16(v.Offset())...)
	}
}

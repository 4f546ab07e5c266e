package codegen

import (
	"github.com/tos-network/ucc/uc/ast"
	"github.com/tos-network/ucc/uc/cfg"
	"github.com/tos-network/ucc/uc/diag"
	"github.com/tos-network/ucc/uc/opcode"
)

var binaryOps = map[string]opcode.Op{
	"+":  opcode.Add,
	"-":  opcode.Sub,
	"*":  opcode.Mul,
	"/":  opcode.Div,
	"%":  opcode.Mod,
	">":  opcode.CmpGT,
	"<":  opcode.CmpLT,
	">=": opcode.CmpGE,
	"<=": opcode.CmpLE,
	"!=": opcode.CmpNE,
	"==": opcode.CmpEQ,
	"&&": opcode.And,
	"||": opcode.Or,
	"&":  opcode.ArrA,
	"in": opcode.In,
}

var unaryOps = map[string]opcode.Op{
	"!": opcode.Not,
}

// pushInt emits the shortest push for v unless width forces one.
func pushInt(b *cfg.Block, v int, width string) {
	switch {
	case width == "byte":
		b.Emit(opcode.PushB, cfg.U8(v)...)
	case width == "long" || !cfg.Fits16(v):
		b.Emit(opcode.PushI32, cfg.U32(v)...)
	default:
		b.Emit(opcode.PushI, cfg.U16(v)...)
	}
}

func pushString(b *cfg.Block, off int) {
	if cfg.Fits16(off) {
		b.Emit(opcode.PushS, cfg.U16(off)...)
	} else {
		b.Emit(opcode.PushS32, cfg.U32(off)...)
	}
}

// genValue emits e so that it leaves exactly one value on the stack.
func (f *Function) genValue(b *cfg.Block, e *ast.Expr) {
	switch e.Kind {
	case ast.ExprInt:
		pushInt(b, e.Value, e.Width)

	case ast.ExprBool:
		if e.Value != 0 {
			b.Emit(opcode.PushTrue)
		} else {
			b.Emit(opcode.PushFalse)
		}

	case ast.ExprString:
		pushString(b, f.AddString(e.Text))

	case ast.ExprPrefix:
		pushString(b, f.FindStringPrefix(e.Line, e.Col, e.Text))

	case ast.ExprVar:
		pushVar(b, e.Var)

	case ast.ExprElem:
		f.genValue(b, e.Index)
		switch {
		case e.Var.IsStatic():
			b.Emit(opcode.AIdxS, cfg.U16(e.Var.Offset())...)
		case e.Var.Storage == ast.StorageMember:
			b.Emit(opcode.AIdxTHV, cfg.U16(e.Var.Offset())...)
		default:
			b.Emit(opcode.AIdx, cfg.U16(e.Var.Offset())...)
		}

	case ast.ExprFlag:
		if n, ok := f.evalConst(e.Operand); ok {
			b.Emit(opcode.PushF, cfg.U16(n)...)
		} else {
			f.genValue(b, e.Operand)
			b.Emit(opcode.PushFVar)
		}

	case ast.ExprBinary:
		if v, ok := f.evalConst(e); ok {
			pushInt(b, v, "")
			return
		}
		f.genValue(b, e.Left)
		f.genValue(b, e.Right)
		b.Emit(binaryOps[e.Op])

	case ast.ExprUnary:
		if v, ok := f.evalConst(e); ok {
			pushInt(b, v, "")
			return
		}
		f.genValue(b, e.Operand)
		b.Emit(unaryOps[e.Op])

	case ast.ExprArray:
		n := f.genValues(b, e.Elems)
		b.Emit(opcode.ArrC, cfg.U16(n)...)

	case ast.ExprCall:
		f.genCall(b, e, true)

	case ast.ExprItem:
		b.Emit(opcode.PushItemRef)

	case ast.ExprEvent:
		b.Emit(opcode.PushEventID)

	case ast.ExprChoice:
		b.Emit(opcode.PushChoice)

	case ast.ExprFunRef:
		if cfg.Fits16(e.Func.ID) {
			b.Emit(opcode.PushI, cfg.U16(e.Func.ID)...)
		} else {
			b.Emit(opcode.PushI32, cfg.U32(e.Func.ID)...)
		}

	case ast.ExprNew:
		f.genNew(b, e)

	case ast.ExprDel:
		f.genValue(b, e.Operand)
		b.Emit(opcode.ClassDel)

	default:
		f.s.errorf(e.Line, e.Col, diag.CodeInternal, "no code for %s expression", e.Kind)
	}
}

// genValues pushes exprs last to first, so the callee pops them in source
// order. Nil entries are skipped; the number pushed is returned.
func (f *Function) genValues(b *cfg.Block, exprs []*ast.Expr) int {
	n := 0
	for i := len(exprs) - 1; i >= 0; i-- {
		if exprs[i] == nil {
			continue
		}
		f.genValue(b, exprs[i])
		n++
	}
	return n
}

func pushVar(b *cfg.Block, v *ast.Var) {
	switch {
	case v.IsStatic():
		b.Emit(opcode.PushStatic, cfg.U16(v.Offset())...)
	case v.Storage == ast.StorageMember:
		b.Emit(opcode.PushTHV, cfg.U16(v.Offset())...)
	default:
		b.Emit(opcode.Push, cfg.U16(v.Offset())...)
	}
}

func popVar(b *cfg.Block, v *ast.Var) {
	switch {
	case v.IsStatic():
		b.Emit(opcode.PopStatic, cfg.U16(v.Offset())...)
	case v.Storage == ast.StorageMember:
		b.Emit(opcode.PopTHV, cfg.U16(v.Offset())...)
	default:
		b.Emit(opcode.Pop, cfg.U16(v.Offset())...)
	}
}

// genAssign emits the store of the value on top of the stack into e.
func (f *Function) genAssign(b *cfg.Block, e *ast.Expr) {
	switch e.Kind {
	case ast.ExprVar:
		popVar(b, e.Var)

	case ast.ExprElem:
		f.genValue(b, e.Index)
		switch {
		case e.Var.IsStatic():
			b.Emit(opcode.PopArrS, cfg.U16(e.Var.Offset())...)
		case e.Var.Storage == ast.StorageMember:
			b.Emit(opcode.PopArrTHV, cfg.U16(e.Var.Offset())...)
		default:
			b.Emit(opcode.PopArr, cfg.U16(e.Var.Offset())...)
		}

	case ast.ExprFlag:
		if n, ok := f.evalConst(e.Operand); ok {
			b.Emit(opcode.PopF, cfg.U16(n)...)
		} else {
			f.genValue(b, e.Operand)
			b.Emit(opcode.PopFVar)
		}

	case ast.ExprEvent:
		b.Emit(opcode.PopEventID)

	default:
		f.s.errorf(e.Line, e.Col, diag.CodeNotAssignable, "Can't assign to this expression")
	}
}

// evalConst folds e when it is built from integer constants. Folding errors
// are reported once per node; the node is then treated as not constant.
func (f *Function) evalConst(e *ast.Expr) (int, bool) {
	switch e.Kind {
	case ast.ExprInt:
		return e.Value, true

	case ast.ExprFunRef:
		return e.Func.ID, true

	case ast.ExprUnary:
		v, ok := f.evalConst(e.Operand)
		if !ok {
			return 0, false
		}
		if e.Op == "!" {
			return boolInt(v == 0), true
		}
		f.constError(e, diag.CodeUnsupportedConstOp, "This operation not supported for integer constants")
		return 0, false

	case ast.ExprBinary:
		l, ok := f.evalConst(e.Left)
		if !ok {
			return 0, false
		}
		r, ok := f.evalConst(e.Right)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case "+":
			return wrap32(l + r), true
		case "-":
			return wrap32(l - r), true
		case "*":
			return wrap32(l * r), true
		case "/", "%":
			if r == 0 {
				f.constError(e, diag.CodeDivisionByZero, "Division by 0")
				return 0, false
			}
			if e.Op == "/" {
				return wrap32(l / r), true
			}
			return wrap32(l % r), true
		case ">":
			return boolInt(l > r), true
		case "<":
			return boolInt(l < r), true
		case ">=":
			return boolInt(l >= r), true
		case "<=":
			return boolInt(l <= r), true
		case "!=":
			return boolInt(l != r), true
		case "==":
			return boolInt(l == r), true
		case "&&":
			return boolInt(l != 0 && r != 0), true
		case "||":
			return boolInt(l != 0 || r != 0), true
		case "&":
			return 0, false
		}
		f.constError(e, diag.CodeUnsupportedConstOp, "This operation not supported for integer constants")
		return 0, false
	}
	return 0, false
}

func (f *Function) constError(e *ast.Expr, code, msg string) {
	if f.folded[e] {
		return
	}
	f.folded[e] = true
	f.s.errorf(e.Line, e.Col, code, "%s", msg)
}

// wrap32 truncates a folded value to the 32-bit integers the game computes with.
func wrap32(v int) int {
	return int(int32(v))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// needVar stores the value of e in a fresh hidden local and returns it.
func (f *Function) needVar(b *cfg.Block, e *ast.Expr) *ast.Var {
	v := f.newTemp(f.s.nextTemp(&f.s.tmpVal, "_tmpval"))
	f.genValue(b, e)
	popVar(b, v)
	return v
}

// genCall emits a call. used tells whether the caller consumes the result;
// an unused result of a value-returning function is popped into a hidden
// local.
func (f *Function) genCall(b *cfg.Block, e *ast.Expr, used bool) {
	if e.Fn != nil {
		n := f.genValues(b, e.Args)
		if e.Item != nil {
			f.genValue(b, e.Item)
		} else {
			b.Emit(opcode.PushItemRef)
		}
		f.genValue(b, e.Fn)
		if n > 0 {
			b.Emit(opcode.CallIndex, cfg.U8(n)...)
		} else {
			b.Emit(opcode.CallInd)
		}
		return
	}

	fr := e.Func
	if fr.Intrinsic {
		n := f.genValues(b, e.Args)
		if e.Item != nil {
			f.genValue(b, e.Item)
			n++
		}
		op := opcode.CallI
		if used {
			op = opcode.CallIS
		}
		b.Emit(op, append(cfg.U16(fr.ID), cfg.U8(n)...)...)
		return
	}

	n := f.genValues(b, e.Args)
	if fr.IsMethod() {
		n++
	}
	if n != fr.Params {
		f.s.errorf(e.Line, e.Col, diag.CodeCallArity,
			"# parms. passed (%d) doesn't match '%s' count (%d)", n, fr.Name, fr.Params)
	}
	if used && !fr.Returns {
		f.s.errorf(e.Line, e.Col, diag.CodeNoReturnValue,
			"Function '%s' does not have a return value", fr.Name)
	}

	switch {
	case e.Original:
		if e.Item != nil {
			f.genValue(b, e.Item)
		} else {
			b.Emit(opcode.PushItemRef)
		}
		b.Emit(opcode.CallO, cfg.U16(fr.ID)...)

	case fr.IsMethod():
		item := e.Item
		if item == nil && f.src.This != nil {
			item = &ast.Expr{Kind: ast.ExprVar, Var: f.src.This, Line: e.Line, Col: e.Col}
		}
		if item == nil {
			f.s.errorf(e.Line, e.Col, diag.CodeMissingThis, "Class method '%s' requires a 'this'.", fr.Name)
		} else {
			f.genValue(b, item)
		}
		if e.Scope != nil {
			b.Emit(opcode.CallMS, append(cfg.U16(*fr.Method), cfg.U16(*e.Scope)...)...)
		} else {
			b.Emit(opcode.CallM, cfg.U16(*fr.Method)...)
		}

	case !cfg.Fits16(fr.ID):
		if e.Item != nil {
			f.genValue(b, e.Item)
			b.Emit(opcode.CallE32, cfg.U32(fr.ID)...)
		} else {
			b.Emit(opcode.Call32, cfg.U32(fr.ID)...)
		}

	case e.Item != nil:
		f.link(fr)
		f.genValue(b, e.Item)
		b.Emit(opcode.CallE, cfg.U16(fr.ID)...)

	default:
		b.Emit(opcode.Call, cfg.U16(f.link(fr))...)
	}

	if !used && fr.Returns {
		popVar(b, f.newTemp(f.s.nextTemp(&f.s.tmpRet, "_tmpretval")))
	}
}

// callIntrinsic emits a statement call of an engine function with at most
// one argument.
func (f *Function) callIntrinsic(b *cfg.Block, num int, arg *ast.Expr) {
	n := 0
	if arg != nil {
		f.genValue(b, arg)
		n = 1
	}
	b.Emit(opcode.CallI, append(cfg.U16(num), cfg.U8(n)...)...)
}

// genNew pushes the constructor arguments, padding missing data members
// with zero, and creates the instance.
func (f *Function) genNew(b *cfg.Block, e *ast.Expr) {
	cls := e.Class
	args := e.Args
	switch {
	case cls.Vars > len(args):
		missing := cls.Vars - len(args)
		plural := ""
		if missing > 1 {
			plural = "s"
		}
		f.s.warnf(e.Line, e.Col, diag.CodeConstructorMissing,
			"%d argument%s missing in constructor of class '%s'", missing, plural, cls.Name)
		padded := make([]*ast.Expr, 0, cls.Vars)
		padded = append(padded, args...)
		for len(padded) < cls.Vars {
			padded = append(padded, &ast.Expr{Kind: ast.ExprInt})
		}
		args = padded
	case cls.Vars < len(args):
		f.s.errorf(e.Line, e.Col, diag.CodeConstructorArity,
			"Too many arguments in constructor of class '%s'", cls.Name)
	}
	f.genValues(b, args)
	b.Emit(opcode.ClsCreate, cfg.U16(cls.Num)...)
}

// stringOffset is the text pool offset of a string or prefix literal, -1
// for any other expression.
func (f *Function) stringOffset(e *ast.Expr) int {
	switch e.Kind {
	case ast.ExprString:
		return f.AddString(e.Text)
	case ast.ExprPrefix:
		return f.FindStringPrefix(e.Line, e.Col, e.Text)
	}
	return -1
}

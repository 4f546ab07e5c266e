package ast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nikandfor/errors"

	"github.com/tos-network/ucc/uc/diag"
)

// DecodeUnit reads a unit in its JSON interchange form. Malformed input is
// reported as diag.Diagnostics carrying UCC4xxx codes and a pointer to the
// offending node; a unit that fails to decode is never returned.
func DecodeUnit(r io.Reader, file string) (*Unit, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read %v", file)
	}

	var u Unit
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		var sink diag.Sink
		code := diag.CodeInterchangeShape
		if strings.Contains(err.Error(), "unknown field") {
			code = diag.CodeInterchangeUnknown
		}
		sink.Errorf(spanAt(file, data, errorOffset(err)), code, "%v", err)
		return nil, sink.Err()
	}
	if u.Source == "" {
		u.Source = file
	}

	v := &validator{file: u.Source}
	v.unit(&u)
	if err := v.sink.Err(); err != nil {
		return nil, err
	}
	return &u, nil
}

func errorOffset(err error) int64 {
	switch e := err.(type) {
	case *json.SyntaxError:
		return e.Offset
	case *json.UnmarshalTypeError:
		return e.Offset
	}
	return -1
}

func spanAt(file string, data []byte, off int64) diag.Span {
	sp := diag.Span{File: file}
	if off < 0 || off > int64(len(data)) {
		return sp
	}
	line, col := 1, 1
	for _, c := range data[:off] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	sp.Start = diag.Position{Line: line, Column: col}
	sp.End = sp.Start
	return sp
}

type validator struct {
	file   string
	sink   diag.Sink
	labels map[string]bool
}

func (v *validator) span(line, col int) diag.Span {
	return diag.Span{
		File:  v.file,
		Start: diag.Position{Line: line, Column: col},
		End:   diag.Position{Line: line, Column: col},
	}
}

func (v *validator) shape(line, col int, path, format string, args ...interface{}) {
	v.sink.Errorf(v.span(line, col), diag.CodeInterchangeShape, "%s: %s", path, fmt.Sprintf(format, args...))
}

func (v *validator) unit(u *Unit) {
	if len(u.Functions) == 0 {
		v.shape(0, 0, "/functions", "unit has no functions")
	}
	for i, fn := range u.Functions {
		path := fmt.Sprintf("/functions/%d", i)
		if fn == nil {
			v.shape(0, 0, path, "null function")
			continue
		}
		v.function(fn, path)
	}
}

func (v *validator) function(fn *Function, path string) {
	if fn.Name == "" {
		v.shape(fn.Line, 0, path+"/name", "function has no name")
	}
	switch fn.Kind {
	case "":
		fn.Kind = KindUtility
	case KindUtility, KindShape, KindObject:
	default:
		v.shape(fn.Line, 0, path+"/kind", "unknown function kind %q", fn.Kind)
	}
	if fn.Locals < 0 {
		v.shape(fn.Line, 0, path+"/locals", "negative local count %d", fn.Locals)
	}
	for i, s := range fn.Strings {
		if strings.IndexByte(s, 0) >= 0 {
			v.shape(fn.Line, 0, fmt.Sprintf("%s/strings/%d", path, i), "string contains a NUL byte")
		}
	}
	if fn.This != nil {
		v.variable(fn.This, fn.Line, 0, path+"/this")
	}
	v.labels = make(map[string]bool, len(fn.Labels))
	for _, l := range fn.Labels {
		v.labels[l] = true
	}
	if fn.Body != nil {
		v.stmt(fn.Body, path+"/body")
	}
}

func (v *validator) variable(x *Var, line, col int, path string) {
	switch x.Storage {
	case StorageLocal, StorageParam, StorageStatic, StorageGlobal, StorageMember:
	default:
		v.shape(line, col, path+"/storage", "unknown storage class %q", x.Storage)
	}
	if x.Slot < 0 {
		v.shape(line, col, path+"/slot", "negative slot %d", x.Slot)
	}
}

func (v *validator) stmt(s *Stmt, path string) {
	if s == nil {
		v.shape(0, 0, path, "null statement")
		return
	}
	if !stmtKinds[s.Kind] {
		v.shape(s.Line, s.Col, path+"/kind", "unknown statement kind %q", s.Kind)
		return
	}

	need := func(ok bool, field string) {
		if !ok {
			v.shape(s.Line, s.Col, path+"/"+field, "%s statement requires %s", s.Kind, field)
		}
	}

	switch s.Kind {
	case StmtExpr, StmtDelete:
		need(s.Expr != nil, "expr")
	case StmtAssign:
		need(s.Target != nil, "target")
		need(s.Expr != nil, "expr")
	case StmtDoWhile:
		need(s.Expr != nil, "expr")
	case StmtForeach, StmtForeachAttend:
		need(s.Var != nil, "var")
		need(s.Array != nil, "array")
		if s.Kind == StmtForeachAttend {
			need(s.Label != "", "label")
		}
	case StmtLabel:
		need(s.Name != "", "name")
		if s.Name != "" && !v.labels[s.Name] {
			v.shape(s.Line, s.Col, path+"/name", "label %q is missing from the function's label list", s.Name)
		}
	case StmtGoto:
		need(s.Name != "", "name")
	case StmtSwitch:
		need(s.Expr != nil, "expr")
		CheckSwitch(s, func(a *Arm) {
			v.sink.Errorf(v.span(a.Line, 0), diag.CodeDuplicateDefault, "switch statement already has a default case.")
		})
	case StmtConverseAttend:
		need(s.Label != "", "label")
	case StmtCase, StmtCaseAttend:
		switch s.Match {
		case MatchStrings, MatchVariable, MatchDefault, MatchAlways:
		default:
			v.shape(s.Line, s.Col, path+"/match", "unknown case match %q", s.Match)
		}
		if s.Kind == StmtCaseAttend {
			need(s.Label != "", "label")
			if s.Match == MatchAlways {
				v.shape(s.Line, s.Col, path+"/match", "case_attend cannot use match %q", s.Match)
			}
		}
		for i, str := range s.Strings {
			if strings.IndexByte(str, 0) >= 0 {
				v.shape(s.Line, s.Col, fmt.Sprintf("%s/strings/%d", path, i), "string contains a NUL byte")
			}
		}
	case StmtTryCatch:
		if s.Var != nil {
			v.variable(s.Var, s.Line, s.Col, path+"/var")
		}
	}

	for _, vr := range []struct {
		x    *Var
		name string
	}{{s.Var, "var"}, {s.Array, "array"}, {s.Index, "index"}, {s.Size, "size"}} {
		if vr.x != nil && s.Kind != StmtTryCatch {
			v.variable(vr.x, s.Line, s.Col, path+"/"+vr.name)
		}
	}

	for i, c := range s.Stmts {
		v.stmt(c, fmt.Sprintf("%s/stmts/%d", path, i))
	}
	for _, c := range []struct {
		st   *Stmt
		name string
	}{{s.Then, "then"}, {s.Else, "else"}, {s.Body, "body"}, {s.Nobreak, "nobreak"}, {s.Catch, "catch"}} {
		if c.st != nil {
			v.stmt(c.st, path+"/"+c.name)
		}
	}
	for i, c := range s.Cases {
		cp := fmt.Sprintf("%s/cases/%d", path, i)
		if c != nil && c.Kind != StmtCase {
			v.shape(c.Line, c.Col, cp+"/kind", "converse cases must be %q statements, got %q", StmtCase, c.Kind)
			continue
		}
		v.stmt(c, cp)
	}
	for i, a := range s.Arms {
		ap := fmt.Sprintf("%s/arms/%d", path, i)
		if a == nil {
			v.shape(s.Line, s.Col, ap, "null switch arm")
			continue
		}
		if !a.Default {
			if a.Value == nil {
				v.shape(a.Line, 0, ap+"/value", "switch case requires value")
			} else {
				v.expr(a.Value, ap+"/value")
			}
		}
		if a.Body != nil {
			v.stmt(a.Body, ap+"/body")
		}
	}

	if s.Expr != nil {
		v.expr(s.Expr, path+"/expr")
	}
	if s.Target != nil {
		v.expr(s.Target, path+"/target")
	}
	for i, m := range s.Msgs {
		v.expr(m, fmt.Sprintf("%s/msgs/%d", path, i))
	}
}

func (v *validator) expr(e *Expr, path string) {
	if e == nil {
		v.shape(0, 0, path, "null expression")
		return
	}
	if !exprKinds[e.Kind] {
		v.shape(e.Line, e.Col, path+"/kind", "unknown expression kind %q", e.Kind)
		return
	}

	need := func(ok bool, field string) {
		if !ok {
			v.shape(e.Line, e.Col, path+"/"+field, "%s expression requires %s", e.Kind, field)
		}
	}

	switch e.Kind {
	case ExprInt:
		switch e.Width {
		case "", "byte", "long":
		default:
			v.shape(e.Line, e.Col, path+"/width", "unknown integer width %q", e.Width)
		}
	case ExprString, ExprPrefix:
		if strings.IndexByte(e.Text, 0) >= 0 {
			v.shape(e.Line, e.Col, path+"/text", "string contains a NUL byte")
		}
		if e.Kind == ExprPrefix {
			need(e.Text != "", "text")
		}
	case ExprVar:
		need(e.Var != nil, "var")
	case ExprElem:
		need(e.Var != nil, "var")
		need(e.Index != nil, "index")
	case ExprFlag, ExprDel:
		need(e.Operand != nil, "operand")
	case ExprBinary:
		need(e.Left != nil, "left")
		need(e.Right != nil, "right")
		if !knownOp(BinaryOps, e.Op) {
			v.shape(e.Line, e.Col, path+"/op", "unknown binary operator %q", e.Op)
		}
	case ExprUnary:
		need(e.Operand != nil, "operand")
		if !knownOp(UnaryOps, e.Op) {
			v.shape(e.Line, e.Col, path+"/op", "unknown unary operator %q", e.Op)
		}
	case ExprCall:
		need(e.Func != nil || e.Fn != nil, "func")
	case ExprFunRef:
		need(e.Func != nil, "func")
	case ExprNew:
		need(e.Class != nil, "class")
	}

	if e.Var != nil {
		v.variable(e.Var, e.Line, e.Col, path+"/var")
	}
	for _, c := range []struct {
		x    *Expr
		name string
	}{{e.Index, "index"}, {e.Left, "left"}, {e.Right, "right"}, {e.Operand, "operand"}, {e.Item, "item"}, {e.Fn, "fn"}} {
		if c.x != nil {
			v.expr(c.x, path+"/"+c.name)
		}
	}
	for i, x := range e.Elems {
		v.expr(x, fmt.Sprintf("%s/elems/%d", path, i))
	}
	for i, x := range e.Args {
		v.expr(x, fmt.Sprintf("%s/args/%d", path, i))
	}
}

func knownOp(ops []string, op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

// CheckSwitch calls dup for every default arm after the first one.
func CheckSwitch(s *Stmt, dup func(*Arm)) int {
	seen, n := false, 0
	for _, a := range s.Arms {
		if a == nil || !a.Default {
			continue
		}
		if seen {
			n++
			if dup != nil {
				dup(a)
			}
			continue
		}
		seen = true
	}
	return n
}

package ast

import (
	"fmt"
	"strings"
)

// Unit is one compilation unit: every function the front end resolved from
// a source file, in source order.
type Unit struct {
	Name       string      `json:"name"`
	Source     string      `json:"source,omitempty"`
	AutoNumber bool        `json:"autonumber,omitempty"`
	Functions  []*Function `json:"functions"`
}

// FunctionKind tells utility functions apart from the shape and object
// entry points the engine calls with an implicit item argument.
type FunctionKind string

const (
	KindUtility FunctionKind = "utility"
	KindShape   FunctionKind = "shape"
	KindObject  FunctionKind = "object"
)

// Function is a resolved function body. ID is nil when the function asked
// for an automatically assigned number.
type Function struct {
	Name    string       `json:"name"`
	ID      *int         `json:"id,omitempty"`
	Kind    FunctionKind `json:"kind,omitempty"`
	Returns bool         `json:"returns,omitempty"`
	Params  []string     `json:"params,omitempty"`
	Locals  int          `json:"locals,omitempty"`
	This    *Var         `json:"this,omitempty"`
	Labels  []string     `json:"labels,omitempty"`
	Strings []string     `json:"strings,omitempty"`
	Body    *Stmt        `json:"body,omitempty"`
	Line    int          `json:"line,omitempty"`
}

// Storage is where a variable lives at run time.
type Storage string

const (
	StorageLocal  Storage = "local"
	StorageParam  Storage = "param"
	StorageStatic Storage = "static"
	StorageGlobal Storage = "global"
	StorageMember Storage = "member"
)

// Var is a variable reference with its storage slot already assigned. For
// StorageGlobal, Slot is the global static index.
type Var struct {
	Name    string  `json:"name"`
	Storage Storage `json:"storage"`
	Slot    int     `json:"slot"`
}

// IsStatic reports whether the variable lives in static storage, either the
// function's own or the global table.
func (v *Var) IsStatic() bool {
	return v.Storage == StorageStatic || v.Storage == StorageGlobal
}

// Offset is the 16-bit operand addressing the variable. Global statics are
// stored as -(index+1).
func (v *Var) Offset() int {
	if v.Storage == StorageGlobal {
		return -(v.Slot + 1)
	}
	return v.Slot
}

// FuncRef names a call target.
type FuncRef struct {
	Name      string       `json:"name"`
	ID        int          `json:"id"`
	Kind      FunctionKind `json:"kind,omitempty"`
	Params    int          `json:"params"`
	Returns   bool         `json:"returns,omitempty"`
	Method    *int         `json:"method,omitempty"`
	Intrinsic bool         `json:"intrinsic,omitempty"`
}

// IsMethod reports whether the target is a class method, whose declared
// parameter count includes the receiver.
func (f *FuncRef) IsMethod() bool { return f.Method != nil && *f.Method >= 0 }

// ClassRef is the class instantiated by a new expression. Vars is the number
// of data members the constructor initializes.
type ClassRef struct {
	Name string `json:"name"`
	Num  int    `json:"num"`
	Vars int    `json:"vars"`
}

type StmtKind string

const (
	StmtBlock          StmtKind = "block"
	StmtExpr           StmtKind = "expr"
	StmtAssign         StmtKind = "assign"
	StmtIf             StmtKind = "if"
	StmtWhile          StmtKind = "while"
	StmtDoWhile        StmtKind = "dowhile"
	StmtLoop           StmtKind = "loop"
	StmtBreakable      StmtKind = "breakable"
	StmtForeach        StmtKind = "foreach"
	StmtForeachAttend  StmtKind = "foreach_attend"
	StmtReturn         StmtKind = "return"
	StmtAbort          StmtKind = "abort"
	StmtBreak          StmtKind = "break"
	StmtContinue       StmtKind = "continue"
	StmtFallthrough    StmtKind = "fallthrough"
	StmtLabel          StmtKind = "label"
	StmtGoto           StmtKind = "goto"
	StmtSwitch         StmtKind = "switch"
	StmtConverse       StmtKind = "converse"
	StmtConverseAttend StmtKind = "converse_attend"
	StmtCase           StmtKind = "case"
	StmtCaseAttend     StmtKind = "case_attend"
	StmtTryCatch       StmtKind = "trycatch"
	StmtSay            StmtKind = "say"
	StmtMessage        StmtKind = "message"
	StmtEndConv        StmtKind = "endconv"
	StmtDelete         StmtKind = "delete"
	StmtLoopStart      StmtKind = "loopstart"
)

var stmtKinds = map[StmtKind]bool{
	StmtBlock: true, StmtExpr: true, StmtAssign: true, StmtIf: true,
	StmtWhile: true, StmtDoWhile: true, StmtLoop: true, StmtBreakable: true,
	StmtForeach: true, StmtForeachAttend: true, StmtReturn: true, StmtAbort: true,
	StmtBreak: true, StmtContinue: true, StmtFallthrough: true, StmtLabel: true,
	StmtGoto: true, StmtSwitch: true, StmtConverse: true, StmtConverseAttend: true,
	StmtCase: true, StmtCaseAttend: true, StmtTryCatch: true, StmtSay: true,
	StmtMessage: true, StmtEndConv: true, StmtDelete: true, StmtLoopStart: true,
}

// CaseMatch selects how a conversation case tests the chosen answer.
type CaseMatch string

const (
	MatchStrings  CaseMatch = "strings"
	MatchVariable CaseMatch = "variable"
	MatchDefault  CaseMatch = "default"
	MatchAlways   CaseMatch = "always"
)

// Stmt is a statement node. Kind selects which of the remaining fields are
// meaningful:
//
//	block                  Stmts
//	expr, delete           Expr
//	assign                 Target, Expr
//	if                     Expr, Then, Else
//	while, dowhile         Expr, Body, Nobreak, Name
//	loop, breakable        Body, Nobreak, Name
//	foreach                Var, Array, Index, Size, Body, Nobreak, Name
//	foreach_attend         Var, Array, Index, Size, Label
//	return, abort          Expr
//	break, continue        Name
//	label, goto            Name
//	switch                 Expr, Arms
//	converse               Expr (answers), Body, Cases, Nobreak, Nested, Name
//	converse_attend        Label
//	case                   Match, Strings, Expr (variable), Remove, Body
//	case_attend            Match, Strings, Expr, Remove, Value, Label
//	trycatch               Body, Var, Catch
//	say, message           Msgs
type Stmt struct {
	Kind StmtKind `json:"kind"`
	Line int      `json:"line,omitempty"`
	Col  int      `json:"col,omitempty"`

	Stmts   []*Stmt `json:"stmts,omitempty"`
	Expr    *Expr   `json:"expr,omitempty"`
	Target  *Expr   `json:"target,omitempty"`
	Then    *Stmt   `json:"then,omitempty"`
	Else    *Stmt   `json:"else,omitempty"`
	Body    *Stmt   `json:"body,omitempty"`
	Nobreak *Stmt   `json:"nobreak,omitempty"`
	Catch   *Stmt   `json:"catch,omitempty"`

	Name  string `json:"name,omitempty"`
	Label string `json:"label,omitempty"`

	Var   *Var `json:"var,omitempty"`
	Array *Var `json:"array,omitempty"`
	Index *Var `json:"index,omitempty"`
	Size  *Var `json:"size,omitempty"`

	Arms    []*Arm    `json:"arms,omitempty"`
	Cases   []*Stmt   `json:"cases,omitempty"`
	Match   CaseMatch `json:"match,omitempty"`
	Strings []string  `json:"strings,omitempty"`
	Remove  bool      `json:"remove,omitempty"`
	Value   int       `json:"value,omitempty"`
	Nested  bool      `json:"nested,omitempty"`
	Msgs    []*Expr   `json:"msgs,omitempty"`
}

// Arm is one case of a switch statement.
type Arm struct {
	Default bool  `json:"default,omitempty"`
	Value   *Expr `json:"value,omitempty"`
	Body    *Stmt `json:"body,omitempty"`
	Line    int   `json:"line,omitempty"`
}

// FallsThrough reports whether control leaves s at its end by an explicit
// fallthrough, or by a case that always does.
func (s *Stmt) FallsThrough() bool {
	if s == nil {
		return false
	}
	switch s.Kind {
	case StmtFallthrough:
		return true
	case StmtBlock:
		return len(s.Stmts) > 0 && s.Stmts[len(s.Stmts)-1].FallsThrough()
	case StmtCase:
		return s.Match == MatchAlways || s.Body.FallsThrough()
	}
	return false
}

type ExprKind string

const (
	ExprInt    ExprKind = "int"
	ExprBool   ExprKind = "bool"
	ExprString ExprKind = "string"
	ExprPrefix ExprKind = "prefix"
	ExprVar    ExprKind = "var"
	ExprElem   ExprKind = "elem"
	ExprFlag   ExprKind = "flag"
	ExprBinary ExprKind = "binary"
	ExprUnary  ExprKind = "unary"
	ExprArray  ExprKind = "array"
	ExprCall   ExprKind = "call"
	ExprItem   ExprKind = "item"
	ExprEvent  ExprKind = "event"
	ExprChoice ExprKind = "choice"
	ExprFunRef ExprKind = "funref"
	ExprNew    ExprKind = "new"
	ExprDel    ExprKind = "del"
)

var exprKinds = map[ExprKind]bool{
	ExprInt: true, ExprBool: true, ExprString: true, ExprPrefix: true,
	ExprVar: true, ExprElem: true, ExprFlag: true, ExprBinary: true,
	ExprUnary: true, ExprArray: true, ExprCall: true, ExprItem: true,
	ExprEvent: true, ExprChoice: true, ExprFunRef: true, ExprNew: true,
	ExprDel: true,
}

// Binary and unary operator spellings.
var (
	BinaryOps = []string{"+", "-", "*", "/", "%", ">", "<", ">=", "<=", "!=", "==", "&&", "||", "&", "in"}
	UnaryOps  = []string{"!"}
)

// Expr is an expression node. Kind selects the meaningful fields:
//
//	int           Value, Width ("byte" or "long" to force an encoding)
//	bool          Value (non-zero is true)
//	string        Text
//	prefix        Text
//	var           Var
//	elem          Var (the array), Index
//	flag          Operand (flag number)
//	binary        Op, Left, Right
//	unary         Op, Operand
//	array         Elems
//	call          Func, Args, Item, Original, Scope; Fn for indirect calls
//	funref        Func
//	new           Class, Args
//	del           Operand
type Expr struct {
	Kind ExprKind `json:"kind"`
	Line int      `json:"line,omitempty"`
	Col  int      `json:"col,omitempty"`

	Value int    `json:"value,omitempty"`
	Width string `json:"width,omitempty"`
	Text  string `json:"text,omitempty"`
	Var   *Var   `json:"var,omitempty"`
	Index *Expr  `json:"index,omitempty"`

	Op      string  `json:"op,omitempty"`
	Left    *Expr   `json:"left,omitempty"`
	Right   *Expr   `json:"right,omitempty"`
	Operand *Expr   `json:"operand,omitempty"`
	Elems   []*Expr `json:"elems,omitempty"`

	Func     *FuncRef  `json:"func,omitempty"`
	Args     []*Expr   `json:"args,omitempty"`
	Item     *Expr     `json:"item,omitempty"`
	Original bool      `json:"original,omitempty"`
	Fn       *Expr     `json:"fn,omitempty"`
	Scope    *int      `json:"scope,omitempty"`
	Class    *ClassRef `json:"class,omitempty"`
}

func (s *Stmt) String() string {
	if s == nil {
		return "<nil>"
	}
	var sb strings.Builder
	writeStmt(&sb, s, 0)
	return sb.String()
}

func writeStmt(sb *strings.Builder, s *Stmt, depth int) {
	if s == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	switch s.Kind {
	case StmtBlock:
		fmt.Fprintf(sb, "%s{\n", indent)
		for _, c := range s.Stmts {
			writeStmt(sb, c, depth+1)
		}
		fmt.Fprintf(sb, "%s}\n", indent)
		return
	case StmtLabel, StmtGoto, StmtBreak, StmtContinue:
		fmt.Fprintf(sb, "%s%s %s\n", indent, s.Kind, s.Name)
		return
	}
	fmt.Fprintf(sb, "%s%s", indent, s.Kind)
	if s.Expr != nil {
		fmt.Fprintf(sb, " %s", s.Expr)
	}
	sb.WriteString("\n")
	for _, c := range []*Stmt{s.Then, s.Else, s.Body, s.Nobreak, s.Catch} {
		writeStmt(sb, c, depth+1)
	}
	for _, c := range s.Cases {
		writeStmt(sb, c, depth+1)
	}
	for _, a := range s.Arms {
		if a.Default {
			fmt.Fprintf(sb, "%s  default:\n", indent)
		} else {
			fmt.Fprintf(sb, "%s  case %s:\n", indent, a.Value)
		}
		writeStmt(sb, a.Body, depth+2)
	}
}

func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ExprInt:
		return fmt.Sprintf("%d", e.Value)
	case ExprBool:
		return fmt.Sprintf("%v", e.Value != 0)
	case ExprString:
		return fmt.Sprintf("%q", e.Text)
	case ExprPrefix:
		return fmt.Sprintf("%q*", e.Text)
	case ExprVar:
		return e.Var.Name
	case ExprElem:
		return fmt.Sprintf("%s[%s]", e.Var.Name, e.Index)
	case ExprFlag:
		return fmt.Sprintf("gflags[%s]", e.Operand)
	case ExprBinary:
		return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
	case ExprUnary:
		return fmt.Sprintf("%s%s", e.Op, e.Operand)
	case ExprArray:
		parts := make([]string, len(e.Elems))
		for i, x := range e.Elems {
			parts[i] = x.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ExprCall:
		parts := make([]string, len(e.Args))
		for i, x := range e.Args {
			parts[i] = x.String()
		}
		name := "<indirect>"
		if e.Func != nil {
			name = e.Func.Name
		}
		return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
	case ExprFunRef:
		return "&" + e.Func.Name
	case ExprNew:
		return "new " + e.Class.Name
	case ExprDel:
		return fmt.Sprintf("delete %s", e.Operand)
	}
	return string(e.Kind)
}

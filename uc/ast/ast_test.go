package ast

import (
	"strings"
	"testing"

	"github.com/tos-network/ucc/uc/diag"
)

func decodeErr(t *testing.T, src string) diag.Diagnostics {
	t.Helper()
	u, err := DecodeUnit(strings.NewReader(src), "t.ucj")
	if err == nil {
		t.Fatalf("expected decode error, got unit %+v", u)
	}
	ds, ok := err.(diag.Diagnostics)
	if !ok {
		t.Fatalf("unexpected error type %T: %v", err, err)
	}
	return ds
}

func TestDecodeUnit(t *testing.T) {
	src := `{
  "name": "demo",
  "functions": [{
    "name": "Greet", "id": 1024, "returns": true, "params": ["who"], "locals": 1,
    "labels": ["again"],
    "body": {"kind": "block", "stmts": [
      {"kind": "label", "name": "again"},
      {"kind": "if",
       "expr": {"kind": "binary", "op": ">", "left": {"kind": "var", "var": {"name": "who", "storage": "param", "slot": 0}}, "right": {"kind": "int", "value": 3}},
       "then": {"kind": "return", "expr": {"kind": "int", "value": 1}}},
      {"kind": "say", "msgs": [{"kind": "string", "text": "Hello"}]},
      {"kind": "goto", "name": "again"}
    ]}
  }]
}`
	u, err := DecodeUnit(strings.NewReader(src), "demo.ucj")
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if u.Source != "demo.ucj" || len(u.Functions) != 1 {
		t.Fatalf("unexpected unit: %+v", u)
	}
	fn := u.Functions[0]
	if fn.Kind != KindUtility {
		t.Fatalf("default kind: got=%q want=%q", fn.Kind, KindUtility)
	}
	if fn.ID == nil || *fn.ID != 1024 {
		t.Fatalf("unexpected id: %v", fn.ID)
	}
	cond := fn.Body.Stmts[1].Expr
	if got := cond.String(); got != "(who > 3)" {
		t.Fatalf("expr string: got=%q", got)
	}
}

func TestDecodeUnknownField(t *testing.T) {
	ds := decodeErr(t, `{"name":"x","functions":[{"name":"f","bogus":1}]}`)
	if ds.Count(diag.CodeInterchangeUnknown) != 1 {
		t.Fatalf("expected %s, got %v", diag.CodeInterchangeUnknown, ds)
	}
}

func TestDecodeSyntaxErrorPosition(t *testing.T) {
	ds := decodeErr(t, "{\n  \"name\": \"x\",\n  \"functions\": [,]\n}")
	if ds.Count(diag.CodeInterchangeShape) != 1 {
		t.Fatalf("expected %s, got %v", diag.CodeInterchangeShape, ds)
	}
	if ds[0].Span.Start.Line != 3 {
		t.Fatalf("error line: got=%d want=3", ds[0].Span.Start.Line)
	}
}

func TestDecodeShapeErrors(t *testing.T) {
	ds := decodeErr(t, `{"name":"x","functions":[{"name":"f","body":{"kind":"block","stmts":[
		{"kind":"nope"},
		{"kind":"assign","expr":{"kind":"int","value":1}},
		{"kind":"expr","expr":{"kind":"binary","op":"^","left":{"kind":"int"},"right":{"kind":"int"}}},
		{"kind":"label","name":"missing"},
		{"kind":"expr","expr":{"kind":"var","var":{"name":"v","storage":"heap","slot":0}}}
	]}}]}`)
	if got := ds.Count(diag.CodeInterchangeShape); got != 5 {
		t.Fatalf("shape errors: got=%d want=5\n%v", got, ds)
	}
	want := []string{
		"/functions/0/body/stmts/0/kind",
		"/functions/0/body/stmts/1/target",
		"/functions/0/body/stmts/2/expr/op",
		"/functions/0/body/stmts/3/name",
		"/functions/0/body/stmts/4/expr/var/storage",
	}
	for i, w := range want {
		if !strings.HasPrefix(ds[i].Message, w+":") {
			t.Fatalf("diagnostic %d: got=%q want prefix %q", i, ds[i].Message, w)
		}
	}
}

func TestDuplicateSwitchDefault(t *testing.T) {
	ds := decodeErr(t, `{"name":"x","functions":[{"name":"f","body":{"kind":"switch",
		"expr":{"kind":"int","value":1},
		"arms":[{"default":true,"line":3},{"value":{"kind":"int","value":2}},{"default":true,"line":7}]}}]}`)
	if ds.Count(diag.CodeDuplicateDefault) != 1 {
		t.Fatalf("expected one %s, got %v", diag.CodeDuplicateDefault, ds)
	}
	d := ds[0]
	if d.Message != "switch statement already has a default case." || d.Span.Start.Line != 7 {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
}

func TestCheckSwitch(t *testing.T) {
	s := &Stmt{Kind: StmtSwitch, Arms: []*Arm{{Default: true}, {Default: true}, {Default: true}}}
	var dups []*Arm
	if n := CheckSwitch(s, func(a *Arm) { dups = append(dups, a) }); n != 2 {
		t.Fatalf("duplicates: got=%d want=2", n)
	}
	if dups[0] != s.Arms[1] || dups[1] != s.Arms[2] {
		t.Fatalf("wrong arms reported")
	}
}

func TestFallsThrough(t *testing.T) {
	ft := &Stmt{Kind: StmtFallthrough}
	cases := []struct {
		s    *Stmt
		want bool
	}{
		{nil, false},
		{ft, true},
		{&Stmt{Kind: StmtBlock, Stmts: []*Stmt{{Kind: StmtSay}, ft}}, true},
		{&Stmt{Kind: StmtBlock, Stmts: []*Stmt{ft, {Kind: StmtSay}}}, false},
		{&Stmt{Kind: StmtCase, Match: MatchAlways}, true},
		{&Stmt{Kind: StmtCase, Match: MatchStrings, Body: &Stmt{Kind: StmtBlock}}, false},
	}
	for i, c := range cases {
		if got := c.s.FallsThrough(); got != c.want {
			t.Fatalf("case %d: got=%v want=%v", i, got, c.want)
		}
	}
}

func TestVarOffset(t *testing.T) {
	g := &Var{Name: "g", Storage: StorageGlobal, Slot: 4}
	if g.Offset() != -5 || !g.IsStatic() {
		t.Fatalf("global offset: got=%d", g.Offset())
	}
	l := &Var{Name: "l", Storage: StorageLocal, Slot: 4}
	if l.Offset() != 4 || l.IsStatic() {
		t.Fatalf("local offset: got=%d", l.Offset())
	}
}

package ucc

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tos-network/ucc/uc/ast"
	"github.com/tos-network/ucc/uc/diag"
	"github.com/tos-network/ucc/uc/opcode"
	"github.com/tos-network/ucc/uc/record"
)

const greetUnit = `{
  "name": "greet",
  "autonumber": true,
  "functions": [
    {"name": "Greet", "id": 1024, "body": {"kind": "block", "stmts": [
      {"kind": "say", "msgs": [{"kind": "string", "text": "Hello"}]}
    ]}},
    {"name": "Twice", "returns": true, "params": ["n"], "body": {"kind": "block", "stmts": [
      {"kind": "return", "expr": {"kind": "binary", "op": "*",
        "left": {"kind": "var", "var": {"name": "n", "storage": "param", "slot": 0}},
        "right": {"kind": "int", "value": 2}}}
    ]}}
  ]
}`

func compileGreet(t *testing.T, opts *Options) *Output {
	t.Helper()
	out, err := CompileJSON(context.Background(), strings.NewReader(greetUnit), "greet.ucj", opts)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	return out
}

func TestCompileJSON(t *testing.T) {
	out := compileGreet(t, nil)
	if out.Name != "greet" || out.Source != "greet.ucj" {
		t.Fatalf("unexpected output identity: name=%q source=%q", out.Name, out.Source)
	}
	if len(out.Functions) != 2 || len(out.Warnings) != 0 {
		t.Fatalf("unexpected output: functions=%d warnings=%v", len(out.Functions), out.Warnings)
	}

	greet := out.Functions[0].Record
	if greet.ID != 0x400 || greet.Wide {
		t.Fatalf("greet header: id=%#x wide=%v", greet.ID, greet.Wide)
	}
	want := []byte{byte(opcode.AddSI), 0, 0, byte(opcode.Say), byte(opcode.Ret)}
	if !bytes.Equal(greet.Code, want) {
		t.Fatalf("greet code: got=% x want=% x", greet.Code, want)
	}
	if string(greet.Text) != "Hello\x00" || greet.Size() != 23 {
		t.Fatalf("greet record: text=%q size=%d", greet.Text, greet.Size())
	}

	// autonumbered right after the explicit id
	if id := out.Functions[1].Record.ID; id != 0 {
		t.Fatalf("twice id: got=%#x want=0", id)
	}

	recs, err := record.Split(out.Bytes())
	if err != nil {
		t.Fatalf("split output: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != 0x400 || recs[1].Params != 1 {
		t.Fatalf("split records: %+v", recs)
	}
}

func TestCompileJSONDeterministic(t *testing.T) {
	a, err := CompileJSONToBytes(context.Background(), []byte(greetUnit), "greet.ucj", nil)
	if err != nil {
		t.Fatalf("first compile: %v", err)
	}
	b, err := CompileJSONToBytes(context.Background(), []byte(greetUnit), "greet.ucj", nil)
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("compilation is not deterministic:\n% x\n% x", a, b)
	}
}

func TestCompileUnitReportsErrors(t *testing.T) {
	src := `{"name":"bad","functions":[
	  {"name":"Stray","id":1,"body":{"kind":"block","stmts":[{"kind":"break","line":3,"col":5}]}},
	  {"name":"Fine","id":2,"body":{"kind":"block"}}
	]}`
	out, err := CompileJSON(context.Background(), strings.NewReader(src), "bad.ucj", nil)
	if err == nil {
		t.Fatalf("expected compile error, got output %+v", out)
	}
	ds, ok := err.(diag.Diagnostics)
	if !ok {
		t.Fatalf("unexpected error type %T: %v", err, err)
	}
	if ds.Count(diag.CodeBreakOutsideLoop) != 1 {
		t.Fatalf("diagnostics: got=%v", ds)
	}
	if sp := ds[0].Span; sp.File != "bad.ucj" || sp.Start.Line != 3 || sp.Start.Column != 5 {
		t.Fatalf("span: got=%+v", sp)
	}
}

func TestCompileUnitChecksSwitchDefaults(t *testing.T) {
	p0 := &ast.Var{Name: "p0", Storage: ast.StorageParam}
	id := 0x400
	u := &ast.Unit{Name: "dup", Source: "dup.ucj", Functions: []*ast.Function{{
		Name:   "Pick",
		ID:     &id,
		Params: []string{"p0"},
		Body: &ast.Stmt{Kind: ast.StmtSwitch, Expr: &ast.Expr{Kind: ast.ExprVar, Var: p0}, Arms: []*ast.Arm{
			{Default: true, Body: &ast.Stmt{Kind: ast.StmtBlock}, Line: 4},
			{Default: true, Body: &ast.Stmt{Kind: ast.StmtBlock}, Line: 6},
		}},
	}}}
	out, err := CompileUnit(context.Background(), u, nil)
	if err == nil {
		t.Fatalf("expected compile error, got output %+v", out)
	}
	ds, ok := err.(diag.Diagnostics)
	if !ok {
		t.Fatalf("unexpected error type %T: %v", err, err)
	}
	if ds.Count(diag.CodeDuplicateDefault) != 1 || ds[0].Span.Start.Line != 6 {
		t.Fatalf("diagnostics: got=%v", ds)
	}
}

func TestCompileUnitWarnings(t *testing.T) {
	src := `{"name":"warn","functions":[{"name":"NoID","body":{"kind":"block"}}]}`
	out, err := CompileJSON(context.Background(), strings.NewReader(src), "warn.ucj", nil)
	if err != nil {
		t.Fatalf("warnings must not fail the run: %v", err)
	}
	if out.Warnings.Count(diag.CodeAutoNumber) != 1 {
		t.Fatalf("warnings: got=%v", out.Warnings)
	}
}

func TestCompileJSONDecodeError(t *testing.T) {
	_, err := CompileJSON(context.Background(), strings.NewReader(`{"name":"x","functions":[{"name":"f","oops":1}]}`), "x.ucj", nil)
	ds, ok := err.(diag.Diagnostics)
	if !ok || ds.Count(diag.CodeInterchangeUnknown) != 1 {
		t.Fatalf("decode error: got=%v", err)
	}
}

func TestCompileUnitNil(t *testing.T) {
	if _, err := CompileUnit(context.Background(), nil, nil); err == nil {
		t.Fatalf("nil unit accepted")
	}
}

func TestTraceDump(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Trace = &buf
	compileGreet(t, opts)

	dump := buf.String()
	for _, want := range []string{"== Greet (0x400) raw", "== Greet (0x400) optimized", "== Twice (0x0) layout"} {
		if !strings.Contains(dump, want) {
			t.Fatalf("trace dump lacks %q:\n%s", want, dump)
		}
	}
}

func TestIntrinsicOverride(t *testing.T) {
	src := `{"name":"talk","functions":[{"name":"Talk","id":1,"body":{"kind":"block","stmts":[
	  {"kind":"converse","expr":{"kind":"string","text":"Bye"},"cases":[
	    {"kind":"case","match":"strings","strings":["Bye"],"body":{"kind":"break"}}
	  ]}
	]}}]}`
	opts := DefaultOptions()
	opts.Intrinsics.AddAnswer = 0x1234
	out, err := CompileJSON(context.Background(), strings.NewReader(src), "talk.ucj", opts)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
	ins, err := record.DecodeCode(out.Functions[0].Record.Code)
	if err != nil {
		t.Fatalf("decode code: %v", err)
	}
	if ins[1].Op != opcode.CallI || !bytes.Equal(ins[1].Params, []byte{0x34, 0x12, 0x01}) {
		t.Fatalf("add_answer call: got=%v", ins[1])
	}
}

func TestWriteListing(t *testing.T) {
	out := compileGreet(t, nil)
	recs := []*record.Record{out.Functions[0].Record, out.Functions[1].Record}

	var buf bytes.Buffer
	if err := WriteListing(&buf, recs, []string{"Greet"}); err != nil {
		t.Fatalf("listing: %v", err)
	}
	text := buf.String()
	for _, want := range []string{
		"function 0x400 Greet (compact header, 23 bytes)",
		`.text 0000 "Hello"`,
		"ADDSI",
		"function 0x0 (compact header",
		"params=1 locals=0",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("listing lacks %q:\n%s", want, text)
		}
	}
}

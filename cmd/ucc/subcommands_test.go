package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tos-network/ucc"
	"github.com/tos-network/ucc/uc/codegen"
)

const sampleUnit = `{"name":"sample","functions":[
  {"name":"Hello","id":1024,"body":{"kind":"block","stmts":[
    {"kind":"say","msgs":[{"kind":"string","text":"Hello"}]}
  ]}},
  {"name":"Other","id":1025,"params":["a"],"body":{"kind":"block"}}
]}`

func writeSample(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultArtifactPath(t *testing.T) {
	input := "/tmp/unit.ucj"
	if got, want := defaultArtifactPath(input, "ucx"), "/tmp/unit.ucx"; got != want {
		t.Fatalf("defaultArtifactPath ucx: got=%q want=%q", got, want)
	}
	if got, want := defaultArtifactPath(input, "raw"), "/tmp/unit.uc"; got != want {
		t.Fatalf("defaultArtifactPath raw: got=%q want=%q", got, want)
	}
}

func TestApplyIntrinsics(t *testing.T) {
	in := codegen.DefaultIntrinsics()
	if err := applyIntrinsics(&in, []string{"add_answer=0x99", "pop_answers=12"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if in.AddAnswer != 0x99 || in.PopAnswers != 12 || in.RemoveAnswer != 0x06 {
		t.Fatalf("intrinsics: got=%+v", in)
	}
	if err := applyIntrinsics(&in, []string{"bogus=1"}); err == nil {
		t.Fatalf("unknown intrinsic accepted")
	}
	if err := applyIntrinsics(&in, []string{"add_answer"}); err == nil {
		t.Fatalf("override without value accepted")
	}
}

func TestCmdCompileDefaultUCXOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeSample(t, dir, "sample.ucj", sampleUnit)

	if code := cmdCompile([]string{input}); code != 0 {
		t.Fatalf("cmdCompile exit code: got=%d want=0", code)
	}
	body, err := os.ReadFile(filepath.Join(dir, "sample.ucx"))
	if err != nil {
		t.Fatalf("read output ucx: %v", err)
	}
	art, err := ucc.DecodeUCX(body)
	if err != nil {
		t.Fatalf("decode output ucx: %v", err)
	}
	if len(art.Functions) != 2 || art.Functions[1].Name != "Other" {
		t.Fatalf("functions: %+v", art.Functions)
	}
}

func TestCmdCompileRaw(t *testing.T) {
	dir := t.TempDir()
	input := writeSample(t, dir, "sample.ucj", sampleUnit)
	out := filepath.Join(dir, "out.uc")

	if code := cmdCompile([]string{"--emit", "raw", "-o", out, input}); code != 0 {
		t.Fatalf("cmdCompile exit code: got=%d want=0", code)
	}
	body, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if ucc.IsUCX(body) {
		t.Fatalf("raw output carries the container magic")
	}
	recs, err := ucc.Records(body)
	if err != nil || len(recs) != 2 {
		t.Fatalf("records: n=%d err=%v", len(recs), err)
	}
}

func TestCmdCompileFailures(t *testing.T) {
	dir := t.TempDir()
	bad := writeSample(t, dir, "bad.ucj", `{"name":"bad","functions":[{"name":"F","id":1,"body":{"kind":"break"}}]}`)
	if code := cmdCompile([]string{bad}); code != 1 {
		t.Fatalf("compile with errors: got=%d want=1", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.ucx")); !os.IsNotExist(err) {
		t.Fatalf("failed run wrote output: %v", err)
	}

	input := writeSample(t, dir, "sample.ucj", sampleUnit)
	if code := cmdCompile([]string{"--emit", "toc", input}); code != 1 {
		t.Fatalf("bad emit: got=%d want=1", code)
	}
	if code := cmdCompile([]string{"--game", "u8", input}); code != 1 {
		t.Fatalf("bad game: got=%d want=1", code)
	}
	if code := cmdCompile(nil); code != 1 {
		t.Fatalf("missing input: got=%d want=1", code)
	}
}

func TestCmdVerifyUCXSourceMismatchExitCode(t *testing.T) {
	dir := t.TempDir()
	input := writeSample(t, dir, "sample.ucj", sampleUnit)
	ucxPath := filepath.Join(dir, "sample.ucx")
	if code := cmdCompile([]string{"-o", ucxPath, input}); code != 0 {
		t.Fatalf("compile exit code: got=%d want=0", code)
	}

	if code := cmdVerify([]string{"--source", input, ucxPath}); code != 0 {
		t.Fatalf("verify matching source: got=%d want=0", code)
	}
	other := writeSample(t, dir, "other.ucj", strings.Replace(sampleUnit, "Hello", "Howdy", 1))
	if code := cmdVerify([]string{"--source", other, ucxPath}); code != 2 {
		t.Fatalf("verify mismatch exit code: got=%d want=2", code)
	}

	corrupt := writeSample(t, dir, "corrupt.ucx", "UCX\x00\x00\x01")
	if code := cmdVerify([]string{corrupt}); code != 1 {
		t.Fatalf("verify corrupt artifact: got=%d want=1", code)
	}
}

func TestCmdInspectAndDisasm(t *testing.T) {
	dir := t.TempDir()
	input := writeSample(t, dir, "sample.ucj", sampleUnit)
	ucxPath := filepath.Join(dir, "sample.ucx")
	if code := cmdCompile([]string{"-o", ucxPath, input}); code != 0 {
		t.Fatalf("compile exit code: got=%d want=0", code)
	}
	if code := cmdInspect([]string{"--json", ucxPath}); code != 0 {
		t.Fatalf("inspect --json: got=%d want=0", code)
	}
	if code := cmdInspect([]string{ucxPath}); code != 0 {
		t.Fatalf("inspect: got=%d want=0", code)
	}
	if code := cmdDisasm([]string{ucxPath}); code != 0 {
		t.Fatalf("disasm: got=%d want=0", code)
	}
	if code := cmdInspect([]string{input}); code != 1 {
		t.Fatalf("inspect of a non-artifact: got=%d want=1", code)
	}
}

func TestDispatchSubcommand(t *testing.T) {
	if ok, _ := dispatchSubcommand([]string{"bogus"}); ok {
		t.Fatalf("unknown subcommand dispatched")
	}
	if ok, code := dispatchSubcommand([]string{"--version"}); !ok || code != 0 {
		t.Fatalf("--version: ok=%v code=%d", ok, code)
	}
	if code := mainAux([]string{"bogus"}); code != 1 {
		t.Fatalf("mainAux unknown subcommand: got=%d want=1", code)
	}
}

func TestExplorer(t *testing.T) {
	body, err := ucc.CompileJSONToUCX(context.Background(), []byte(sampleUnit), "sample.ucj", nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	e, err := newExplorer(body)
	if err != nil {
		t.Fatalf("explorer: %v", err)
	}

	run := func(line string) string {
		var buf bytes.Buffer
		if !e.exec(&buf, line) {
			t.Fatalf("%q ended the shell", line)
		}
		return buf.String()
	}

	if out := run("list"); !strings.Contains(out, "Hello") || !strings.Contains(out, "Other") {
		t.Fatalf("list:\n%s", out)
	}
	if out := run("show Hello"); !strings.Contains(out, "ADDSI") || !strings.Contains(out, `"Hello"`) {
		t.Fatalf("show:\n%s", out)
	}
	if out := run("show 0x401"); !strings.Contains(out, "Other") {
		t.Fatalf("show by id:\n%s", out)
	}
	if out := run("strings 0"); strings.TrimSpace(out) != `0000 "Hello"` {
		t.Fatalf("strings: got=%q", out)
	}
	if out := run("hash"); !strings.Contains(out, "unit") {
		t.Fatalf("hash:\n%s", out)
	}
	if out := run("show 7"); !strings.Contains(out, "no function") {
		t.Fatalf("missing function: got=%q", out)
	}
	if e.exec(&bytes.Buffer{}, "quit") {
		t.Fatalf("quit did not end the shell")
	}
}

package ucc

import (
	"bytes"
	"context"
	"io"

	"github.com/nikandfor/errors"
	"github.com/nikandfor/tlog"

	"github.com/tos-network/ucc/uc/ast"
	"github.com/tos-network/ucc/uc/codegen"
	"github.com/tos-network/ucc/uc/diag"
	"github.com/tos-network/ucc/uc/record"
)

// CompiledFunction is one function of a compiled unit.
type CompiledFunction struct {
	Name   string
	Record *record.Record
}

// Output is the result of a successful compilation run. Warnings holds the
// non-fatal diagnostics reported along the way.
type Output struct {
	Name      string
	Source    string
	Functions []CompiledFunction
	Warnings  diag.Diagnostics
}

// Bytes concatenates the function records in unit order, the layout a
// Usecode file expects.
func (o *Output) Bytes() []byte {
	var n int
	for _, f := range o.Functions {
		n += f.Record.Size()
	}
	out := make([]byte, 0, n)
	for _, f := range o.Functions {
		out = f.Record.AppendTo(out)
	}
	return out
}

// CompileUnit translates every function of the unit. Functions are compiled
// one after another in one session; every function is generated even after
// an error so all problems surface in one run. When any error was reported
// the whole diagnostic list is returned as the error and no output is
// produced.
func CompileUnit(ctx context.Context, u *ast.Unit, opts *Options) (out *Output, err error) {
	if u == nil {
		return nil, errors.New("nil unit")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile unit", "name", u.Name, "functions", len(u.Functions))
	defer tr.Finish("err", &err)

	s := codegen.NewSession(u.Source, opts.Intrinsics, opts.AutoNumberBase)
	s.AutoNumber = u.AutoNumber

	out = &Output{Name: u.Name, Source: u.Source}
	for _, fn := range u.Functions {
		f := codegen.NewFunction(s, fn)
		f.Dump = opts.Trace

		rec, gerr := f.Generate(ctx)
		if gerr != nil {
			// already reported to the session
			continue
		}
		out.Functions = append(out.Functions, CompiledFunction{Name: fn.Name, Record: rec})
	}

	ds := s.Diagnostics()
	tr.Printw("compiled", "records", len(out.Functions), "errors", s.ErrorCount(), "warnings", len(ds.Warnings()))

	if s.ErrorCount() > 0 {
		return nil, ds
	}
	out.Warnings = ds.Warnings()
	return out, nil
}

// CompileJSON decodes a unit in its interchange form and compiles it.
func CompileJSON(ctx context.Context, r io.Reader, file string, opts *Options) (*Output, error) {
	u, err := ast.DecodeUnit(r, file)
	if err != nil {
		return nil, err
	}
	return CompileUnit(ctx, u, opts)
}

// CompileJSONToBytes is CompileJSON returning the concatenated records.
func CompileJSONToBytes(ctx context.Context, src []byte, file string, opts *Options) ([]byte, error) {
	out, err := CompileJSON(ctx, bytes.NewReader(src), file, opts)
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nikandfor/errors"

	"github.com/tos-network/ucc"
	"github.com/tos-network/ucc/uc/codegen"
	"github.com/tos-network/ucc/uc/diag"
	"github.com/tos-network/ucc/uc/record"
)

// intrinsicFlags collects repeated --intrinsic name=num overrides.
type intrinsicFlags []string

func (f *intrinsicFlags) String() string { return strings.Join(*f, ",") }

func (f *intrinsicFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func applyIntrinsics(in *codegen.Intrinsics, overrides []string) error {
	for _, o := range overrides {
		name, val, ok := strings.Cut(o, "=")
		if !ok {
			return errors.New("intrinsic override %q: want name=num", o)
		}
		num, err := strconv.ParseInt(strings.TrimSpace(val), 0, 32)
		if err != nil {
			return errors.Wrap(err, "intrinsic %v", name)
		}
		switch strings.TrimSpace(name) {
		case "add_answer":
			in.AddAnswer = int(num)
		case "remove_answer":
			in.RemoveAnswer = int(num)
		case "push_answers":
			in.PushAnswers = int(num)
		case "pop_answers":
			in.PopAnswers = int(num)
		default:
			return errors.New("unknown intrinsic %q", name)
		}
	}
	return nil
}

func cmdCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var emit, output, game string
	var base int
	var list, trace bool
	var overrides intrinsicFlags
	fs.StringVar(&emit, "emit", "ucx", "emit format: ucx|raw")
	fs.StringVar(&output, "o", "", "output path")
	fs.StringVar(&output, "output", "", "output path")
	fs.StringVar(&game, "game", "bg", "intrinsic table: bg|si")
	fs.Var(&overrides, "intrinsic", "override one intrinsic number, name=num (repeatable)")
	fs.IntVar(&base, "autonumber-base", 0, "first number for functions without an id")
	fs.BoolVar(&list, "list", false, "print a listing of the compiled functions")
	fs.BoolVar(&trace, "trace", false, "dump block graphs and layouts to stderr")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ucc compile [--emit ucx|raw] [-o <output>] [options] <input.ucj>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "compile requires exactly one input .ucj file")
		fs.Usage()
		return 1
	}

	emit = strings.ToLower(strings.TrimSpace(emit))
	switch emit {
	case "ucx", "raw":
	default:
		fmt.Printf("unsupported --emit value %q (expected ucx|raw)\n", emit)
		return 1
	}

	opts := ucc.DefaultOptions()
	in, ok := ucc.GamePresets[strings.ToLower(game)]
	if !ok {
		fmt.Printf("unknown --game %q (expected bg|si)\n", game)
		return 1
	}
	opts.Intrinsics = in
	if err := applyIntrinsics(&opts.Intrinsics, overrides); err != nil {
		fmt.Println(err.Error())
		return 1
	}
	opts.AutoNumberBase = base
	if trace {
		opts.Trace = os.Stderr
	}

	input := fs.Arg(0)
	source, err := os.ReadFile(input)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}

	out, err := ucc.CompileJSON(context.Background(), bytes.NewReader(source), input, opts)
	if err != nil {
		printDiagnostics(err)
		return 1
	}
	for _, w := range out.Warnings {
		fmt.Fprintln(os.Stderr, w.Error())
	}

	var body []byte
	if emit == "ucx" {
		body, err = ucc.EncodeUCX(ucc.NewUCX(out, source))
		if err != nil {
			fmt.Println(err.Error())
			return 1
		}
	} else {
		body = out.Bytes()
	}
	if output == "" {
		output = defaultArtifactPath(input, emit)
	}
	if err := os.WriteFile(output, body, 0o644); err != nil {
		fmt.Println(err.Error())
		return 1
	}

	if list {
		names := make([]string, len(out.Functions))
		recs := make([]*record.Record, len(out.Functions))
		for i, f := range out.Functions {
			names[i] = f.Name
			recs[i] = f.Record
		}
		if err := ucc.WriteListing(os.Stdout, recs, names); err != nil {
			fmt.Println(err.Error())
			return 1
		}
	}
	return 0
}

func printDiagnostics(err error) {
	ds, ok := err.(diag.Diagnostics)
	if !ok {
		fmt.Println(err.Error())
		return
	}
	for _, d := range ds {
		fmt.Println(d.Error())
	}
	fmt.Printf("%d error(s)\n", len(ds.Errors()))
}

func cmdInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var asJSON bool
	fs.BoolVar(&asJSON, "json", false, "output JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ucc inspect [--json] <artifact.ucx>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "inspect requires exactly one artifact path")
		fs.Usage()
		return 1
	}

	body, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}
	art, err := ucc.DecodeUCX(body)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}

	if asJSON {
		type functionInfo struct {
			Name  string `json:"name"`
			ID    string `json:"id"`
			Bytes int    `json:"bytes"`
			Hash  string `json:"hash"`
		}
		out := struct {
			Version    uint16         `json:"version"`
			Compiler   string         `json:"compiler"`
			Name       string         `json:"name"`
			Source     string         `json:"source,omitempty"`
			SourceHash string         `json:"source_hash"`
			UnitHash   string         `json:"unit_hash"`
			Functions  []functionInfo `json:"functions"`
		}{
			Version:    art.Version,
			Compiler:   art.Compiler,
			Name:       art.Name,
			Source:     art.Source,
			SourceHash: art.SourceHash,
			UnitHash:   art.UnitHash,
			Functions:  make([]functionInfo, 0, len(art.Functions)),
		}
		for _, f := range art.Functions {
			out.Functions = append(out.Functions, functionInfo{
				Name:  f.Name,
				ID:    fmt.Sprintf("%#04x", f.ID),
				Bytes: len(f.Record),
				Hash:  f.Hash,
			})
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Println(err.Error())
			return 1
		}
		fmt.Println(string(b))
		return 0
	}

	fmt.Printf("UCX version: %d\n", art.Version)
	fmt.Printf("Compiler: %s\n", art.Compiler)
	fmt.Printf("Unit: %s\n", art.Name)
	if art.Source != "" {
		fmt.Printf("Source: %s\n", art.Source)
	}
	fmt.Printf("Source hash: %s\n", art.SourceHash)
	fmt.Printf("Unit hash: %s\n", art.UnitHash)
	fmt.Printf("Functions: %d\n", len(art.Functions))
	for _, f := range sortedFunctions(art) {
		fmt.Printf(" - %#04x %s (%d bytes) %s\n", f.ID, f.Name, len(f.Record), f.Hash)
	}
	return 0
}

func sortedFunctions(art *ucc.UCXArtifact) []ucc.UCXFunction {
	out := append([]ucc.UCXFunction(nil), art.Functions...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cmdVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var sourcePath string
	fs.StringVar(&sourcePath, "source", "", "interchange file for source_hash verification")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ucc verify [--source <file.ucj>] <artifact.ucx>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "verify requires exactly one artifact path")
		fs.Usage()
		return 1
	}

	body, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}
	art, err := ucc.DecodeUCX(body)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}
	if strings.TrimSpace(sourcePath) != "" {
		source, err := os.ReadFile(sourcePath)
		if err != nil {
			fmt.Println(err.Error())
			return 1
		}
		if err := ucc.VerifyUCXSourceHash(art, source); err != nil {
			fmt.Println(err.Error())
			return 2
		}
	}
	fmt.Println("UCX: ok")
	return 0
}

func cmdDisasm(args []string) int {
	fs := flag.NewFlagSet("disasm", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ucc disasm <artifact.ucx|records.uc>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "disasm requires exactly one input path")
		fs.Usage()
		return 1
	}

	body, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}
	recs, err := ucc.Records(body)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}
	var names []string
	if ucc.IsUCX(body) {
		art, _ := ucc.DecodeUCX(body)
		for _, f := range art.Functions {
			names = append(names, f.Name)
		}
	}
	if err := ucc.WriteListing(os.Stdout, recs, names); err != nil {
		fmt.Println(err.Error())
		return 1
	}
	return 0
}

func defaultArtifactPath(input, emit string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	if emit == "raw" {
		return base + ".uc"
	}
	return base + "." + emit
}

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tos-network/ucc"
	"github.com/tos-network/ucc/uc/record"
)

// explorer answers shell commands about one loaded artifact.
type explorer struct {
	art   *ucc.UCXArtifact // nil for a raw record file
	recs  []*record.Record
	names []string
}

func newExplorer(body []byte) (*explorer, error) {
	recs, err := ucc.Records(body)
	if err != nil {
		return nil, err
	}
	e := &explorer{recs: recs}
	if ucc.IsUCX(body) {
		if e.art, err = ucc.DecodeUCX(body); err != nil {
			return nil, err
		}
		for _, f := range e.art.Functions {
			e.names = append(e.names, f.Name)
		}
	}
	return e, nil
}

// find resolves a function by list index, function number or name.
func (e *explorer) find(arg string) (int, bool) {
	for i, n := range e.names {
		if n == arg {
			return i, true
		}
	}
	if strings.HasPrefix(arg, "0x") {
		id, err := strconv.ParseInt(arg[2:], 16, 64)
		if err != nil {
			return 0, false
		}
		for i, r := range e.recs {
			if int64(r.ID) == id {
				return i, true
			}
		}
		return 0, false
	}
	i, err := strconv.Atoi(arg)
	if err != nil || i < 0 || i >= len(e.recs) {
		return 0, false
	}
	return i, true
}

// exec runs one command line. It returns false when the shell should exit.
func (e *explorer) exec(w io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch fields[0] {
	case "quit", "exit", "q":
		return false
	case "help", "?":
		fmt.Fprint(w, `commands:
  list             list functions
  show <fn>        header, text pool and disassembly of one function
  strings <fn>     text pool of one function
  links <fn>       link table of one function
  hash             artifact hashes
  quit             leave the shell
<fn> is a list index, a 0x function number or a name
`)
	case "list", "ls":
		for i, r := range e.recs {
			fmt.Fprintf(w, "%3d  %#06x  %-24s params=%d locals=%d code=%d\n",
				i, r.ID, nameAt(e.names, i), r.Params, r.Locals, len(r.Code))
		}
	case "show", "strings", "links":
		if len(fields) != 2 {
			fmt.Fprintf(w, "usage: %s <fn>\n", fields[0])
			return true
		}
		i, ok := e.find(fields[1])
		if !ok {
			fmt.Fprintf(w, "no function %q\n", fields[1])
			return true
		}
		e.describe(w, fields[0], i)
	case "hash":
		if e.art == nil {
			fmt.Fprintln(w, "raw record file: no hashes")
			return true
		}
		fmt.Fprintf(w, "source %s\nunit   %s\n", e.art.SourceHash, e.art.UnitHash)
		for _, f := range e.art.Functions {
			fmt.Fprintf(w, "%#06x %s %s\n", f.ID, f.Hash, f.Name)
		}
	default:
		fmt.Fprintf(w, "unknown command %q, try help\n", fields[0])
	}
	return true
}

func (e *explorer) describe(w io.Writer, what string, i int) {
	r := e.recs[i]
	switch what {
	case "show":
		if err := ucc.WriteListing(w, []*record.Record{r}, []string{nameAt(e.names, i)}); err != nil {
			fmt.Fprintln(w, err.Error())
		}
	case "strings":
		text := r.Strings()
		for off := 0; off < len(r.Text); {
			s := text[off]
			fmt.Fprintf(w, "%04x %q\n", off, s)
			off += len(s) + 1
		}
	case "links":
		for j, l := range r.Links {
			fmt.Fprintf(w, "%d %#06x\n", j, l)
		}
	}
}

func nameAt(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return ""
}

func cmdExplore(args []string) int {
	fs := flag.NewFlagSet("explore", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ucc explore <artifact.ucx|records.uc>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "explore requires exactly one input path")
		fs.Usage()
		return 1
	}

	body, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}
	e, err := newExplorer(body)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}

	fmt.Println(ucc.PackageCopyRight)
	doShell(e)
	return 0
}

// doShell reads commands until EOF or quit.
func doShell(e *explorer) {
	rl, err := readline.New("ucx> ")
	if err != nil {
		fmt.Println(err)
		return
	}
	defer rl.Close()
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or interrupt
			return
		}
		if !e.exec(rl.Stdout(), line) {
			return
		}
	}
}

package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/nikandfor/tlog"

	"github.com/tos-network/ucc"
)

func main() {
	os.Exit(mainAux(os.Args[1:]))
}

func mainAux(args []string) int {
	fs := flag.NewFlagSet("ucc", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var verbosity, logPath string
	var version bool
	fs.StringVar(&verbosity, "v", "", "comma separated trace topics (dump_cfg, dump_layout, ...)")
	fs.StringVar(&logPath, "log", "", "write trace output to file instead of stderr")
	fs.BoolVar(&version, "version", false, "print version")
	fs.Usage = printRootUsage

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}
	if version {
		fmt.Println(ucc.PackageCopyRight)
		return 0
	}

	closeLog, err := setupLogger(logPath, verbosity)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}
	defer closeLog()

	if ok, code := dispatchSubcommand(fs.Args()); ok {
		return code
	}
	printRootUsage()
	return 1
}

func setupLogger(path, verbosity string) (func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(w, tlog.LstdFlags))
	if verbosity != "" {
		tlog.SetVerbosity(verbosity)
	}
	return closeFn, nil
}

func dispatchSubcommand(args []string) (bool, int) {
	if len(args) == 0 {
		return false, 0
	}
	switch args[0] {
	case "compile":
		return true, cmdCompile(args[1:])
	case "inspect":
		return true, cmdInspect(args[1:])
	case "verify":
		return true, cmdVerify(args[1:])
	case "disasm":
		return true, cmdDisasm(args[1:])
	case "explore":
		return true, cmdExplore(args[1:])
	case "--version", "version":
		fmt.Println(ucc.PackageCopyRight)
		return true, 0
	case "--help", "-h", "help":
		printRootUsage()
		return true, 0
	default:
		return false, 0
	}
}

func printRootUsage() {
	fmt.Print(`Usage:
  ucc [-v topics] [-log file] <subcommand> [flags] <inputs...>

Subcommands:
  compile   compile a .ucj unit to a .ucx artifact or raw records
  inspect   print .ucx metadata
  verify    verify .ucx integrity and, optionally, its source hash
  disasm    list the functions of a .ucx artifact or a raw record file
  explore   browse an artifact interactively

Global:
  -v topics  enable trace topics, e.g. dump_cfg,dump_layout
  -log file  write trace output to file
  --version  print version
  --help     print this help
`)
}

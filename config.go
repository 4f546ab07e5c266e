package ucc

import (
	"io"

	"github.com/tos-network/ucc/uc/codegen"
)

const PackageName = "ucc"
const PackageVersion = "0.3.0"
const PackageAuthors = "TOS Network"
const PackageCopyRight = PackageName + " " + PackageVersion + " Copyright (C) 2025 " + PackageAuthors

// Compiler is the identity string recorded in every artifact.
const Compiler = PackageName + "/" + PackageVersion

// Options controls a compilation run.
type Options struct {
	// Intrinsics are the engine function numbers conversation statements call.
	Intrinsics codegen.Intrinsics

	// AutoNumberBase is the first number handed to functions without an id.
	AutoNumberBase int

	// Trace receives a dump of every function: the block graph before and
	// after optimization and the final jump layout.
	Trace io.Writer
}

// DefaultOptions returns the options used when nil is passed.
func DefaultOptions() *Options {
	return &Options{
		Intrinsics: codegen.DefaultIntrinsics(),
	}
}

// GamePresets are the intrinsic tables selectable by game name. Both games
// share the answer intrinsics.
var GamePresets = map[string]codegen.Intrinsics{
	"bg": codegen.DefaultIntrinsics(),
	"si": codegen.DefaultIntrinsics(),
}

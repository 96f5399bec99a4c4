// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package gccutil provides utilities of gcc and clang.
package gccutil

import "strings"

// TraceArgs returns command line args to get include trace of root.
// The trace is printed on stderr by -H, and preprocessed output
// is discarded.
func TraceArgs(compiler string, flags []string, root string) []string {
	args := make([]string, 0, len(flags)+9)
	args = append(args, compiler)
	args = append(args, StripOutputArgs(flags)...)
	args = append(args, "-H", "-E", "-x", "c++", "-o", "/dev/null", root)
	return args
}

// PreprocessArgs returns command line args to preprocess src to stdout.
func PreprocessArgs(compiler string, flags []string, src string) []string {
	args := make([]string, 0, len(flags)+3)
	args = append(args, compiler)
	args = append(args, StripOutputArgs(flags)...)
	args = append(args, "-E", src)
	return args
}

// CompileArgs returns command line args to compile src into obj.
func CompileArgs(compiler string, flags []string, src, obj string) []string {
	args := make([]string, 0, len(flags)+5)
	args = append(args, compiler)
	args = append(args, StripOutputArgs(flags)...)
	args = append(args, "-c", src, "-o", obj)
	return args
}

// VerboseArgs returns command line args to print the include search
// list of the compiler on stderr.
func VerboseArgs(compiler string, flags []string) []string {
	args := make([]string, 0, len(flags)+8)
	args = append(args, compiler)
	args = append(args, StripOutputArgs(flags)...)
	args = append(args, "-x", "c++", "-E", "-v", "-o", "/dev/null", "/dev/null")
	return args
}

// StripOutputArgs removes flags that select outputs or the compile
// mode (-c, -o, -M*) from args.
func StripOutputArgs(args []string) []string {
	var dargs []string
	skip := false
	for _, arg := range args {
		if skip {
			skip = false
			continue
		}
		switch arg {
		case "-M", "-MM", "-MD", "-MMD", "-MP", "-c", "-E", "-S", "-H":
			continue
		case "-MF", "-MT", "-MQ", "-o":
			skip = true
			continue
		}
		if strings.HasPrefix(arg, "-MF") || strings.HasPrefix(arg, "-MT") || strings.HasPrefix(arg, "-MQ") {
			continue
		}
		if strings.HasPrefix(arg, "-o") {
			continue
		}
		dargs = append(dargs, arg)
	}
	return dargs
}

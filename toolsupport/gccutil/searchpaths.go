// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"path/filepath"
	"strings"
)

// SearchPaths are include search paths given by command line flags.
type SearchPaths struct {
	// Quote are -iquote dirs, searched only for #include "...".
	Quote []string
	// Bracket are -I dirs.
	Bracket []string
	// System are -isystem dirs followed by -idirafter dirs.
	System []string
}

// ParseSearchPaths parses args and returns include search paths.
// Relative dirs are resolved against dir.
// It only parses major command line flags.
// full set of command line flags for include dirs can be found in
// https://clang.llvm.org/docs/ClangCommandLineReference.html#include-path-management
func ParseSearchPaths(args []string, dir string) SearchPaths {
	abs := func(p string) string {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		return filepath.Clean(p)
	}
	var sp SearchPaths
	var after []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-I", "--include-directory", "-isystem", "-iquote", "-idirafter":
			if i+1 >= len(args) {
				continue
			}
			i++
			switch arg {
			case "-I", "--include-directory":
				sp.Bracket = append(sp.Bracket, abs(args[i]))
			case "-isystem":
				sp.System = append(sp.System, abs(args[i]))
			case "-iquote":
				sp.Quote = append(sp.Quote, abs(args[i]))
			case "-idirafter":
				after = append(after, abs(args[i]))
			}
			continue
		}
		switch {
		case strings.HasPrefix(arg, "-I"):
			sp.Bracket = append(sp.Bracket, abs(strings.TrimPrefix(arg, "-I")))
		case strings.HasPrefix(arg, "--include-directory="):
			sp.Bracket = append(sp.Bracket, abs(strings.TrimPrefix(arg, "--include-directory=")))
		case strings.HasPrefix(arg, "-iquote"):
			sp.Quote = append(sp.Quote, abs(strings.TrimPrefix(arg, "-iquote")))
		case strings.HasPrefix(arg, "-isystem"):
			sp.System = append(sp.System, abs(strings.TrimPrefix(arg, "-isystem")))
		case strings.HasPrefix(arg, "-idirafter"):
			after = append(after, abs(strings.TrimPrefix(arg, "-idirafter")))
		}
	}
	sp.System = append(sp.System, after...)
	return sp
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package compdb reads a JSON compilation database (compile_commands.json)
// and extracts the compile flags that apply to a header.
// https://clang.llvm.org/docs/JSONCompilationDatabase.html
package compdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.chromium.org/infra/build/hdrcost/toolsupport/shutil"
)

// ErrNoEntry is returned when no compile command applies to the header.
var ErrNoEntry = errors.New("no suitable compile command found")

// Entry is an entry of compilation database.
type Entry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Command   string   `json:"command,omitempty"`
	Arguments []string `json:"arguments,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// Args returns command line args of the entry.
func (e Entry) Args() ([]string, error) {
	if len(e.Arguments) > 0 {
		return e.Arguments, nil
	}
	args, err := shutil.Split(e.Command)
	if err != nil {
		return nil, fmt.Errorf("entry for %s: %w", e.File, err)
	}
	return args, nil
}

// Path returns absolute path of the entry's source file.
func (e Entry) Path() string {
	if filepath.IsAbs(e.File) {
		return filepath.Clean(e.File)
	}
	return filepath.Join(e.Directory, e.File)
}

// Load loads compilation database from fname.
func Load(fname string) ([]Entry, error) {
	buf, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = json.Unmarshal(buf, &entries)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", fname, err)
	}
	return entries, nil
}

// Flags are compile flags to compile a header.
type Flags struct {
	// Compiler is argv[0] of the compile command.
	Compiler string `json:"compiler"`

	// Args are preprocessor related flags (include dirs, defines,
	// language standard etc). Include dirs are absolute.
	Args []string `json:"args"`

	// Dir is the working directory of the compile command.
	Dir string `json:"dir"`

	// Source is the source file of the selected entry.
	Source string `json:"source"`
}

var sourceExts = map[string]bool{
	".c":   true,
	".cc":  true,
	".cpp": true,
	".cxx": true,
	".c++": true,
	".C":   true,
	".m":   true,
	".mm":  true,
}

// FlagsFor returns flags of the entry that best applies to the header.
// It prefers, in order: the entry for the header itself, the entry
// for a source file of the same stem in the same directory, and the
// entry whose source file shares the longest directory prefix with header.
func FlagsFor(entries []Entry, header string) (*Flags, error) {
	var best *Entry
	bestScore := -1
	dir := filepath.Dir(header)
	stem := strings.TrimSuffix(filepath.Base(header), filepath.Ext(header))
	for i := range entries {
		e := &entries[i]
		p := e.Path()
		var score int
		switch {
		case p == header:
			score = 1 << 30
		case filepath.Dir(p) == dir && strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)) == stem && sourceExts[filepath.Ext(p)]:
			score = 1 << 29
		case sourceExts[filepath.Ext(p)]:
			score = commonDirLen(filepath.Dir(p), dir)
		default:
			continue
		}
		if score > bestScore {
			best = e
			bestScore = score
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%s: %w", header, ErrNoEntry)
	}
	args, err := best.Args()
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: empty command for %s: %w", header, best.File, ErrNoEntry)
	}
	return &Flags{
		Compiler: args[0],
		Args:     ExtractFlags(args[1:], best.Directory),
		Dir:      best.Directory,
		Source:   best.Path(),
	}, nil
}

// commonDirLen returns number of path elements shared by a and b.
func commonDirLen(a, b string) int {
	as := strings.Split(filepath.ToSlash(a), "/")
	bs := strings.Split(filepath.ToSlash(b), "/")
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	return n
}

// ExtractFlags extracts flags affecting preprocessing from args.
// Relative paths of include dirs and forced includes are resolved
// against dir.
// It only parses major command line flags.
// full set of command line flags for include dirs can be found in
// https://clang.llvm.org/docs/ClangCommandLineReference.html#include-path-management
func ExtractFlags(args []string, dir string) []string {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	var flags []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-I", "-isystem", "-iquote", "-idirafter", "-include", "--sysroot", "-isysroot":
			if i+1 >= len(args) {
				continue
			}
			i++
			flags = append(flags, arg, abs(args[i]))
			continue
		case "-D", "-U":
			if i+1 >= len(args) {
				continue
			}
			i++
			flags = append(flags, arg+args[i])
			continue
		case "-nostdinc", "-nostdinc++", "-pthread":
			flags = append(flags, arg)
			continue
		case "-mllvm", "-Xclang", "-o", "-MF", "-MT", "-MQ", "-x":
			// flags with separate value we don't use.
			i++
			continue
		}
		switch {
		case strings.HasPrefix(arg, "-isystem"):
			flags = append(flags, "-isystem", abs(strings.TrimPrefix(arg, "-isystem")))
		case strings.HasPrefix(arg, "-iquote"):
			flags = append(flags, "-iquote", abs(strings.TrimPrefix(arg, "-iquote")))
		case strings.HasPrefix(arg, "-idirafter"):
			flags = append(flags, "-idirafter", abs(strings.TrimPrefix(arg, "-idirafter")))
		case strings.HasPrefix(arg, "-I"):
			flags = append(flags, "-I", abs(strings.TrimPrefix(arg, "-I")))
		case strings.HasPrefix(arg, "--sysroot="):
			flags = append(flags, "--sysroot="+abs(strings.TrimPrefix(arg, "--sysroot=")))
		case strings.HasPrefix(arg, "-D"), strings.HasPrefix(arg, "-U"),
			strings.HasPrefix(arg, "-std="), strings.HasPrefix(arg, "-stdlib="),
			strings.HasPrefix(arg, "--target="), strings.HasPrefix(arg, "-m"):
			flags = append(flags, arg)
		}
	}
	return flags
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package analysis builds the include graph of a root header.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.chromium.org/infra/build/hdrcost/execute"
	"go.chromium.org/infra/build/hdrcost/execute/localexec"
	"go.chromium.org/infra/build/hdrcost/includegraph"
	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/report"
	"go.chromium.org/infra/build/hdrcost/scandeps"
	"go.chromium.org/infra/build/hdrcost/toolsupport/compdb"
	"go.chromium.org/infra/build/hdrcost/toolsupport/gccutil"
)

// ErrNoRoot is returned when the root header is not given.
var ErrNoRoot = errors.New("no root header")

// Options are options of Run.
type Options struct {
	// Root is path of the root header.
	Root string

	// CompileCommands is path of compile_commands.json.
	CompileCommands string

	// Compiler overrides the compiler of the compile command.
	Compiler string

	// Wrapper is prepended to compiler commands.
	Wrapper []string

	// Prefixes are path prefixes of project headers.
	Prefixes []string

	// Timeout is timeout of each compiler run.
	Timeout time.Duration

	// Executor runs compiler. default is localexec.
	Executor execute.Executor

	// Tokenizer parses trace output. default is gccutil.HTokenizer.
	Tokenizer gccutil.Tokenizer
}

// Options returns options for the flags.
func (f *Flags) Options() (Options, error) {
	wrapper, err := f.WrapperArgs()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Root:            f.Root,
		CompileCommands: f.CompileCommands,
		Compiler:        f.Compiler,
		Wrapper:         wrapper,
		Prefixes:        f.Prefixes,
		Timeout:         f.Timeout,
	}, nil
}

// Analyze loads the graph given by -graph, or builds the graph of -root.
func (f *Flags) Analyze(ctx context.Context) (*Analysis, error) {
	opts, err := f.Options()
	if err != nil {
		return nil, err
	}
	if f.Graph != "" {
		return Load(ctx, f.Graph, opts)
	}
	return Run(ctx, opts)
}

// Analysis is a result of Run.
type Analysis struct {
	// Root is canonical path of the root header.
	Root string

	// Flags are compile flags used for the root header.
	// It may be nil for a loaded graph.
	Flags *compdb.Flags

	// Prefixes are canonical project prefixes.
	Prefixes []string

	Graph *includegraph.Graph
	Stats includegraph.BuildStats
}

// CanonicalPrefixes returns canonical absolute prefixes, relative to
// dir. A trailing separator is kept.
func CanonicalPrefixes(dir string, prefixes []string) []string {
	var ret []string
	for _, p := range prefixes {
		trailing := strings.HasSuffix(p, string(filepath.Separator))
		c := scandeps.Canonical(dir, p)
		if trailing && !strings.HasSuffix(c, string(filepath.Separator)) {
			c += string(filepath.Separator)
		}
		ret = append(ret, c)
	}
	return ret
}

// Run builds the include graph of the root header.
func Run(ctx context.Context, opts Options) (*Analysis, error) {
	if opts.Root == "" {
		return nil, ErrNoRoot
	}
	if opts.Executor == nil {
		opts.Executor = localexec.LocalExec{}
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = gccutil.HTokenizer{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root := scandeps.Canonical(wd, opts.Root)
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root header: %w", err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("root header %s is a directory", root)
	}
	flags, err := CompileFlags(opts, root)
	if err != nil {
		return nil, err
	}
	clog.Infof(ctx, "root=%s compiler=%s source=%s dir=%s", root, flags.Compiler, flags.Source, flags.Dir)
	if clog.V(1) {
		clog.Infof(ctx, "flags=%q", flags.Args)
	}
	a := &Analysis{
		Root:     root,
		Flags:    flags,
		Prefixes: CanonicalPrefixes(wd, opts.Prefixes),
	}

	executor := prefixExecutor{Executor: opts.Executor, prefix: opts.Wrapper}
	resolver, err := NewResolver(ctx, opts, flags)
	if err != nil {
		return nil, err
	}
	scanner, err := scandeps.NewScanner(resolver, scandeps.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	args := gccutil.TraceArgs(flags.Compiler, flags.Args, root)
	events, err := gccutil.Trace(ctx, executor, opts.Tokenizer, args, flags.Dir, opts.Timeout)
	if errors.Is(err, gccutil.ErrTraceEmpty) {
		r, serr := scanner.Scan(ctx, root)
		if serr != nil {
			return nil, serr
		}
		if len(r.Includes) > 0 {
			return nil, fmt.Errorf("trace of %s has no header, but it includes %d resolvable headers: %w", root, len(r.Includes), err)
		}
		clog.Infof(ctx, "%s includes no header", root)
		events, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trace %s: %w", root, err)
	}

	b := &includegraph.Builder{
		Root:    root,
		Dir:     flags.Dir,
		Scanner: scanner,
	}
	a.Graph, a.Stats, err = b.Build(ctx, events)
	if err != nil {
		return nil, err
	}
	clog.Infof(ctx, "scandeps io: %s", scanner.IOStats())
	return a, nil
}

// NewResolver returns the include resolver for the compile flags,
// searching the compiler's builtin include dirs too.
func NewResolver(ctx context.Context, opts Options, flags *compdb.Flags) (*scandeps.Resolver, error) {
	if opts.Executor == nil {
		opts.Executor = localexec.LocalExec{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	executor := prefixExecutor{Executor: opts.Executor, prefix: opts.Wrapper}
	sysdirs, err := gccutil.SystemDirs(ctx, executor, flags.Compiler, flags.Args, flags.Dir, opts.Timeout)
	if err != nil {
		return nil, err
	}
	clog.Infof(ctx, "system include dirs=%q", sysdirs)
	return scandeps.NewResolver(ctx, gccutil.ParseSearchPaths(flags.Args, flags.Dir), sysdirs), nil
}

// CompileFlags returns compile flags for the header from the
// compilation database in opts.
func CompileFlags(opts Options, header string) (*compdb.Flags, error) {
	entries, err := compdb.Load(opts.CompileCommands)
	if err != nil {
		return nil, fmt.Errorf("failed to load compilation database: %w", err)
	}
	flags, err := compdb.FlagsFor(entries, header)
	if err != nil {
		return nil, err
	}
	if opts.Compiler != "" {
		flags.Compiler = opts.Compiler
	}
	return flags, nil
}

// Load loads the graph saved by a previous analysis, instead of
// running the compiler.
func Load(ctx context.Context, fname string, opts Options) (*Analysis, error) {
	g, err := report.LoadGraph(ctx, fname)
	if err != nil {
		return nil, err
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	a := &Analysis{
		Root:     g.Root(),
		Prefixes: CanonicalPrefixes(wd, opts.Prefixes),
		Graph:    g,
	}
	if opts.CompileCommands != "" {
		a.Flags, err = CompileFlags(opts, g.Root())
		if err != nil {
			clog.Warningf(ctx, "no compile flags for %s: %v", g.Root(), err)
		}
	}
	return a, nil
}

// prefixExecutor prepends argv prefix to commands.
type prefixExecutor struct {
	execute.Executor
	prefix []string
}

func (e prefixExecutor) Run(ctx context.Context, cmd *execute.Cmd) error {
	if len(e.prefix) > 0 {
		cmd.Args = append(append([]string(nil), e.prefix...), cmd.Args...)
	}
	return e.Executor.Run(ctx, cmd)
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package bench measures compile cost of individual headers.
package bench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/infra/build/hdrcost/execute"
	"go.chromium.org/infra/build/hdrcost/execute/localexec"
	"go.chromium.org/infra/build/hdrcost/includegraph"
	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/runtimex"
	"go.chromium.org/infra/build/hdrcost/sync/semaphore"
	"go.chromium.org/infra/build/hdrcost/toolsupport/gccutil"
)

const (
	// DefaultTimeout is default timeout of a profiled compile.
	DefaultTimeout = 300 * time.Second

	// SizeTimeout is timeout of a preprocess run.
	SizeTimeout = 60 * time.Second

	// MemoryPerJob is memory reserved per concurrent compile.
	MemoryPerJob = 3 << 30

	// tuName is the name of the synthesized translation unit.
	tuName = "tu.cc"
)

// Options are options of Bench.
type Options struct {
	// Compiler is the compiler command.
	Compiler string

	// Flags are compile flags, e.g. include dirs and defines.
	Flags []string

	// Wrapper is prepended to the compile command, e.g. an
	// environment setup script.
	Wrapper []string

	// Profiler measures compiles. default is RusageProfiler.
	Profiler Profiler

	// Jobs is the number of concurrent compiles.
	// <= 0 means sized by CPUs and memory.
	Jobs int

	// Timeout is timeout of each compile. default is DefaultTimeout.
	Timeout time.Duration

	// WorkDir is the dir to create per run work dir in.
	// default is os.TempDir().
	WorkDir string

	// KeepWorkDir keeps work dir after run for debugging.
	KeepWorkDir bool

	// Executor runs commands. default is localexec.
	Executor execute.Executor

	// Progress, if set, is called when a header finishes.
	Progress func(done, total int, r Result)
}

// Result is a result of benchmarking a header.
type Result struct {
	Header   string
	Cost     *includegraph.CostRecord
	Command  string
	ExitCode int
	Err      error
}

// Bench runs benchmarks.
type Bench struct {
	opts  Options
	runID string
}

// New creates new Bench.
func New(opts Options) *Bench {
	if opts.Profiler == nil {
		opts.Profiler = RusageProfiler{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.Executor == nil {
		// compiles of heavy headers should be killed by oom killer
		// before hdrcost itself.
		opts.Executor = localexec.LocalExec{OOMScoreAdj: 500}
	}
	return &Bench{
		opts:  opts,
		runID: uuid.New().String(),
	}
}

// RunID returns id of the run.
func (b *Bench) RunID() string {
	return b.runID
}

// HostInfo describes the host for benchmark reports.
func HostInfo() string {
	return fmt.Sprintf("%s (%d logical cores, %d physical) %d GiB", cpuid.CPU.BrandName, cpuid.CPU.LogicalCores, cpuid.CPU.PhysicalCores, runtimex.TotalMemory()>>30)
}

func (b *Bench) workers(n int) int {
	if b.opts.Jobs > 0 {
		return min(b.opts.Jobs, max(n, 1))
	}
	return runtimex.Workers(n, MemoryPerJob)
}

func (b *Bench) runDir() (string, func(), error) {
	dir := filepath.Join(b.opts.WorkDir, "hdrcost-"+b.runID)
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {}
	if !b.opts.KeepWorkDir {
		cleanup = func() { os.RemoveAll(dir) }
	}
	return dir, cleanup, nil
}

// Run benchmarks headers concurrently, and returns results in
// the order of headers. A failure of a header is recorded in its
// result and doesn't stop others.
func (b *Bench) Run(ctx context.Context, headers []string) ([]Result, error) {
	dir, cleanup, err := b.runDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer cleanup()

	n := b.workers(len(headers))
	clog.Infof(ctx, "bench run=%s headers=%d workers=%d profiler=%s host=%s", b.runID, len(headers), n, b.opts.Profiler.Name(), HostInfo())
	sema := semaphore.New("bench", n)
	results := make([]Result, len(headers))
	done := make(chan Result)
	var eg errgroup.Group
	for i, h := range headers {
		eg.Go(func() error {
			err := sema.Do(ctx, func(ctx context.Context) error {
				results[i] = b.benchHeader(ctx, dir, h)
				return nil
			})
			if err != nil {
				results[i] = Result{Header: h, Err: err}
			}
			done <- results[i]
			return nil
		})
	}
	go func() {
		eg.Wait()
		close(done)
	}()
	finished := 0
	for r := range done {
		finished++
		if r.Err != nil {
			clog.Warningf(ctx, "[%d/%d] %s: %v", finished, len(headers), r.Header, r.Err)
		} else {
			clog.Infof(ctx, "[%d/%d] %s: rss=%dMiB wall=%.2fs cpu=%.2fs", finished, len(headers), r.Header, r.Cost.RSSBytes>>20, r.Cost.WallSeconds, r.Cost.CPUSeconds)
		}
		if b.opts.Progress != nil {
			b.opts.Progress(finished, len(headers), r)
		}
	}
	return results, ctx.Err()
}

func (b *Bench) benchHeader(ctx context.Context, dir, header string) Result {
	r := Result{Header: header}
	hdir := filepath.Join(dir, uuid.New().String())
	ctx = clog.With(ctx, "header", header, "slot", semaphore.TID(ctx))
	tu, err := WriteTU(hdir, header)
	if err != nil {
		r.Err = err
		return r
	}
	args := gccutil.CompileArgs(b.opts.Compiler, b.opts.Flags, tu, filepath.Join(hdir, "tu.o"))
	args = append(append([]string(nil), b.opts.Wrapper...), args...)
	args = b.opts.Profiler.Wrap(args, hdir)
	cmd := &execute.Cmd{
		ID:            filepath.Base(hdir),
		Desc:          "bench " + header,
		Args:          args,
		Dir:           hdir,
		Timeout:       b.opts.Timeout,
		DiscardStdout: true,
	}
	r.Command = cmd.Command()
	clog.Debugf(ctx, "run %s", r.Command)
	err = b.opts.Executor.Run(ctx, cmd)
	r.ExitCode = cmd.Result().ExitCode
	if err != nil {
		var eerr *execute.ExitError
		if errors.As(err, &eerr) {
			err = fmt.Errorf("%w\n%s", err, cmd.StderrTail(500))
		}
		r.Err = err
		return r
	}
	m, err := b.opts.Profiler.Parse(cmd, hdir)
	if err != nil {
		r.Err = err
		return r
	}
	r.Cost = &includegraph.CostRecord{
		Header:      header,
		RSSBytes:    m.RSSBytes,
		WallSeconds: m.WallSeconds,
		CPUSeconds:  m.CPUSeconds,
	}
	return r
}

// WriteTU writes a translation unit that only includes header in dir,
// and returns its path.
func WriteTU(dir, header string) (string, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}
	tu := filepath.Join(dir, tuName)
	err = os.WriteFile(tu, []byte(fmt.Sprintf("#include \"%s\"\n", header)), 0644)
	if err != nil {
		return "", err
	}
	return tu, nil
}

// MeasureSizes measures preprocessed output size of headers
// concurrently. It returns sizes in the order of headers; -1 for
// a header that failed.
func (b *Bench) MeasureSizes(ctx context.Context, headers []string) ([]int64, error) {
	dir, cleanup, err := b.runDir()
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer cleanup()

	n := runtimex.Workers(len(headers), 0)
	if b.opts.Jobs > 0 {
		n = min(n, b.opts.Jobs)
	}
	sema := semaphore.New("preprocess", n)
	sizes := make([]int64, len(headers))
	var eg errgroup.Group
	for i, h := range headers {
		eg.Go(func() error {
			sizes[i] = -1
			return sema.Do(ctx, func(ctx context.Context) error {
				size, err := b.measureSize(ctx, filepath.Join(dir, uuid.New().String()), h)
				if err != nil {
					clog.Warningf(ctx, "preprocess %s: %v", h, err)
					return nil
				}
				sizes[i] = size
				return nil
			})
		})
	}
	err = eg.Wait()
	clog.Infof(ctx, "measured preprocessed size of %d headers with %d workers", len(headers), n)
	return sizes, err
}

func (b *Bench) measureSize(ctx context.Context, dir, header string) (int64, error) {
	tu, err := WriteTU(dir, header)
	if err != nil {
		return 0, err
	}
	args := gccutil.PreprocessArgs(b.opts.Compiler, b.opts.Flags, tu)
	args = append(append([]string(nil), b.opts.Wrapper...), args...)
	cmd := &execute.Cmd{
		ID:            filepath.Base(dir),
		Desc:          "preprocess " + header,
		Args:          args,
		Dir:           dir,
		Timeout:       SizeTimeout,
		DiscardStdout: true,
	}
	err = b.opts.Executor.Run(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return cmd.StdoutSize(), nil
}

// ApplyCosts attaches costs of successful results to g.
func ApplyCosts(g *includegraph.Graph, results []Result) {
	for _, r := range results {
		if r.Err != nil || r.Cost == nil {
			continue
		}
		g.SetCost(r.Header, r.Cost)
	}
}

// ApplySizes sets preprocessed sizes measured by MeasureSizes to g.
func ApplySizes(g *includegraph.Graph, headers []string, sizes []int64) {
	for i, h := range headers {
		if i < len(sizes) && sizes[i] >= 0 {
			g.SetPreprocessedSize(h, sizes[i])
		}
	}
}

// RunGraph benchmarks headers planned by opts and attaches the results
// to g. Preprocessed sizes of candidates are measured only when
// opts.Limit is set.
func (b *Bench) RunGraph(ctx context.Context, g *includegraph.Graph, opts PlanOptions) ([]Result, error) {
	var candidates []string
	for _, n := range Candidates(g, opts.Prefixes) {
		candidates = append(candidates, n.Path)
	}
	// sizes only rank candidates under a limit.
	if opts.Limit > 0 {
		sizes, err := b.MeasureSizes(ctx, candidates)
		if err != nil {
			return nil, err
		}
		ApplySizes(g, candidates, sizes)
	}
	headers := Plan(g, opts)
	clog.Infof(ctx, "benchmark %d headers out of %d candidates", len(headers), len(candidates))
	results, err := b.Run(ctx, headers)
	ApplyCosts(g, results)
	return results, err
}

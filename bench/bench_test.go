// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/hdrcost/execute"
	"go.chromium.org/infra/build/hdrcost/includegraph"
)

// tuHeader returns the header included by tu.cc in the cmd dir.
func tuHeader(t *testing.T, cmd *execute.Cmd) string {
	t.Helper()
	buf, err := os.ReadFile(filepath.Join(cmd.Dir, "tu.cc"))
	if err != nil {
		t.Errorf("read tu.cc: %v", err)
		return ""
	}
	s := strings.TrimSpace(string(buf))
	s = strings.TrimPrefix(s, "#include ")
	return strings.Trim(s, `"`)
}

func TestBenchRun(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()
	var running, maxRunning atomic.Int32
	executor := execute.ExecutorFunc(func(ctx context.Context, cmd *execute.Cmd) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		if cmd.Args[0] != "/usr/bin/time" || cmd.Args[2] != "ccache" || cmd.Args[3] != "clang++" {
			t.Errorf("args=%q; want time -v ccache clang++ ...", cmd.Args)
		}
		h := tuHeader(t, cmd)
		switch filepath.Base(h) {
		case "broken.h":
			fmt.Fprintf(cmd.StderrWriter(), "%s:1:1: error: unknown type name 'foo'\n", h)
			cmd.SetResult(execute.Result{ExitCode: 1})
			return &execute.ExitError{ExitCode: 1}
		case "a.h":
			fmt.Fprint(cmd.StderrWriter(), "\tUser time (seconds): 1.00\n\tSystem time (seconds): 0.50\n\tElapsed (wall clock) time (h:mm:ss or m:ss): 0:02.00\n\tMaximum resident set size (kbytes): 100\n")
		case "b.h":
			fmt.Fprint(cmd.StderrWriter(), "\tUser time (seconds): 2.00\n\tSystem time (seconds): 0.00\n\tElapsed (wall clock) time (h:mm:ss or m:ss): 0:03.00\n\tMaximum resident set size (kbytes): 200\n")
		}
		return nil
	})
	var progress atomic.Int32
	b := New(Options{
		Compiler: "clang++",
		Flags:    []string{"-I/src", "-o", "foo.o"},
		Wrapper:  []string{"ccache"},
		Profiler: TimeProfiler{},
		Jobs:     2,
		WorkDir:  workDir,
		Executor: executor,
		Progress: func(done, total int, r Result) {
			progress.Add(1)
		},
	})
	headers := []string{"/src/a.h", "/src/broken.h", "/src/b.h"}
	results, err := b.Run(ctx, headers)
	if err != nil {
		t.Fatalf("Run=%v; want nil", err)
	}
	if len(results) != len(headers) {
		t.Fatalf("len(results)=%d; want %d", len(results), len(headers))
	}
	for i, r := range results {
		if r.Header != headers[i] {
			t.Errorf("results[%d].Header=%q; want %q", i, r.Header, headers[i])
		}
	}
	if diff := cmp.Diff(&includegraph.CostRecord{Header: "/src/a.h", RSSBytes: 100 * 1024, WallSeconds: 2, CPUSeconds: 1.5}, results[0].Cost); diff != "" {
		t.Errorf("a.h cost diff -want +got:\n%s", diff)
	}
	if diff := cmp.Diff(&includegraph.CostRecord{Header: "/src/b.h", RSSBytes: 200 * 1024, WallSeconds: 3, CPUSeconds: 2}, results[2].Cost); diff != "" {
		t.Errorf("b.h cost diff -want +got:\n%s", diff)
	}
	var eerr *execute.ExitError
	if !errors.As(results[1].Err, &eerr) || results[1].ExitCode != 1 || results[1].Cost != nil {
		t.Errorf("broken.h result=%+v; want exit error", results[1])
	}
	if !strings.Contains(results[1].Err.Error(), "unknown type name") {
		t.Errorf("broken.h err=%v; want compiler stderr", results[1].Err)
	}
	if strings.Contains(results[0].Command, "foo.o") {
		t.Errorf("command %q has original output flags", results[0].Command)
	}
	if got := maxRunning.Load(); got > 2 {
		t.Errorf("max concurrent=%d; want <= 2", got)
	}
	if got := progress.Load(); got != 3 {
		t.Errorf("progress calls=%d; want 3", got)
	}
	ents, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(ents) != 0 {
		t.Errorf("work dir left %d entries; want cleaned up", len(ents))
	}

	g := includegraph.New("/src/root.cc")
	for _, h := range headers {
		g.AddEdge("/src/root.cc", h, includegraph.SourceTrace)
	}
	ApplyCosts(g, results)
	a, _ := g.Node("/src/a.h")
	broken, _ := g.Node("/src/broken.h")
	if a.Cost == nil || broken.Cost != nil {
		t.Errorf("ApplyCosts: a.h=%v broken.h=%v", a.Cost, broken.Cost)
	}
}

func TestBenchKeepWorkDir(t *testing.T) {
	ctx := context.Background()
	workDir := t.TempDir()
	b := New(Options{
		Compiler:    "clang++",
		WorkDir:     workDir,
		KeepWorkDir: true,
		Executor: execute.ExecutorFunc(func(ctx context.Context, cmd *execute.Cmd) error {
			now := time.Now()
			cmd.SetResult(execute.Result{
				Started:  now,
				Finished: now.Add(time.Second),
				Rusage:   &execute.Rusage{MaxRSS: 4096, Utime: time.Second},
			})
			return nil
		}),
	})
	results, err := b.Run(ctx, []string{"/src/a.h"})
	if err != nil {
		t.Fatalf("Run=%v; want nil", err)
	}
	if results[0].Err != nil || results[0].Cost.RSSBytes != 4096 {
		t.Errorf("result=%+v; want rss 4096", results[0])
	}
	tus, err := filepath.Glob(filepath.Join(workDir, "hdrcost-"+b.RunID(), "*", "tu.cc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(tus) != 1 {
		t.Errorf("tu.cc in work dir=%q; want 1", tus)
	}
}

func TestMeasureSizes(t *testing.T) {
	ctx := context.Background()
	b := New(Options{
		Compiler: "clang++",
		WorkDir:  t.TempDir(),
		Executor: execute.ExecutorFunc(func(ctx context.Context, cmd *execute.Cmd) error {
			if !cmd.DiscardStdout {
				t.Errorf("DiscardStdout=false; want true")
			}
			if cmd.Timeout != SizeTimeout {
				t.Errorf("Timeout=%v; want %v", cmd.Timeout, SizeTimeout)
			}
			h := tuHeader(t, cmd)
			if filepath.Base(h) == "missing.h" {
				return &execute.ExitError{ExitCode: 1}
			}
			w := cmd.StdoutWriter()
			fmt.Fprint(w, strings.Repeat("x", len(h)*10))
			return nil
		}),
	})
	headers := []string{"/src/a.h", "/src/missing.h", "/src/long.h"}
	sizes, err := b.MeasureSizes(ctx, headers)
	if err != nil {
		t.Fatalf("MeasureSizes=%v; want nil", err)
	}
	want := []int64{80, -1, 110}
	if diff := cmp.Diff(want, sizes); diff != "" {
		t.Errorf("MeasureSizes diff -want +got:\n%s", diff)
	}

	g := includegraph.New("/src/root.cc")
	for _, h := range headers {
		g.AddEdge("/src/root.cc", h, includegraph.SourceScan)
	}
	ApplySizes(g, headers, sizes)
	if n, _ := g.Node("/src/a.h"); n.PreprocessedSize != 80 {
		t.Errorf("a.h size=%d; want 80", n.PreprocessedSize)
	}
	if n, _ := g.Node("/src/missing.h"); n.PreprocessedSize != -1 {
		t.Errorf("missing.h size=%d; want -1", n.PreprocessedSize)
	}
}

func TestWriteTU(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub")
	tu, err := WriteTU(dir, "/src/base/foo.h")
	if err != nil {
		t.Fatalf("WriteTU=%v", err)
	}
	buf, err := os.ReadFile(tu)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(buf), "#include \"/src/base/foo.h\"\n"; got != want {
		t.Errorf("tu.cc=%q; want %q", got, want)
	}
}

func TestRunGraph(t *testing.T) {
	ctx := context.Background()
	g := includegraph.New("/src/root.h")
	g.AddEdge("/src/root.h", "/src/a.h", includegraph.SourceTrace)
	g.AddEdge("/src/root.h", "/src/b.h", includegraph.SourceTrace)
	g.AddEdge("/src/b.h", "/ext/x.h", includegraph.SourceTrace)
	g.ComputeDepths()

	var mu sync.Mutex
	var compiled []string
	b := New(Options{
		Compiler: "clang++",
		WorkDir:  t.TempDir(),
		Jobs:     1,
		Executor: execute.ExecutorFunc(func(ctx context.Context, cmd *execute.Cmd) error {
			h := tuHeader(t, cmd)
			if slices.Contains(cmd.Args, "-E") {
				fmt.Fprint(cmd.StdoutWriter(), strings.Repeat("x", map[string]int{"/src/a.h": 200, "/src/b.h": 100}[h]))
				return nil
			}
			mu.Lock()
			compiled = append(compiled, h)
			mu.Unlock()
			now := time.Now()
			cmd.SetResult(execute.Result{Started: now, Finished: now, Rusage: &execute.Rusage{MaxRSS: 1024}})
			return nil
		}),
	})
	results, err := b.RunGraph(ctx, g, PlanOptions{Limit: 1, Prefixes: []string{"/src/"}, IncludeRoot: true})
	if err != nil {
		t.Fatalf("RunGraph=%v", err)
	}
	var got []string
	for _, r := range results {
		got = append(got, r.Header)
	}
	// same depth, larger preprocessed size first.
	if diff := cmp.Diff([]string{"/src/root.h", "/src/a.h"}, got); diff != "" {
		t.Errorf("RunGraph headers diff -want +got:\n%s", diff)
	}
	if n, _ := g.Node("/src/b.h"); n.PreprocessedSize != 100 || n.Cost != nil {
		t.Errorf("b.h size=%d cost=%v; want 100, nil", n.PreprocessedSize, n.Cost)
	}
	if n, _ := g.Node("/src/a.h"); n.Cost == nil || n.Cost.RSSBytes != 1024 {
		t.Errorf("a.h cost=%v; want rss 1024", n.Cost)
	}
	if n, _ := g.Node("/ext/x.h"); n.PreprocessedSize != -1 {
		t.Errorf("x.h size=%d; want -1 (not candidate)", n.PreprocessedSize)
	}
}

func TestRunGraphNoLimit(t *testing.T) {
	ctx := context.Background()
	g := includegraph.New("/src/root.h")
	g.AddEdge("/src/root.h", "/src/a.h", includegraph.SourceTrace)
	g.AddEdge("/src/root.h", "/src/b.h", includegraph.SourceTrace)
	g.ComputeDepths()

	var mu sync.Mutex
	var compiled []string
	b := New(Options{
		Compiler: "clang++",
		WorkDir:  t.TempDir(),
		Jobs:     1,
		Executor: execute.ExecutorFunc(func(ctx context.Context, cmd *execute.Cmd) error {
			if slices.Contains(cmd.Args, "-E") {
				t.Errorf("unexpected preprocess %q", cmd.Args)
				return nil
			}
			h := tuHeader(t, cmd)
			mu.Lock()
			compiled = append(compiled, h)
			mu.Unlock()
			now := time.Now()
			cmd.SetResult(execute.Result{Started: now, Finished: now, Rusage: &execute.Rusage{MaxRSS: 1024}})
			return nil
		}),
	})
	results, err := b.RunGraph(ctx, g, PlanOptions{Prefixes: []string{"/src/"}})
	if err != nil {
		t.Fatalf("RunGraph=%v", err)
	}
	if len(results) != 2 {
		t.Errorf("RunGraph results=%d; want 2", len(results))
	}
	slices.Sort(compiled)
	if diff := cmp.Diff([]string{"/src/a.h", "/src/b.h"}, compiled); diff != "" {
		t.Errorf("compiled diff -want +got:\n%s", diff)
	}
	if n, _ := g.Node("/src/a.h"); n.PreprocessedSize != -1 {
		t.Errorf("a.h size=%d; want -1 (not measured)", n.PreprocessedSize)
	}
}

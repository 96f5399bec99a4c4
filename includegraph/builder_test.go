// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package includegraph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/hdrcost/scandeps"
	"go.chromium.org/infra/build/hdrcost/toolsupport/gccutil"
)

// fakeScanner returns includes from a map keyed by path.
type fakeScanner map[string][]string

func (s fakeScanner) Scan(ctx context.Context, path string) (scandeps.Result, error) {
	incs, ok := s[path]
	if !ok {
		return scandeps.Result{}, fmt.Errorf("%s: not found", path)
	}
	return scandeps.Result{Path: path, Includes: incs, Directives: len(incs)}, nil
}

func mustTokenize(t *testing.T, trace string) []gccutil.TraceEvent {
	t.Helper()
	events, err := gccutil.HTokenizer{}.Tokenize([]byte(trace))
	if err != nil {
		t.Fatalf("Tokenize(%q)=%v", trace, err)
	}
	return events
}

func edgeSet(g *Graph) map[string]Source {
	m := make(map[string]Source)
	for _, e := range g.Edges() {
		m[e.From+"->"+e.To] = e.Source
	}
	return m
}

func depths(g *Graph) map[string]int {
	m := make(map[string]int)
	for _, n := range g.Nodes() {
		m[n.Path] = n.Depth
	}
	return m
}

func TestBuildMerge(t *testing.T) {
	ctx := context.Background()
	events := mustTokenize(t, ". root.h\n.. a.h\n... b.h\n.. c.h\n")
	b := &Builder{
		Root: "/src/root.h",
		Dir:  "/src",
		Scanner: fakeScanner{
			"/src/root.h": {"/src/a.h", "/src/c.h"},
			"/src/a.h":    {"/src/b.h", "/src/c.h"},
			"/src/b.h":    nil,
			"/src/c.h":    nil,
		},
	}
	g, stats, err := b.Build(ctx, events)
	if err != nil {
		t.Fatalf("Build=%v", err)
	}
	wantEdges := map[string]Source{
		"/src/root.h->/src/a.h": SourceTrace | SourceScan,
		"/src/a.h->/src/b.h":    SourceTrace | SourceScan,
		"/src/root.h->/src/c.h": SourceTrace | SourceScan,
		"/src/a.h->/src/c.h":    SourceScan,
	}
	if diff := cmp.Diff(wantEdges, edgeSet(g)); diff != "" {
		t.Errorf("edges: diff -want +got:\n%s", diff)
	}
	wantDepths := map[string]int{
		"/src/root.h": 0,
		"/src/a.h":    1,
		"/src/b.h":    2,
		"/src/c.h":    1,
	}
	if diff := cmp.Diff(wantDepths, depths(g)); diff != "" {
		t.Errorf("depths: diff -want +got:\n%s", diff)
	}
	wantStats := BuildStats{
		TraceEvents: 3,
		TraceEdges:  3,
		Scanned:     4,
		ScanEdges:   1,
	}
	if diff := cmp.Diff(wantStats, stats); diff != "" {
		t.Errorf("stats: diff -want +got:\n%s", diff)
	}
	c, _ := g.Node("/src/c.h")
	if c.DirectIncludeCount != 2 || c.TraceCount != 1 {
		t.Errorf("c.h DirectIncludeCount=%d TraceCount=%d; want 2, 1", c.DirectIncludeCount, c.TraceCount)
	}

	res, err := g.FindShortestPaths(g.Root(), "/src/c.h", 10)
	if err != nil {
		t.Fatal(err)
	}
	wantRes := PathResult{
		From:      "/src/root.h",
		To:        "/src/c.h",
		Reachable: true,
		Length:    1,
		Total:     1,
		Paths:     [][]string{{"/src/root.h", "/src/c.h"}},
	}
	if diff := cmp.Diff(wantRes, res); diff != "" {
		t.Errorf("FindShortestPaths: diff -want +got:\n%s", diff)
	}
}

func TestBuildDepths(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		name    string
		trace   string
		scanner fakeScanner
		want    map[string]int
	}{
		{
			name:  "header trace",
			trace: ". a.h\n.. b.h\n",
			want: map[string]int{
				"/src/root.h": 0,
				"/src/a.h":    1,
				"/src/b.h":    2,
			},
		},
		{
			name:  "trace shortest over trace edges",
			trace: ". root.h\n.. a.h\n... b.h\n.... d.h\n.. c.h\n",
			scanner: fakeScanner{
				"/src/root.h": {"/src/a.h", "/src/c.h", "/src/d.h"},
				"/src/a.h":    {"/src/b.h"},
				"/src/b.h":    {"/src/d.h"},
				"/src/c.h":    {"/src/d.h"},
				"/src/d.h":    nil,
			},
			want: map[string]int{
				"/src/root.h": 0,
				"/src/a.h":    1,
				"/src/b.h":    2,
				"/src/c.h":    1,
				// scanner root->d.h doesn't make depth 1.
				"/src/d.h": 3,
			},
		},
		{
			name:  "scanner only",
			trace: ". root.h\n.. a.h\n... b.h\n",
			scanner: fakeScanner{
				"/src/root.h": {"/src/a.h"},
				"/src/a.h":    {"/src/b.h", "/src/x.h"},
				"/src/b.h":    {"/src/x.h"},
				"/src/x.h":    {"/src/y.h"},
				"/src/y.h":    {"/src/x.h"},
			},
			want: map[string]int{
				"/src/root.h": 0,
				"/src/a.h":    1,
				"/src/b.h":    2,
				"/src/x.h":    2,
				"/src/y.h":    3,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := &Builder{Root: "/src/root.h", Dir: "/src"}
			if tc.scanner != nil {
				b.Scanner = tc.scanner
			}
			g, _, err := b.Build(ctx, mustTokenize(t, tc.trace))
			if err != nil {
				t.Fatalf("Build=%v", err)
			}
			if diff := cmp.Diff(tc.want, depths(g)); diff != "" {
				t.Errorf("depths: diff -want +got:\n%s", diff)
			}
			// every non-root node has an incoming edge.
			for _, n := range g.Nodes() {
				if n.Path != g.Root() && len(g.Parents(n.Path)) == 0 {
					t.Errorf("%s has no parent", n.Path)
				}
			}
		})
	}
}

func TestBuildMonotonicMerge(t *testing.T) {
	ctx := context.Background()
	events := mustTokenize(t, ". a.h\n.. b.h\n. c.h\n")
	traceOnly, _, err := (&Builder{Root: "/src/root.h", Dir: "/src"}).Build(ctx, events)
	if err != nil {
		t.Fatal(err)
	}
	merged, _, err := (&Builder{
		Root: "/src/root.h",
		Dir:  "/src",
		Scanner: fakeScanner{
			"/src/root.h": {"/src/a.h"},
			"/src/a.h":    {"/src/c.h"},
			"/src/b.h":    nil,
			"/src/c.h":    {"/src/d.h"},
			"/src/d.h":    nil,
		},
	}).Build(ctx, events)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range traceOnly.Edges() {
		src, ok := merged.EdgeSource(e.From, e.To)
		if !ok || src&SourceTrace == 0 {
			t.Errorf("merged lost trace edge %s -> %s: %v %v", e.From, e.To, src, ok)
		}
	}
	if _, ok := merged.EdgeSource("/src/c.h", "/src/d.h"); !ok {
		t.Errorf("merged missing scan edge c.h -> d.h")
	}
}

func TestBuildScanError(t *testing.T) {
	ctx := context.Background()
	b := &Builder{
		Root: "/src/root.h",
		Dir:  "/src",
		Scanner: fakeScanner{
			"/src/root.h": {"/src/a.h"},
		},
	}
	g, stats, err := b.Build(ctx, nil)
	if err != nil {
		t.Fatalf("Build=%v", err)
	}
	if stats.ScanErrors != 1 {
		t.Errorf("ScanErrors=%d; want 1", stats.ScanErrors)
	}
	if diff := cmp.Diff(map[string]int{"/src/root.h": 0, "/src/a.h": 1}, depths(g)); diff != "" {
		t.Errorf("depths: diff -want +got:\n%s", diff)
	}
}

func TestBuildUnparsable(t *testing.T) {
	ctx := context.Background()
	b := &Builder{Root: "/src/root.h", Dir: "/src"}
	_, _, err := b.Build(ctx, []gccutil.TraceEvent{
		{Depth: 1, Path: "a.h"},
		{Depth: 3, Path: "b.h"},
	})
	if !errors.Is(err, gccutil.ErrTraceUnparsable) {
		t.Errorf("Build=%v; want %v", err, gccutil.ErrTraceUnparsable)
	}
}

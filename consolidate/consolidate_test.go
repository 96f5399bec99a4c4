// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package consolidate

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/hdrcost/includegraph"
)

func newGraph(edges [][2]string) *includegraph.Graph {
	g := includegraph.New("/p/root.h")
	for _, e := range edges {
		g.AddEdge(e[0], e[1], includegraph.SourceTrace)
	}
	g.ComputeDepths()
	return g
}

var baseEdges = [][2]string{
	{"/p/root.h", "/p/X.h"},
	{"/p/root.h", "/p/Y.h"},
	{"/p/X.h", "/ext/Ext/a.h"},
	{"/ext/Ext/a.h", "/ext/Ext/b.h"},
	{"/p/Z.h", "/p/X.h"},
	{"/p/Y.h", "/usr/include/string"},
}

func TestAnalyze(t *testing.T) {
	ctx := context.Background()
	g := newGraph(baseEdges)
	got, err := Analyze(ctx, g, Options{
		Prefixes: []string{"/p/"},
		Pattern:  "Ext/",
	})
	if err != nil {
		t.Fatalf("Analyze=%v", err)
	}
	want := &Report{
		Pattern:        "Ext/",
		Prefixes:       []string{"/p/"},
		ProjectHeaders: 4,
		PatternHeaders: 2,
		Results: []Result{
			{
				Header:         "/p/X.h",
				Direct:         true,
				DirectExternal: []string{"/ext/Ext/a.h"},
				AffectedCount:  2,
				Affected:       []string{"/p/Z.h", "/p/root.h"},
			},
			{
				Header:              "/p/Z.h",
				TransitivelyExposes: true,
			},
			{
				Header:              "/p/root.h",
				TransitivelyExposes: true,
			},
		},
		External: []External{
			{Header: "/ext/Ext/a.h", Includers: []string{"/p/X.h"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Analyze: diff -want +got:\n%s", diff)
	}
}

func TestAnalyzeHeadersIndependent(t *testing.T) {
	ctx := context.Background()
	// A reaches Ext through both H and H2, so removing one of them
	// doesn't cut A.
	g := newGraph([][2]string{
		{"/p/root.h", "/p/A.h"},
		{"/p/root.h", "/p/X.h"},
		{"/p/A.h", "/p/H.h"},
		{"/p/A.h", "/p/H2.h"},
		{"/p/H.h", "/ext/Ext/x.h"},
		{"/p/H2.h", "/ext/Ext/y.h"},
		{"/p/X.h", "/ext/Ext/a.h"},
		{"/p/B.h", "/p/H.h"},
		{"/p/W.h", "/p/A.h"},
		{"/p/Z.h", "/p/X.h"},
	})
	want := map[string]int{
		"/p/A.h":    1,
		"/p/B.h":    0,
		"/p/H.h":    1,
		"/p/H2.h":   0,
		"/p/W.h":    0,
		"/p/X.h":    1,
		"/p/Z.h":    0,
		"/p/root.h": 0,
	}
	for _, tc := range []struct {
		name    string
		headers []string
	}{
		{
			name:    "one",
			headers: []string{"/p/H.h"},
		},
		{
			name:    "two",
			headers: []string{"/p/H.h", "/p/H2.h"},
		},
		{
			name:    "four",
			headers: []string{"/p/A.h", "/p/H.h", "/p/H2.h", "/p/X.h"},
		},
		{
			name: "all",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Analyze(ctx, g, Options{
				Prefixes: []string{"/p/"},
				Pattern:  "Ext/",
				Headers:  tc.headers,
			})
			if err != nil {
				t.Fatal(err)
			}
			wantN := len(tc.headers)
			if wantN == 0 {
				wantN = len(want)
			}
			if len(r.Results) != wantN {
				t.Errorf("Analyze results=%d; want %d", len(r.Results), wantN)
			}
			for _, res := range r.Results {
				n, ok := want[res.Header]
				if !ok {
					t.Errorf("unexpected result for %s", res.Header)
					continue
				}
				if res.AffectedCount != n {
					t.Errorf("%s affected count=%d; want %d", res.Header, res.AffectedCount, n)
				}
			}
		})
	}
}

func TestAnalyzeSavings(t *testing.T) {
	ctx := context.Background()
	g := newGraph(baseEdges)
	g.SetCost("/p/X.h", &includegraph.CostRecord{Header: "/p/X.h", RSSBytes: 300, WallSeconds: 3, CPUSeconds: 2})
	g.SetCost("/ext/Ext/a.h", &includegraph.CostRecord{Header: "/ext/Ext/a.h", RSSBytes: 200, WallSeconds: 2, CPUSeconds: 1})
	g.SetCost("/p/Y.h", &includegraph.CostRecord{Header: "/p/Y.h", RSSBytes: 1000, WallSeconds: 10, CPUSeconds: 10})
	r, err := Analyze(ctx, g, Options{Prefixes: []string{"/p/"}, Pattern: "Ext/", Savings: true})
	if err != nil {
		t.Fatal(err)
	}
	got := r.Results[0]
	if got.Header != "/p/X.h" {
		t.Fatalf("Results[0].Header=%q; want /p/X.h", got.Header)
	}
	want := &Savings{
		Orphaned:    3,
		Measured:    2,
		RSSBytes:    500,
		WallSeconds: 5,
		CPUSeconds:  3,
	}
	if diff := cmp.Diff(want, got.Savings); diff != "" {
		t.Errorf("savings: diff -want +got:\n%s", diff)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	ctx := context.Background()
	g := newGraph(baseEdges)
	_, err := Analyze(ctx, g, Options{Pattern: "Ext/"})
	if !errors.Is(err, ErrNoPrefix) {
		t.Errorf("Analyze(no prefix)=%v; want %v", err, ErrNoPrefix)
	}
	_, err = Analyze(ctx, g, Options{Prefixes: []string{"/p/"}, Pattern: "Boost/"})
	var nerr *includegraph.NoMatchError
	if !errors.As(err, &nerr) {
		t.Errorf("Analyze(no match)=%v; want NoMatchError", err)
	}
}

func TestSyntheticHeader(t *testing.T) {
	got := SyntheticHeader([]External{
		{Header: "/ext/Ext/b.h"},
		{Header: "/ext/Ext/a.h"},
		{Header: "/ext/Ext/b.h"},
	})
	want := `#pragma once
#include "/ext/Ext/a.h"
#include "/ext/Ext/b.h"
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SyntheticHeader: diff -want +got:\n%s", diff)
	}
}

func TestExternalHeaders(t *testing.T) {
	g := newGraph([][2]string{
		{"/p/root.h", "/p/a.h"},
		{"/p/root.h", "/ext/Ext/one.h"},
		{"/p/a.h", "/ext/Ext/two.h"},
		{"/p/root.h", "/ext/Ext/two.h"},
		{"/ext/Ext/one.h", "/ext/Ext/three.h"},
		{"/other/o.h", "/ext/Ext/three.h"},
	})
	got := ExternalHeaders(g, []string{"/p/"}, "Ext/")
	want := []External{
		{Header: "/ext/Ext/two.h", Includers: []string{"/p/a.h", "/p/root.h"}},
		{Header: "/ext/Ext/one.h", Includers: []string{"/p/root.h"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ExternalHeaders: diff -want +got:\n%s", diff)
	}
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/hdrcost/bench"
	"go.chromium.org/infra/build/hdrcost/includegraph"
)

func testResults() []bench.Result {
	return []bench.Result{
		{
			Header: "/src/b.h",
			Cost:   &includegraph.CostRecord{Header: "/src/b.h", RSSBytes: 1 << 20, WallSeconds: 2, CPUSeconds: 1},
		},
		{
			Header: "/src/c.h",
			Err:    errors.New("exit=1\nc.h:1:1: error: unknown type name"),
		},
		{
			Header: "/src/a.h",
			Cost:   &includegraph.CostRecord{Header: "/src/a.h", RSSBytes: 2 << 20, WallSeconds: 1, CPUSeconds: 0.5},
		},
	}
}

func TestCostRows(t *testing.T) {
	g := testGraph()
	got := CostRows(g, testResults())
	want := []CostRow{
		{
			Header:             "/src/a.h",
			Depth:              1,
			DirectIncludeCount: 2,
			TransitiveDeps:     2,
			PreprocessedSize:   1000,
			RSSBytes:           2 << 20,
			WallSeconds:        1,
			CPUSeconds:         0.5,
		},
		{
			Header:             "/src/b.h",
			Depth:              1,
			DirectIncludeCount: 1,
			PreprocessedSize:   -1,
			RSSBytes:           1 << 20,
			WallSeconds:        2,
			CPUSeconds:         1,
		},
		{
			Header:             "/src/c.h",
			Depth:              3,
			DirectIncludeCount: 1,
			TransitiveDeps:     2,
			PreprocessedSize:   -1,
			Error:              "exit=1",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CostRows diff -want +got:\n%s", diff)
	}

	var sb strings.Builder
	err := WriteCostsJSON(&sb, got)
	if err != nil {
		t.Fatalf("WriteCostsJSON=%v", err)
	}
	var decoded []CostRow
	err = json.Unmarshal([]byte(sb.String()), &decoded)
	if err != nil {
		t.Fatalf("unmarshal %s: %v", sb.String(), err)
	}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Errorf("WriteCostsJSON diff -want +got:\n%s", diff)
	}
}

func TestWriteCostsCSV(t *testing.T) {
	var sb strings.Builder
	err := WriteCostsCSV(&sb, CostRows(testGraph(), testResults()))
	if err != nil {
		t.Fatalf("WriteCostsCSV=%v", err)
	}
	want := `header,depth,direct_include_count,transitive_deps,preprocessed_size,rss_bytes,wall_seconds,cpu_seconds,error
/src/a.h,1,2,2,1000,2097152,1.000,0.500,
/src/b.h,1,1,0,-1,1048576,2.000,1.000,
/src/c.h,3,1,2,-1,0,0.000,0.000,exit=1
`
	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("WriteCostsCSV diff -want +got:\n%s", diff)
	}
}

func TestWriteCostsJSONEmpty(t *testing.T) {
	var sb strings.Builder
	err := WriteCostsJSON(&sb, nil)
	if err != nil {
		t.Fatalf("WriteCostsJSON=%v", err)
	}
	if got := strings.TrimSpace(sb.String()); got != "[]" {
		t.Errorf("WriteCostsJSON(nil)=%q; want []", got)
	}
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package includegraph

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestJSONRoundTrip(t *testing.T) {
	g := New("/src/root.h")
	g.AddEdge("/src/root.h", "/src/a.h", SourceTrace)
	g.AddEdge("/src/root.h", "/src/a.h", SourceScan)
	g.AddEdge("/src/a.h", "/src/b.h", SourceScan)
	g.AddEdge("/src/b.h", "/src/a.h", SourceTrace)
	g.ComputeDepths()
	g.AddNode("/src/a.h").TraceCount = 2
	g.SetPreprocessedSize("/src/a.h", 1234)
	g.SetCost("/src/b.h", &CostRecord{
		Header:      "/src/b.h",
		RSSBytes:    100 << 20,
		WallSeconds: 1.5,
		CPUSeconds:  1.25,
	})

	buf, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("json.Marshal=%v", err)
	}
	got := &Graph{}
	err = json.Unmarshal(buf, got)
	if err != nil {
		t.Fatalf("json.Unmarshal=%v\n%s", err, buf)
	}
	if got.Root() != g.Root() {
		t.Errorf("Root=%q; want %q", got.Root(), g.Root())
	}
	if diff := cmp.Diff(g.Nodes(), got.Nodes()); diff != "" {
		t.Errorf("nodes: diff -want +got:\n%s", diff)
	}
	if diff := cmp.Diff(g.Edges(), got.Edges()); diff != "" {
		t.Errorf("edges: diff -want +got:\n%s", diff)
	}

	// stable output.
	buf2, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf) != string(buf2) {
		t.Errorf("marshal not stable:\n%s\n%s", buf, buf2)
	}
}

func TestJSONUnmarshalError(t *testing.T) {
	for _, tc := range []struct {
		name string
		data string
	}{
		{
			name: "noRoot",
			data: `{"nodes":[],"edges":[]}`,
		},
		{
			name: "badSource",
			data: `{"root":"r","nodes":[],"edges":[{"from":"r","to":"a","source":["magic"]}]}`,
		},
		{
			name: "inconsistentCount",
			data: `{"root":"r","nodes":[{"path":"a","direct_include_count":3}],"edges":[{"from":"r","to":"a","source":["trace"]}]}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			g := &Graph{}
			if err := json.Unmarshal([]byte(tc.data), g); err == nil {
				t.Errorf("json.Unmarshal(%s)=nil; want error", tc.data)
			}
		})
	}
}

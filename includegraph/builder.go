// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package includegraph

import (
	"context"
	"fmt"

	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/scandeps"
	"go.chromium.org/infra/build/hdrcost/toolsupport/gccutil"
)

// Scanner scans a header for its direct includes.
type Scanner interface {
	Scan(ctx context.Context, path string) (scandeps.Result, error)
}

// Builder builds an include graph from trace events and scanner results.
type Builder struct {
	// Root is canonical path of the root header.
	Root string

	// Dir is the directory relative trace paths are resolved against.
	Dir string

	// Scanner, if set, is run over every node to add edges the trace omits.
	Scanner Scanner
}

// BuildStats are statistics of a build.
type BuildStats struct {
	TraceEvents int
	TraceEdges  int
	Scanned     int
	ScanEdges   int
	ScanErrors  int
	Unresolved  int
}

// Build builds the graph from trace events.
//
// A depth-N event is included by the nearest preceding event of depth
// N-1, and depth-1 events are included by the root. If the first event
// is the root itself, as in the trace of a translation unit that only
// includes the root, depths are rebased by one.
func (b *Builder) Build(ctx context.Context, events []gccutil.TraceEvent) (*Graph, BuildStats, error) {
	var stats BuildStats
	g := New(b.Root)
	// nodes in discovery order, for scan worklist.
	order := []string{b.Root}
	seen := map[string]bool{b.Root: true}
	discover := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		order = append(order, p)
	}

	offset := 0
	if len(events) > 0 && scandeps.Canonical(b.Dir, events[0].Path) == b.Root {
		offset = 1
		events = events[1:]
	}
	stack := []string{b.Root}
	for i, ev := range events {
		depth := ev.Depth - offset
		if depth < 1 {
			// other top level include in the translation unit.
			depth = 1
		}
		if depth > len(stack) {
			return nil, stats, fmt.Errorf("event %d %q: depth %d after depth %d: %w", i, ev.Path, ev.Depth, len(stack)-1+offset, gccutil.ErrTraceUnparsable)
		}
		p := scandeps.Canonical(b.Dir, ev.Path)
		parent := stack[depth-1]
		stack = append(stack[:depth], p)
		stats.TraceEvents++
		g.AddNode(p).TraceCount++
		discover(p)
		if parent == p {
			continue
		}
		if g.AddEdge(parent, p, SourceTrace) {
			stats.TraceEdges++
		}
	}

	if b.Scanner != nil {
		for i := 0; i < len(order); i++ {
			p := order[i]
			r, err := b.Scanner.Scan(ctx, p)
			if err != nil {
				clog.Warningf(ctx, "failed to scan %s: %v", p, err)
				stats.ScanErrors++
				continue
			}
			stats.Scanned++
			stats.Unresolved += len(r.Unresolved)
			for _, inc := range r.Includes {
				if inc == p {
					continue
				}
				discover(inc)
				if g.AddEdge(p, inc, SourceScan) {
					stats.ScanEdges++
				}
			}
		}
	}
	g.ComputeDepths()
	clog.Infof(ctx, "graph nodes=%d edges=%d trace_events=%d trace_edges=%d scanned=%d scan_edges=%d scan_errors=%d unresolved=%d", g.Len(), g.NumEdges(), stats.TraceEvents, stats.TraceEdges, stats.Scanned, stats.ScanEdges, stats.ScanErrors, stats.Unresolved)
	return g, stats, nil
}

// ComputeDepths sets depth of every node.
// Nodes reachable from the root by trace edges get the shortest distance
// over trace edges. Other nodes get the minimum depth of their parents
// plus one. Nodes not reachable from the root get UnknownDepth.
func (g *Graph) ComputeDepths() {
	depth := make(map[string]int, len(g.nodes))
	depth[g.root] = 0
	queue := []string{g.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for c, src := range g.children[n] {
			if src&SourceTrace == 0 {
				continue
			}
			if _, ok := depth[c]; ok {
				continue
			}
			depth[c] = depth[n] + 1
			queue = append(queue, c)
		}
	}
	traced := make(map[string]bool, len(depth))
	for p := range depth {
		traced[p] = true
	}

	// level-ordered relaxation into nodes the trace never reached.
	maxDepth := 0
	levels := make(map[int][]string)
	for p, d := range depth {
		levels[d] = append(levels[d], p)
		maxDepth = max(maxDepth, d)
	}
	for d := 0; d <= maxDepth; d++ {
		for _, n := range levels[d] {
			if depth[n] != d {
				// stale entry.
				continue
			}
			for c := range g.children[n] {
				if traced[c] {
					continue
				}
				cd, ok := depth[c]
				if ok && cd <= d+1 {
					continue
				}
				depth[c] = d + 1
				levels[d+1] = append(levels[d+1], c)
				maxDepth = max(maxDepth, d+1)
			}
		}
		delete(levels, d)
	}
	for p, n := range g.nodes {
		d, ok := depth[p]
		if !ok {
			d = UnknownDepth
		}
		n.Depth = d
	}
}

// MaxDepth returns the maximum depth of nodes.
func (g *Graph) MaxDepth() int {
	m := 0
	for _, n := range g.nodes {
		m = max(m, n.Depth)
	}
	return m
}

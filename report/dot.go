// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"go.chromium.org/infra/build/hdrcost/includegraph"
)

// DOTFile is the file name of the include graph in graphviz dot.
const DOTFile = "include_graph.dot"

// DOTOptions are options of WriteDOT.
type DOTOptions struct {
	// Prefixes limits nodes to those under prefixes (and the root).
	// Nodes on paths between them are kept too.
	Prefixes []string

	// TrimPrefix is removed from node labels.
	TrimPrefix string
}

// WriteDOT writes g in graphviz dot format.
// Nodes are grouped by depth, and filled darker the more often
// the trace reported them. Edges only found by scanning are dashed.
func WriteDOT(w io.Writer, g *includegraph.Graph, opts DOTOptions) error {
	keep := func(string) bool { return true }
	if len(opts.Prefixes) > 0 {
		fr := g.Filter(opts.Prefixes)
		m := map[string]bool{g.Root(): true}
		for _, p := range fr.Included {
			m[p] = true
		}
		for _, p := range fr.Intermediate {
			m[p] = true
		}
		keep = func(p string) bool { return m[p] }
	}

	maxCount := 1
	byDepth := make(map[int][]*includegraph.Node)
	var depths []int
	for _, n := range g.Nodes() {
		if !keep(n.Path) {
			continue
		}
		maxCount = max(maxCount, n.TraceCount)
		if _, ok := byDepth[n.Depth]; !ok {
			depths = append(depths, n.Depth)
		}
		byDepth[n.Depth] = append(byDepth[n.Depth], n)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %q {\n", filepath.Base(g.Root()))
	fmt.Fprintln(bw, "  rankdir=LR;")
	fmt.Fprintln(bw, "  node [shape=box, style=filled, fontname=\"monospace\"];")
	slices.Sort(depths)
	for _, d := range depths {
		name := fmt.Sprintf("depth_%d", d)
		if d == includegraph.UnknownDepth {
			name = "depth_unknown"
		}
		fmt.Fprintf(bw, "  subgraph %s {\n    rank=same;\n", name)
		for _, n := range byDepth[d] {
			fmt.Fprintf(bw, "    %q [label=%q, fillcolor=%q];\n", n.Path, dotLabel(n, opts.TrimPrefix), heatColor(n.TraceCount, maxCount))
		}
		fmt.Fprintln(bw, "  }")
	}
	for _, e := range g.Edges() {
		if !keep(e.From) || !keep(e.To) {
			continue
		}
		var attrs []string
		if e.Source&includegraph.SourceTrace == 0 {
			attrs = append(attrs, "style=dashed")
		}
		if kind, ok := g.Classify(e.From, e.To); ok && kind == includegraph.EdgeBack {
			attrs = append(attrs, "color=red")
		}
		if len(attrs) > 0 {
			fmt.Fprintf(bw, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
			continue
		}
		fmt.Fprintf(bw, "  %q -> %q;\n", e.From, e.To)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func dotLabel(n *includegraph.Node, trim string) string {
	label := n.Path
	if trim != "" {
		label = strings.TrimPrefix(label, trim)
	}
	if n.TraceCount > 1 {
		label = fmt.Sprintf("%s\n(%dx)", label, n.TraceCount)
	}
	return label
}

// heatColor returns color from light yellow (count=0) to red
// (count=maxCount).
func heatColor(count, maxCount int) string {
	ratio := float64(count) / float64(maxCount)
	g := 255 - int(ratio*200)
	b := 224 - int(ratio*224)
	return fmt.Sprintf("#ff%02x%02x", g, b)
}

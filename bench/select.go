// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bench

import (
	"slices"
	"strings"

	"go.chromium.org/infra/build/hdrcost/includegraph"
)

// Select ranks nodes by depth descending, preprocessed size descending
// and path, and returns paths of the top limit nodes.
// limit <= 0 selects all nodes.
// Deep, large headers come first since they are likely the most
// expensive ones to compile alone.
func Select(nodes []*includegraph.Node, limit int) []string {
	ranked := slices.Clone(nodes)
	slices.SortFunc(ranked, func(a, b *includegraph.Node) int {
		if a.Depth != b.Depth {
			return b.Depth - a.Depth
		}
		if a.PreprocessedSize != b.PreprocessedSize {
			if a.PreprocessedSize > b.PreprocessedSize {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	paths := make([]string, 0, len(ranked))
	for _, n := range ranked {
		paths = append(paths, n.Path)
	}
	return paths
}

// PlanOptions are options to plan headers to benchmark.
type PlanOptions struct {
	// Limit is the number of headers to select. <= 0 means all.
	Limit int

	// Prefixes limits candidates to headers under the prefixes.
	Prefixes []string

	// IncludeRoot adds the root header in front of the selection,
	// to show total cost of the root.
	IncludeRoot bool
}

// Candidates returns nodes that may be benchmarked: nodes under
// prefixes, except the root.
func Candidates(g *includegraph.Graph, prefixes []string) []*includegraph.Node {
	var nodes []*includegraph.Node
	for _, n := range g.Nodes() {
		if n.Path == g.Root() {
			continue
		}
		if !includegraph.UnderPrefix(n.Path, prefixes) {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes
}

// Plan returns headers to benchmark in g, in benchmark order.
func Plan(g *includegraph.Graph, opts PlanOptions) []string {
	headers := Select(Candidates(g, opts.Prefixes), opts.Limit)
	if opts.IncludeRoot {
		headers = append([]string{g.Root()}, headers...)
	}
	return headers
}

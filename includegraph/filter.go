// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package includegraph

import (
	"path/filepath"
	"slices"
	"strings"
)

// UnderPrefix reports whether path is under any of prefixes.
// Empty prefixes matches any path.
func UnderPrefix(path string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// FilterResult is a result of filtering nodes by path prefixes.
type FilterResult struct {
	// Included are nodes under the prefixes, sorted.
	Included []string

	// Intermediate are nodes not under the prefixes but on a path
	// between included nodes, sorted.
	Intermediate []string

	// Warnings report paths going through nodes outside of the
	// prefixes, e.g. "Path through external: a.h -> ext.h -> b.h".
	Warnings []string
}

// Filter selects nodes under prefixes, and detects paths
// included -> excluded -> ... -> included.
func (g *Graph) Filter(prefixes []string) FilterResult {
	var res FilterResult
	included := make(map[string]bool)
	for p := range g.nodes {
		if UnderPrefix(p, prefixes) {
			included[p] = true
			res.Included = append(res.Included, p)
		}
	}
	slices.Sort(res.Included)

	intermediate := make(map[string]bool)
	warned := make(map[string]bool)
	for _, ex := range g.Paths() {
		if included[ex] {
			continue
		}
		var inParents []string
		for _, p := range g.Parents(ex) {
			if included[p] {
				inParents = append(inParents, p)
			}
		}
		if len(inParents) == 0 {
			continue
		}
		type item struct {
			node string
			path []string
		}
		visited := map[string]bool{}
		queue := []item{{node: ex, path: []string{ex}}}
		for len(queue) > 0 {
			it := queue[0]
			queue = queue[1:]
			if visited[it.node] {
				continue
			}
			visited[it.node] = true
			for _, c := range g.Children(it.node) {
				if !included[c] {
					if !visited[c] {
						queue = append(queue, item{node: c, path: append(slices.Clone(it.path), c)})
					}
					continue
				}
				for _, p := range inParents {
					full := append(append([]string{p}, it.path...), c)
					w := "Path through external: " + joinBase(full)
					if !warned[w] {
						warned[w] = true
						res.Warnings = append(res.Warnings, w)
					}
				}
				for _, n := range it.path {
					intermediate[n] = true
				}
			}
		}
	}
	for n := range intermediate {
		res.Intermediate = append(res.Intermediate, n)
	}
	slices.Sort(res.Intermediate)
	return res
}

func joinBase(paths []string) string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return strings.Join(names, " -> ")
}

// EdgeKind is a kind of edge by depth relationship.
type EdgeKind string

const (
	// EdgeTree is an edge with child depth == parent depth + 1.
	EdgeTree EdgeKind = "tree"
	// EdgeBack is an edge with child depth < parent depth.
	EdgeBack EdgeKind = "back"
	// EdgeSame is an edge with child depth == parent depth.
	EdgeSame EdgeKind = "same"
	// EdgeSkip is an edge with child depth > parent depth + 1.
	EdgeSkip EdgeKind = "skip"
)

// Classify returns kind of edge from -> to.
// It returns false if either depth is unknown.
func (g *Graph) Classify(from, to string) (EdgeKind, bool) {
	fn, ok := g.nodes[from]
	if !ok || fn.Depth == UnknownDepth {
		return "", false
	}
	tn, ok := g.nodes[to]
	if !ok || tn.Depth == UnknownDepth {
		return "", false
	}
	switch {
	case tn.Depth == fn.Depth+1:
		return EdgeTree, true
	case tn.Depth < fn.Depth:
		return EdgeBack, true
	case tn.Depth == fn.Depth:
		return EdgeSame, true
	}
	return EdgeSkip, true
}

// ClassifyEdges classifies all edges by depth relationship.
func (g *Graph) ClassifyEdges() map[EdgeKind][]Edge {
	m := make(map[EdgeKind][]Edge)
	for _, e := range g.Edges() {
		k, ok := g.Classify(e.From, e.To)
		if !ok {
			continue
		}
		m[k] = append(m[k], e)
	}
	return m
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package includegraph provides a directed graph of header inclusion,
// built from compiler include trace and source scanning.
package includegraph

import (
	"slices"
	"strings"
)

// UnknownDepth is the depth of a node not reachable from the root.
const UnknownDepth = -1

// Source is a bitmask of where an edge was observed.
type Source uint8

const (
	// SourceTrace is an edge reported by the compiler's include trace.
	SourceTrace Source = 1 << iota
	// SourceScan is an edge found by scanning #include directives.
	SourceScan
)

func (s Source) String() string {
	names := s.names()
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// CostRecord is measured cost of compiling a header alone.
type CostRecord struct {
	Header      string  `json:"header"`
	RSSBytes    int64   `json:"rss_bytes"`
	WallSeconds float64 `json:"wall_seconds"`
	CPUSeconds  float64 `json:"cpu_seconds"`
}

// Node is a header in the graph.
type Node struct {
	// Path is canonical absolute path of the header.
	Path string

	// Depth is the minimum inclusion depth from the root.
	// The root is 0.
	Depth int

	// DirectIncludeCount is the number of distinct headers that
	// directly include this header.
	DirectIncludeCount int

	// TraceCount is the number of times the trace reported the header.
	TraceCount int

	// PreprocessedSize is the size in bytes of preprocessed output of
	// the header, or -1 if not measured.
	PreprocessedSize int64

	// Cost is the benchmark result, or nil if not measured.
	Cost *CostRecord
}

// Edge is an include edge: From directly includes To.
type Edge struct {
	From   string
	To     string
	Source Source
}

// Graph is a directed include graph. It may have cycles.
type Graph struct {
	root     string
	nodes    map[string]*Node
	children map[string]map[string]Source
	parents  map[string]map[string]bool
}

// New creates a graph with the root node.
func New(root string) *Graph {
	g := &Graph{
		root:     root,
		nodes:    make(map[string]*Node),
		children: make(map[string]map[string]Source),
		parents:  make(map[string]map[string]bool),
	}
	g.AddNode(root).Depth = 0
	return g
}

// Root returns path of the root header.
func (g *Graph) Root() string {
	return g.root
}

// Len returns number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node for path.
func (g *Graph) Node(path string) (*Node, bool) {
	n, ok := g.nodes[path]
	return n, ok
}

// AddNode returns the node for path, creating it if it doesn't exist.
func (g *Graph) AddNode(path string) *Node {
	if n, ok := g.nodes[path]; ok {
		return n
	}
	n := &Node{
		Path:             path,
		Depth:            UnknownDepth,
		PreprocessedSize: -1,
	}
	g.nodes[path] = n
	return n
}

// Nodes returns all nodes sorted by path.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		nodes = append(nodes, n)
	}
	slices.SortFunc(nodes, func(a, b *Node) int {
		return strings.Compare(a.Path, b.Path)
	})
	return nodes
}

// Paths returns all node paths, sorted.
func (g *Graph) Paths() []string {
	paths := make([]string, 0, len(g.nodes))
	for p := range g.nodes {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// AddEdge adds edge from -> to observed by src, creating nodes as needed.
// An existing edge gets src added to its sources.
// It returns true if the edge is new.
func (g *Graph) AddEdge(from, to string, src Source) bool {
	g.AddNode(from)
	tn := g.AddNode(to)
	cs, ok := g.children[from]
	if !ok {
		cs = make(map[string]Source)
		g.children[from] = cs
	}
	old, exists := cs[to]
	cs[to] = old | src
	if exists {
		return false
	}
	ps, ok := g.parents[to]
	if !ok {
		ps = make(map[string]bool)
		g.parents[to] = ps
	}
	ps[from] = true
	tn.DirectIncludeCount = len(ps)
	return true
}

// EdgeSource returns sources of edge from -> to.
func (g *Graph) EdgeSource(from, to string) (Source, bool) {
	s, ok := g.children[from][to]
	return s, ok
}

// Children returns headers directly included by path, sorted.
func (g *Graph) Children(path string) []string {
	cs := g.children[path]
	children := make([]string, 0, len(cs))
	for c := range cs {
		children = append(children, c)
	}
	slices.Sort(children)
	return children
}

// Parents returns headers that directly include path, sorted.
func (g *Graph) Parents(path string) []string {
	ps := g.parents[path]
	parents := make([]string, 0, len(ps))
	for p := range ps {
		parents = append(parents, p)
	}
	slices.Sort(parents)
	return parents
}

// NumEdges returns number of edges.
func (g *Graph) NumEdges() int {
	n := 0
	for _, cs := range g.children {
		n += len(cs)
	}
	return n
}

// Edges returns all edges sorted by from, to.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.NumEdges())
	for from, cs := range g.children {
		for to, src := range cs {
			edges = append(edges, Edge{From: from, To: to, Source: src})
		}
	}
	slices.SortFunc(edges, func(a, b Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
	return edges
}

// Reachable returns nodes reachable from start, including start.
// If skip is non-empty, paths through skip are not followed, and
// skip is not in the result.
func (g *Graph) Reachable(start, skip string) map[string]bool {
	visited := make(map[string]bool)
	if _, ok := g.nodes[start]; !ok || start == skip {
		return visited
	}
	visited[start] = true
	queue := []string{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for c := range g.children[n] {
			if c == skip || visited[c] {
				continue
			}
			visited[c] = true
			queue = append(queue, c)
		}
	}
	return visited
}

// ReverseReachable returns nodes that reach any of starts, including
// starts. Paths through skip are not followed.
func (g *Graph) ReverseReachable(starts []string, skip string) map[string]bool {
	visited := make(map[string]bool)
	var queue []string
	for _, s := range starts {
		if _, ok := g.nodes[s]; !ok || s == skip || visited[s] {
			continue
		}
		visited[s] = true
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for p := range g.parents[n] {
			if p == skip || visited[p] {
				continue
			}
			visited[p] = true
			queue = append(queue, p)
		}
	}
	return visited
}

// SetPreprocessedSize sets preprocessed size of path.
func (g *Graph) SetPreprocessedSize(path string, size int64) {
	if n, ok := g.nodes[path]; ok {
		n.PreprocessedSize = size
	}
}

// SetCost sets cost of path.
func (g *Graph) SetCost(path string, cost *CostRecord) {
	if n, ok := g.nodes[path]; ok {
		n.Cost = cost
	}
}

// TransitiveDeps returns the number of headers reachable from
// each node, excluding the node itself.
func (g *Graph) TransitiveDeps() map[string]int {
	deps := make(map[string]int, len(g.nodes))
	for p := range g.nodes {
		deps[p] = len(g.Reachable(p, "")) - 1
	}
	return deps
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package includegraph

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsonNode struct {
	Path               string      `json:"path"`
	Depth              int         `json:"depth"`
	DirectIncludeCount int         `json:"direct_include_count"`
	TraceCount         int         `json:"trace_count"`
	PreprocessedSize   int64       `json:"preprocessed_size"`
	Cost               *CostRecord `json:"cost,omitempty"`
}

type jsonEdge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Source []string `json:"source"`
}

type jsonGraph struct {
	Root  string     `json:"root"`
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

func (s Source) names() []string {
	var names []string
	if s&SourceTrace != 0 {
		names = append(names, "trace")
	}
	if s&SourceScan != 0 {
		names = append(names, "scan")
	}
	return names
}

func parseSource(names []string) (Source, error) {
	var s Source
	for _, name := range names {
		switch name {
		case "trace":
			s |= SourceTrace
		case "scan":
			s |= SourceScan
		default:
			return 0, fmt.Errorf("unknown edge source %q", name)
		}
	}
	return s, nil
}

// MarshalJSON marshals the graph with nodes and edges sorted.
func (g *Graph) MarshalJSON() ([]byte, error) {
	jg := jsonGraph{
		Root:  g.root,
		Nodes: []jsonNode{},
		Edges: []jsonEdge{},
	}
	for _, n := range g.Nodes() {
		jg.Nodes = append(jg.Nodes, jsonNode{
			Path:               n.Path,
			Depth:              n.Depth,
			DirectIncludeCount: n.DirectIncludeCount,
			TraceCount:         n.TraceCount,
			PreprocessedSize:   n.PreprocessedSize,
			Cost:               n.Cost,
		})
	}
	for _, e := range g.Edges() {
		jg.Edges = append(jg.Edges, jsonEdge{
			From:   e.From,
			To:     e.To,
			Source: e.Source.names(),
		})
	}
	return json.Marshal(jg)
}

// UnmarshalJSON unmarshals the graph marshaled by MarshalJSON.
func (g *Graph) UnmarshalJSON(buf []byte) error {
	var jg jsonGraph
	err := json.Unmarshal(buf, &jg)
	if err != nil {
		return err
	}
	if strings.TrimSpace(jg.Root) == "" {
		return fmt.Errorf("no root in graph")
	}
	*g = *New(jg.Root)
	for _, e := range jg.Edges {
		src, err := parseSource(e.Source)
		if err != nil {
			return fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}
		g.AddEdge(e.From, e.To, src)
	}
	for _, jn := range jg.Nodes {
		n := g.AddNode(jn.Path)
		n.Depth = jn.Depth
		n.TraceCount = jn.TraceCount
		n.PreprocessedSize = jn.PreprocessedSize
		n.Cost = jn.Cost
		if n.DirectIncludeCount != jn.DirectIncludeCount {
			return fmt.Errorf("node %s: direct_include_count=%d, but %d parents in edges", jn.Path, jn.DirectIncludeCount, n.DirectIncludeCount)
		}
	}
	return nil
}

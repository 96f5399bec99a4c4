// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package consolidate finds project headers that expose an external
// dependency, and estimates what consolidating them would save.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.chromium.org/infra/build/hdrcost/includegraph"
	"go.chromium.org/infra/build/hdrcost/o11y/clog"
)

// ErrNoPrefix is returned when no project prefix is given.
var ErrNoPrefix = errors.New("no project prefix")

// Savings is estimated cost saved when every project include of
// a header is removed, i.e. the header is removed from the graph.
// Headers no longer reachable from the root, the header itself
// included, are orphaned. Only orphaned headers with benchmark cost
// are summed.
type Savings struct {
	Orphaned    int     `json:"orphaned"`
	Measured    int     `json:"measured"`
	RSSBytes    int64   `json:"rss_bytes"`
	WallSeconds float64 `json:"wall_seconds"`
	CPUSeconds  float64 `json:"cpu_seconds"`
}

// Result is the analysis of an exposing header.
type Result struct {
	Header string `json:"header"`

	// Direct is true if the header directly includes a pattern header.
	Direct bool `json:"direct"`

	// TransitivelyExposes is true if the header reaches pattern
	// headers only through other headers.
	TransitivelyExposes bool `json:"transitively_exposes"`

	// DirectExternal are pattern headers directly included.
	DirectExternal []string `json:"direct_external,omitempty"`

	// AffectedCount is the number of other project headers that
	// reach pattern headers only through this header.
	AffectedCount int      `json:"affected_count"`
	Affected      []string `json:"affected,omitempty"`

	Savings *Savings `json:"savings,omitempty"`
}

// External is a pattern header directly included by project headers.
type External struct {
	Header    string   `json:"header"`
	Includers []string `json:"includers"`
}

// Report is a consolidation report.
type Report struct {
	Pattern        string   `json:"pattern"`
	Prefixes       []string `json:"prefixes"`
	ProjectHeaders int      `json:"project_headers"`
	PatternHeaders int      `json:"pattern_headers"`

	// Results are exposing headers sorted by affected count
	// descending, then by path.
	Results []Result `json:"results"`

	// External are pattern headers directly included by project
	// headers, sorted by number of includers descending, then by path.
	External []External `json:"external"`
}

// Options are options of Analyze.
type Options struct {
	// Prefixes are path prefixes of project headers.
	Prefixes []string

	// Pattern is substring of pattern (external) header paths.
	Pattern string

	// Savings enables cost savings estimate from benchmark costs.
	Savings bool

	// Headers limits the analyzed exposing headers. Empty means all.
	// A header's result doesn't depend on which other headers are
	// analyzed.
	Headers []string
}

// Analyze analyzes headers exposing pattern headers in g.
func Analyze(ctx context.Context, g *includegraph.Graph, opts Options) (*Report, error) {
	if len(opts.Prefixes) == 0 {
		return nil, ErrNoPrefix
	}
	if opts.Pattern == "" {
		return nil, errors.New("empty pattern")
	}
	isPattern := func(p string) bool {
		return strings.Contains(p, opts.Pattern)
	}
	var patterns []string
	project := make(map[string]bool)
	for _, p := range g.Paths() {
		switch {
		case isPattern(p):
			patterns = append(patterns, p)
		case includegraph.UnderPrefix(p, opts.Prefixes):
			project[p] = true
		}
	}
	if len(patterns) == 0 {
		return nil, &includegraph.NoMatchError{Substr: opts.Pattern}
	}
	report := &Report{
		Pattern:        opts.Pattern,
		Prefixes:       opts.Prefixes,
		ProjectHeaders: len(project),
		PatternHeaders: len(patterns),
		Results:        []Result{},
		External:       []External{},
	}

	reach := g.ReverseReachable(patterns, "")
	var rootReach map[string]bool
	if opts.Savings {
		rootReach = g.Reachable(g.Root(), "")
	}
	var only map[string]bool
	if len(opts.Headers) > 0 {
		only = make(map[string]bool)
		for _, h := range opts.Headers {
			only[h] = true
		}
	}
	for _, h := range g.Paths() {
		if !project[h] || !reach[h] {
			continue
		}
		if only != nil && !only[h] {
			continue
		}
		res := Result{Header: h}
		for _, c := range g.Children(h) {
			if isPattern(c) {
				res.DirectExternal = append(res.DirectExternal, c)
			}
		}
		res.Direct = len(res.DirectExternal) > 0
		res.TransitivelyExposes = !res.Direct

		without := g.ReverseReachable(patterns, h)
		for _, p := range g.Paths() {
			if p == h || !project[p] || !reach[p] || without[p] {
				continue
			}
			res.Affected = append(res.Affected, p)
		}
		res.AffectedCount = len(res.Affected)
		if opts.Savings {
			res.Savings = savings(g, rootReach, h)
		}
		report.Results = append(report.Results, res)
	}
	slices.SortStableFunc(report.Results, func(a, b Result) int {
		if a.AffectedCount != b.AffectedCount {
			return b.AffectedCount - a.AffectedCount
		}
		return strings.Compare(a.Header, b.Header)
	})
	report.External = ExternalHeaders(g, opts.Prefixes, opts.Pattern)
	clog.Infof(ctx, "consolidate %q: project=%d pattern=%d exposing=%d external=%d", opts.Pattern, len(project), len(patterns), len(report.Results), len(report.External))
	return report, nil
}

func savings(g *includegraph.Graph, before map[string]bool, h string) *Savings {
	after := g.Reachable(g.Root(), h)
	s := &Savings{}
	for p := range before {
		if after[p] {
			continue
		}
		s.Orphaned++
		n, ok := g.Node(p)
		if !ok || n.Cost == nil {
			continue
		}
		s.Measured++
		s.RSSBytes += n.Cost.RSSBytes
		s.WallSeconds += n.Cost.WallSeconds
		s.CPUSeconds += n.Cost.CPUSeconds
	}
	return s
}

// ExternalHeaders returns pattern headers directly included by project
// headers, with their project includers.
func ExternalHeaders(g *includegraph.Graph, prefixes []string, pattern string) []External {
	var exts []External
	for _, p := range g.Paths() {
		if !strings.Contains(p, pattern) {
			continue
		}
		var includers []string
		for _, parent := range g.Parents(p) {
			if strings.Contains(parent, pattern) || !includegraph.UnderPrefix(parent, prefixes) {
				continue
			}
			includers = append(includers, parent)
		}
		if len(includers) == 0 {
			continue
		}
		exts = append(exts, External{Header: p, Includers: includers})
	}
	slices.SortStableFunc(exts, func(a, b External) int {
		if len(a.Includers) != len(b.Includers) {
			return len(b.Includers) - len(a.Includers)
		}
		return strings.Compare(a.Header, b.Header)
	})
	return exts
}

// SyntheticHeader returns an umbrella header that includes all
// external headers, to measure cost of the external dependency as a whole.
func SyntheticHeader(exts []External) string {
	headers := make([]string, 0, len(exts))
	for _, e := range exts {
		headers = append(headers, e.Header)
	}
	slices.Sort(headers)
	headers = slices.Compact(headers)
	var sb strings.Builder
	sb.WriteString("#pragma once\n")
	for _, h := range headers {
		fmt.Fprintf(&sb, "#include \"%s\"\n", h)
	}
	return sb.String()
}

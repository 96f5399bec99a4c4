// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.chromium.org/infra/build/hdrcost/includegraph"
	"go.chromium.org/infra/build/hdrcost/ui"
)

// SummaryFile is the file name of the summary.
const SummaryFile = "summary.txt"

// Summary is a summary of an analysis.
type Summary struct {
	RunID    string
	Host     string
	Profiler string
	Graph    *includegraph.Graph
	Stats    includegraph.BuildStats
	Rows     []CostRow
	Warnings []string

	// Top is the number of headers listed in each ranking.
	// <= 0 means 10.
	Top int
}

// WriteSummary writes human readable summary.
func WriteSummary(w io.Writer, s Summary) error {
	top := s.Top
	if top <= 0 {
		top = 10
	}
	g := s.Graph
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "root: %s\n", g.Root())
	if s.RunID != "" {
		fmt.Fprintf(bw, "run: %s\n", s.RunID)
	}
	if s.Host != "" {
		fmt.Fprintf(bw, "host: %s\n", s.Host)
	}
	fmt.Fprintf(bw, "headers: %d\nedges: %d\nmax depth: %d\n", g.Len(), g.NumEdges(), g.MaxDepth())
	fmt.Fprintf(bw, "trace: %d events, %d edges\n", s.Stats.TraceEvents, s.Stats.TraceEdges)
	fmt.Fprintf(bw, "scan: %d files, %d new edges, %d errors, %d unresolved includes\n", s.Stats.Scanned, s.Stats.ScanEdges, s.Stats.ScanErrors, s.Stats.Unresolved)

	kinds := g.ClassifyEdges()
	fmt.Fprintf(bw, "edge kinds:")
	for _, k := range []includegraph.EdgeKind{includegraph.EdgeTree, includegraph.EdgeSame, includegraph.EdgeSkip, includegraph.EdgeBack} {
		fmt.Fprintf(bw, " %s=%d", k, len(kinds[k]))
	}
	fmt.Fprintln(bw)

	var ok []CostRow
	failed := 0
	for _, r := range s.Rows {
		if r.Error != "" {
			failed++
			continue
		}
		ok = append(ok, r)
	}
	if len(s.Rows) > 0 {
		fmt.Fprintf(bw, "\nbenchmark: %d headers, %d failed", len(s.Rows), failed)
		if s.Profiler != "" {
			fmt.Fprintf(bw, " (profiler=%s)", s.Profiler)
		}
		fmt.Fprintln(bw)

		fmt.Fprintf(bw, "\ntop %d by peak RSS:\n", min(top, len(ok)))
		for _, r := range head(ok, top) {
			fmt.Fprintf(bw, "  %10s %s\n", FormatBytes(r.RSSBytes), r.Header)
		}
		byTime := slices.Clone(ok)
		slices.SortStableFunc(byTime, func(a, b CostRow) int {
			switch {
			case a.WallSeconds > b.WallSeconds:
				return -1
			case a.WallSeconds < b.WallSeconds:
				return 1
			}
			return strings.Compare(a.Header, b.Header)
		})
		fmt.Fprintf(bw, "\ntop %d by wall time:\n", min(top, len(ok)))
		for _, r := range head(byTime, top) {
			fmt.Fprintf(bw, "  %10s %s\n", ui.FormatSeconds(r.WallSeconds), r.Header)
		}
		if failed > 0 {
			fmt.Fprintln(bw, "\nfailed:")
			for _, r := range s.Rows {
				if r.Error != "" {
					fmt.Fprintf(bw, "  %s: %s\n", r.Header, r.Error)
				}
			}
		}
	}

	type dep struct {
		path string
		n    int
	}
	var deps []dep
	for p, n := range g.TransitiveDeps() {
		if p == g.Root() {
			continue
		}
		deps = append(deps, dep{p, n})
	}
	slices.SortFunc(deps, func(a, b dep) int {
		if a.n != b.n {
			return b.n - a.n
		}
		return strings.Compare(a.path, b.path)
	})
	if len(deps) > 0 {
		fmt.Fprintf(bw, "\ntop %d by transitive deps:\n", min(top, len(deps)))
		for _, d := range head(deps, top) {
			fmt.Fprintf(bw, "  %10d %s\n", d.n, d.path)
		}
	}

	if len(s.Warnings) > 0 {
		fmt.Fprintf(bw, "\nwarnings:\n")
		for _, w := range s.Warnings {
			fmt.Fprintf(bw, "  %s\n", w)
		}
	}
	return bw.Flush()
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// FormatBytes formats n bytes in human readable form.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"slices"
	"strconv"
	"strings"

	"go.chromium.org/infra/build/hdrcost/bench"
	"go.chromium.org/infra/build/hdrcost/includegraph"
)

const (
	// CostsJSONFile is the file name of header costs in JSON.
	CostsJSONFile = "header_costs.json"

	// CostsCSVFile is the file name of header costs in CSV.
	CostsCSVFile = "header_costs.csv"
)

// CostRow is a row of header costs.
type CostRow struct {
	Header             string  `json:"header"`
	Depth              int     `json:"depth"`
	DirectIncludeCount int     `json:"direct_include_count"`
	TransitiveDeps     int     `json:"transitive_deps"`
	PreprocessedSize   int64   `json:"preprocessed_size"`
	RSSBytes           int64   `json:"rss_bytes"`
	WallSeconds        float64 `json:"wall_seconds"`
	CPUSeconds         float64 `json:"cpu_seconds"`
	Error              string  `json:"error,omitempty"`
}

// CostRows returns rows of benchmarked headers, sorted by RSS
// descending, then by header. Failed headers are at the end.
func CostRows(g *includegraph.Graph, results []bench.Result) []CostRow {
	deps := g.TransitiveDeps()
	rows := make([]CostRow, 0, len(results))
	for _, r := range results {
		row := CostRow{
			Header:           r.Header,
			Depth:            includegraph.UnknownDepth,
			PreprocessedSize: -1,
			TransitiveDeps:   deps[r.Header],
		}
		if n, ok := g.Node(r.Header); ok {
			row.Depth = n.Depth
			row.DirectIncludeCount = n.DirectIncludeCount
			row.PreprocessedSize = n.PreprocessedSize
		}
		if r.Err != nil {
			row.Error = firstLine(r.Err.Error())
		}
		if r.Cost != nil {
			row.RSSBytes = r.Cost.RSSBytes
			row.WallSeconds = r.Cost.WallSeconds
			row.CPUSeconds = r.Cost.CPUSeconds
		}
		rows = append(rows, row)
	}
	slices.SortStableFunc(rows, func(a, b CostRow) int {
		if (a.Error == "") != (b.Error == "") {
			if a.Error == "" {
				return -1
			}
			return 1
		}
		if a.RSSBytes != b.RSSBytes {
			if a.RSSBytes > b.RSSBytes {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Header, b.Header)
	})
	return rows
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(s, "\n")
	return s
}

// WriteCostsJSON writes rows in JSON.
func WriteCostsJSON(w io.Writer, rows []CostRow) error {
	if rows == nil {
		rows = []CostRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	return enc.Encode(rows)
}

var costsHeader = []string{"header", "depth", "direct_include_count", "transitive_deps", "preprocessed_size", "rss_bytes", "wall_seconds", "cpu_seconds", "error"}

// WriteCostsCSV writes rows in CSV.
func WriteCostsCSV(w io.Writer, rows []CostRow) error {
	cw := csv.NewWriter(w)
	err := cw.Write(costsHeader)
	if err != nil {
		return err
	}
	for _, r := range rows {
		err := cw.Write([]string{
			r.Header,
			strconv.Itoa(r.Depth),
			strconv.Itoa(r.DirectIncludeCount),
			strconv.Itoa(r.TransitiveDeps),
			strconv.FormatInt(r.PreprocessedSize, 10),
			strconv.FormatInt(r.RSSBytes, 10),
			strconv.FormatFloat(r.WallSeconds, 'f', 3, 64),
			strconv.FormatFloat(r.CPUSeconds, 'f', 3, 64),
			r.Error,
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

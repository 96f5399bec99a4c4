// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.chromium.org/infra/build/hdrcost/bench"
	"go.chromium.org/infra/build/hdrcost/includegraph"
	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/o11y/iometrics"
)

// Output is the result of an analysis to write.
type Output struct {
	Graph    *includegraph.Graph
	Stats    includegraph.BuildStats
	Prefixes []string
	Results  []bench.Result
	RunID    string
	Profiler string

	// Compress compresses the graph with zstd.
	Compress bool

	// CostDB, if set, records benchmark results.
	CostDB *CostDB
}

// Write writes output files in dir and returns written file names.
func Write(ctx context.Context, dir string, out Output) ([]string, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	metrics := iometrics.New("report")
	var files []string
	graphFile := filepath.Join(dir, GraphFile)
	if out.Compress {
		graphFile += zstdExt
	}
	err = SaveGraph(ctx, graphFile, out.Graph)
	if err != nil {
		return nil, fmt.Errorf("failed to save graph: %w", err)
	}
	files = append(files, graphFile)

	fr := out.Graph.Filter(out.Prefixes)
	for _, w := range fr.Warnings {
		clog.Warningf(ctx, "%s", w)
	}
	rows := CostRows(out.Graph, out.Results)
	host := bench.HostInfo()

	for _, f := range []struct {
		name  string
		write func(io.Writer) error
	}{
		{
			name: DOTFile,
			write: func(w io.Writer) error {
				return WriteDOT(w, out.Graph, DOTOptions{Prefixes: out.Prefixes})
			},
		},
		{
			name: CostsJSONFile,
			write: func(w io.Writer) error {
				return WriteCostsJSON(w, rows)
			},
		},
		{
			name: CostsCSVFile,
			write: func(w io.Writer) error {
				return WriteCostsCSV(w, rows)
			},
		},
		{
			name: SummaryFile,
			write: func(w io.Writer) error {
				return WriteSummary(w, Summary{
					RunID:    out.RunID,
					Host:     host,
					Profiler: out.Profiler,
					Graph:    out.Graph,
					Stats:    out.Stats,
					Rows:     rows,
					Warnings: fr.Warnings,
				})
			},
		},
	} {
		fname := filepath.Join(dir, f.name)
		err := writeFile(fname, metrics, f.write)
		if err != nil {
			return files, fmt.Errorf("failed to write %s: %w", fname, err)
		}
		files = append(files, fname)
	}

	if out.CostDB != nil && len(rows) > 0 {
		err := out.CostDB.Record(ctx, Run{
			ID:       out.RunID,
			Root:     out.Graph.Root(),
			Host:     host,
			Profiler: out.Profiler,
			Time:     time.Now(),
		}, rows)
		if err != nil {
			return files, err
		}
	}
	clog.Infof(ctx, "report io: %s", metrics.Stats())
	return files, nil
}

// countWriter counts bytes written to w.
type countWriter struct {
	w       io.Writer
	metrics *iometrics.IOMetrics
}

func (c countWriter) Write(buf []byte) (int, error) {
	n, err := c.w.Write(buf)
	c.metrics.WriteDone(n, err)
	return n, err
}

func writeFile(fname string, metrics *iometrics.IOMetrics, write func(io.Writer) error) error {
	f, err := os.Create(fname)
	metrics.OpsDone(err)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(countWriter{w: f, metrics: metrics})
	err = write(w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package analyze

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/infra/build/hdrcost/analysis"
	"go.chromium.org/infra/build/hdrcost/bench"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "hdrcost.toml")
	err := os.WriteFile(fname, []byte(`
root = "base/values.h"
output = "out/results"

[benchmark]
enabled = true
limit = 5
profiler = "time"
jobs = 4
timeout = "90s"
costdb = "history.db"
compress = true
`), 0644)
	if err != nil {
		t.Fatal(err)
	}

	c := &run{}
	c.init()
	err = c.Flags.Parse([]string{"-config", fname, "-jobs", "2", "-profiler", "prmon"})
	if err != nil {
		t.Fatal(err)
	}
	err = c.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig()=%v; want nil err", err)
	}

	type result struct {
		Root      string
		Output    string
		Benchmark analysis.BenchmarkFlag
		Profiler  string
		Jobs      int
		BenchTime time.Duration
		Compress  bool
		CostDB    string
	}
	got := result{
		Root:      c.common.Root,
		Output:    c.output,
		Benchmark: c.benchmark,
		Profiler:  c.profiler,
		Jobs:      c.jobs,
		BenchTime: c.benchTime,
		Compress:  c.compress,
		CostDB:    c.costdb,
	}
	want := result{
		Root:      filepath.Join(dir, "base/values.h"),
		Output:    filepath.Join(dir, "out/results"),
		Benchmark: analysis.BenchmarkFlag{Enabled: true, Limit: 5},
		// set on the command line.
		Profiler:  "prmon",
		Jobs:      2,
		BenchTime: 90 * time.Second,
		Compress:  true,
		CostDB:    filepath.Join(dir, "history.db"),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loadConfig() diff -want +got:\n%s", diff)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	c := &run{}
	c.init()
	err := c.Flags.Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	err = c.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig()=%v; want nil err", err)
	}
	if c.output != "results" || c.profiler != bench.DefaultProfiler || c.benchTime != 300*time.Second {
		t.Errorf("loadConfig() changed defaults: output=%q profiler=%q bench_timeout=%v", c.output, c.profiler, c.benchTime)
	}
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package analyze is analyze subcommand to build the include graph of
// a header and benchmark headers in it.
package analyze

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/hdrcost/analysis"
	"go.chromium.org/infra/build/hdrcost/bench"
	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/report"
	"go.chromium.org/infra/build/hdrcost/ui"
)

const usage = `analyze header dependency cost

 $ hdrcost analyze -root <header> -compile-commands <compile_commands.json> \
     [-prefix <dir>/]... [-benchmark[=N]] [-output results]

It builds the include graph of the root header from compiler trace
and #include scanning, and writes include_graph.json, include_graph.dot,
header_costs.json, header_costs.csv and summary.txt in the output dir.
With -benchmark, it compiles each header under -prefix alone and
measures its peak memory and time.
`

// Cmd returns the Command for the `analyze` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "analyze <args>...",
		ShortDesc: "analyze header dependency cost",
		LongDesc:  usage,
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.init()
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase

	common      analysis.Flags
	output      string
	benchmark   analysis.BenchmarkFlag
	profiler    string
	jobs        int
	benchTime   time.Duration
	compress    bool
	costdb      string
	keepWorkDir bool
}

func (c *run) init() {
	c.common.Register(&c.Flags)
	c.Flags.StringVar(&c.output, "output", "results", "output directory")
	c.Flags.Var(&c.benchmark, "benchmark", "benchmark headers. -benchmark=N benchmarks top N headers by depth and preprocessed size")
	c.Flags.StringVar(&c.profiler, "profiler", bench.DefaultProfiler, fmt.Sprintf("profiler to measure compile. one of %q", bench.Profilers))
	c.Flags.IntVar(&c.jobs, "jobs", 0, "number of concurrent compiles. 0 means by CPUs and memory")
	c.Flags.DurationVar(&c.benchTime, "bench_timeout", bench.DefaultTimeout, "timeout of each benchmark compile")
	c.Flags.BoolVar(&c.compress, "compress", false, "compress include_graph.json with zstd")
	c.Flags.StringVar(&c.costdb, "costdb", "", "sqlite database to record benchmark history")
	c.Flags.BoolVar(&c.keepWorkDir, "keep_workdir", false, "keep benchmark work dirs for debugging")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
			return 2
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func (c *run) loadConfig() error {
	cfg, err := c.common.LoadConfig(&c.Flags)
	if err != nil || cfg == nil {
		return err
	}
	set := analysis.SetFlags(&c.Flags)
	if !set["output"] && cfg.Output != "" {
		c.output = cfg.Output
	}
	b := cfg.Benchmark
	if !set["benchmark"] && b.Enabled {
		c.benchmark = analysis.BenchmarkFlag{Enabled: true, Limit: b.Limit}
	}
	if !set["profiler"] && b.Profiler != "" {
		c.profiler = b.Profiler
	}
	if !set["jobs"] && b.Jobs > 0 {
		c.jobs = b.Jobs
	}
	if !set["bench_timeout"] && b.Timeout != "" {
		c.benchTime = b.TimeoutDuration()
	}
	if !set["compress"] && b.Compress {
		c.compress = true
	}
	if !set["costdb"] && b.CostDB != "" {
		c.costdb = b.CostDB
	}
	return nil
}

func (c *run) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer signals.HandleInterrupt(cancel)()

	err := c.loadConfig()
	if err != nil {
		return err
	}
	if c.common.Root == "" && c.common.Graph == "" {
		return fmt.Errorf("no -root: %w", flag.ErrHelp)
	}
	profiler, err := bench.NewProfiler(c.profiler)
	if err != nil {
		return fmt.Errorf("%w: %w", err, flag.ErrHelp)
	}
	wrapper, err := c.common.WrapperArgs()
	if err != nil {
		return fmt.Errorf("%w: %w", err, flag.ErrHelp)
	}
	var db *report.CostDB
	if c.costdb != "" {
		db, err = report.OpenCostDB(ctx, c.costdb)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	spin := ui.Default.NewSpinner()
	what := "building include graph of " + c.common.Root
	if c.common.Graph != "" {
		what = "loading " + c.common.Graph
	}
	spin.Start("%s", what)
	a, err := c.common.Analyze(ctx)
	if err != nil {
		spin.Stop(err)
		return err
	}
	spin.Done("%d headers %d edges", a.Graph.Len(), a.Graph.NumEdges())

	out := report.Output{
		Graph:    a.Graph,
		Stats:    a.Stats,
		Prefixes: a.Prefixes,
		Compress: c.compress,
		CostDB:   db,
	}
	if c.benchmark.Enabled {
		if a.Flags == nil {
			return fmt.Errorf("no compile flags for %s to benchmark", a.Root)
		}
		b := bench.New(bench.Options{
			Compiler:    a.Flags.Compiler,
			Flags:       a.Flags.Args,
			Wrapper:     wrapper,
			Profiler:    profiler,
			Jobs:        c.jobs,
			Timeout:     c.benchTime,
			KeepWorkDir: c.keepWorkDir,
			Progress: func(done, total int, r bench.Result) {
				if r.Err != nil {
					ui.Progress(done, total, "%s %s", ui.SGR(ui.Red, "failed"), r.Header)
					return
				}
				ui.Progress(done, total, "%s %s", report.FormatBytes(r.Cost.RSSBytes), r.Header)
			},
		})
		out.RunID = b.RunID()
		out.Profiler = profiler.Name()
		results, err := b.RunGraph(ctx, a.Graph, bench.PlanOptions{
			Limit:       c.benchmark.Limit,
			Prefixes:    a.Prefixes,
			IncludeRoot: true,
		})
		if err != nil {
			return err
		}
		ui.Default.PrintLines("\n", "")
		out.Results = results
		if db != nil {
			printRegressions(ctx, db, out.RunID, results)
		}
	}

	files, err := report.Write(ctx, c.output, out)
	if err != nil {
		return err
	}
	fmt.Printf("wrote:\n  %s\n", strings.Join(files, "\n  "))
	return nil
}

// printRegressions prints headers whose peak RSS grew by 10% or more
// since the previous run.
func printRegressions(ctx context.Context, db *report.CostDB, runID string, results []bench.Result) {
	var headers []string
	for _, r := range results {
		if r.Err == nil {
			headers = append(headers, r.Header)
		}
	}
	prev, err := db.Previous(ctx, runID, headers)
	if err != nil {
		clog.Warningf(ctx, "failed to read cost history: %v", err)
		return
	}
	for _, r := range results {
		p, ok := prev[r.Header]
		if !ok || r.Err != nil || p.RSSBytes == 0 {
			continue
		}
		if r.Cost.RSSBytes*10 >= p.RSSBytes*11 {
			fmt.Printf("%s %s: %s -> %s (since %s)\n", ui.SGR(ui.Yellow, "regressed"), r.Header, report.FormatBytes(p.RSSBytes), report.FormatBytes(r.Cost.RSSBytes), p.Time.Format(time.RFC3339))
		}
	}
}

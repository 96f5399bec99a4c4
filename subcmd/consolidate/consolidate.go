// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package consolidate is consolidate subcommand to find project headers
// exposing external headers.
package consolidate

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/hdrcost/analysis"
	"go.chromium.org/infra/build/hdrcost/bench"
	"go.chromium.org/infra/build/hdrcost/consolidate"
	"go.chromium.org/infra/build/hdrcost/includegraph"
	"go.chromium.org/infra/build/hdrcost/report"
	"go.chromium.org/infra/build/hdrcost/ui"
)

const usage = `find project headers exposing external headers

 $ hdrcost consolidate -root <header> -prefix <project dir>/ -pattern <substr>

Headers whose path contains <substr> are external (e.g. "third_party/boost").
It lists project headers that include external headers directly or
transitively, with the number of other project headers that reach
external headers only through them, and writes an umbrella header
including every directly included external header.
`

// Cmd returns the Command for the `consolidate` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "consolidate <args>...",
		ShortDesc: "find project headers exposing external headers",
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

	common    analysis.Flags
	pattern   string
	output    string
	umbrella  string
	savings   bool
	benchmark bool
	profiler  string
	top       int
	headers   analysis.StringsFlag
}

func (c *run) init() {
	c.common.Register(&c.Flags)
	c.Flags.StringVar(&c.pattern, "pattern", "", "substring of external header paths (required)")
	c.Flags.StringVar(&c.output, "output", "", "write report in JSON to the file")
	c.Flags.StringVar(&c.umbrella, "umbrella", "", "write umbrella header of external headers to the file")
	c.Flags.BoolVar(&c.savings, "savings", false, "estimate savings from benchmark costs in -graph")
	c.Flags.BoolVar(&c.benchmark, "benchmark", false, "benchmark the umbrella header")
	c.Flags.StringVar(&c.profiler, "profiler", bench.DefaultProfiler, fmt.Sprintf("profiler to measure compile. one of %q", bench.Profilers))
	c.Flags.IntVar(&c.top, "n", 20, "number of exposing headers to print. <= 0 prints all")
	c.Flags.Var(&c.headers, "header", "substring of a header to analyze. can be specified multiple times. default is all exposing headers")
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

func (c *run) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer signals.HandleInterrupt(cancel)()

	_, err := c.common.LoadConfig(&c.Flags)
	if err != nil {
		return err
	}
	switch {
	case c.pattern == "":
		return fmt.Errorf("no -pattern: %w", flag.ErrHelp)
	case len(c.common.Prefixes) == 0:
		return fmt.Errorf("no -prefix: %w", flag.ErrHelp)
	case c.common.Root == "" && c.common.Graph == "":
		return fmt.Errorf("no -root: %w", flag.ErrHelp)
	}
	a, err := c.common.Analyze(ctx)
	if err != nil {
		return err
	}
	var headers []string
	for _, h := range c.headers {
		m, err := a.Graph.Match(h)
		if err != nil {
			return fmt.Errorf("-header: %w", err)
		}
		headers = append(headers, m)
	}
	rep, err := consolidate.Analyze(ctx, a.Graph, consolidate.Options{
		Prefixes: a.Prefixes,
		Pattern:  c.pattern,
		Savings:  c.savings,
		Headers:  headers,
	})
	var nomatch *includegraph.NoMatchError
	switch {
	case errors.Is(err, consolidate.ErrNoPrefix):
		return fmt.Errorf("%w: %w", err, flag.ErrHelp)
	case errors.As(err, &nomatch):
		return fmt.Errorf("no header in the include graph of %s matches -pattern=%q", a.Root, nomatch.Substr)
	case err != nil:
		return err
	}
	printReport(os.Stdout, rep, c.top)

	if c.output != "" {
		buf, err := json.MarshalIndent(rep, "", " ")
		if err != nil {
			return err
		}
		err = os.WriteFile(c.output, append(buf, '\n'), 0644)
		if err != nil {
			return err
		}
	}
	if c.umbrella == "" && !c.benchmark {
		return nil
	}
	umbrella := c.umbrella
	if umbrella == "" {
		dir, err := os.MkdirTemp("", "hdrcost-umbrella")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		umbrella = filepath.Join(dir, "umbrella.h")
	}
	err = os.WriteFile(umbrella, []byte(consolidate.SyntheticHeader(rep.External)), 0644)
	if err != nil {
		return err
	}
	if !c.benchmark {
		return nil
	}
	return c.benchmarkUmbrella(ctx, a, umbrella)
}

func (c *run) benchmarkUmbrella(ctx context.Context, a *analysis.Analysis, umbrella string) error {
	if a.Flags == nil {
		return fmt.Errorf("no compile flags for %s to benchmark", a.Root)
	}
	profiler, err := bench.NewProfiler(c.profiler)
	if err != nil {
		return fmt.Errorf("%w: %w", err, flag.ErrHelp)
	}
	wrapper, err := c.common.WrapperArgs()
	if err != nil {
		return err
	}
	b := bench.New(bench.Options{
		Compiler: a.Flags.Compiler,
		Flags:    a.Flags.Args,
		Wrapper:  wrapper,
		Profiler: profiler,
	})
	spin := ui.Default.NewSpinner()
	spin.Start("benchmark %s", umbrella)
	results, err := b.Run(ctx, []string{umbrella})
	if err != nil {
		spin.Stop(err)
		return err
	}
	r := results[0]
	if r.Err != nil {
		spin.Stop(r.Err)
		return r.Err
	}
	spin.Done("rss=%s wall=%.2fs cpu=%.2fs", report.FormatBytes(r.Cost.RSSBytes), r.Cost.WallSeconds, r.Cost.CPUSeconds)
	return nil
}

func printReport(w io.Writer, rep *consolidate.Report, top int) {
	fmt.Fprintf(w, "pattern %q: %d headers, %d project headers\n", rep.Pattern, rep.PatternHeaders, rep.ProjectHeaders)
	results := rep.Results
	if top > 0 && len(results) > top {
		results = results[:top]
	}
	fmt.Fprintf(w, "\n%d headers expose %q:\n", len(rep.Results), rep.Pattern)
	for _, r := range results {
		kind := "transitive"
		if r.Direct {
			kind = "direct"
		}
		fmt.Fprintf(w, "  %4d %-10s %s", r.AffectedCount, kind, r.Header)
		if r.Savings != nil {
			fmt.Fprintf(w, " (orphans %d, saves %s)", r.Savings.Orphaned, report.FormatBytes(r.Savings.RSSBytes))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%d external headers included directly:\n", len(rep.External))
	for _, e := range rep.External {
		fmt.Fprintf(w, "  %4d %s\n", len(e.Includers), e.Header)
	}
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package trace is trace subcommand to show why a header is included.
package trace

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"
	"go.chromium.org/luci/common/system/signals"

	"go.chromium.org/infra/build/hdrcost/analysis"
	"go.chromium.org/infra/build/hdrcost/includegraph"
)

const usage = `show shortest include paths between headers

 $ hdrcost trace -root <header> -to <substr> [-from <substr>]

Headers are matched by substring of their path, and must match
exactly one header in the include graph. -from defaults to the root.
`

// Cmd returns the Command for the `trace` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "trace <args>...",
		ShortDesc: "show shortest include paths between headers",
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

	common analysis.Flags
	from   string
	to     string
	limit  int
}

func (c *run) init() {
	c.common.Register(&c.Flags)
	c.Flags.StringVar(&c.from, "from", "", "substring of the including header. default is root")
	c.Flags.StringVar(&c.to, "to", "", "substring of the included header (required)")
	c.Flags.IntVar(&c.limit, "n", 10, "max number of paths to print. <= 0 prints all")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx)
	if err != nil {
		var ambiguous *includegraph.AmbiguousMatchError
		switch {
		case errors.Is(err, flag.ErrHelp):
			fmt.Fprintf(os.Stderr, "%v\n%s\n", err, usage)
			return 2
		case errors.As(err, &ambiguous):
			fmt.Fprintf(os.Stderr, "Error: %v\nuse longer substring to match exactly one header.\n", err)
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
	case c.to == "":
		return fmt.Errorf("no -to: %w", flag.ErrHelp)
	case c.common.Root == "" && c.common.Graph == "":
		return fmt.Errorf("no -root: %w", flag.ErrHelp)
	}
	a, err := c.common.Analyze(ctx)
	if err != nil {
		return err
	}
	res, err := query(a.Graph, c.from, c.to, c.limit)
	if err != nil {
		return err
	}
	printPaths(os.Stdout, res, a.Prefixes)
	return nil
}

// query finds shortest paths between headers matching from and to.
// Empty from means the root.
func query(g *includegraph.Graph, from, to string, limit int) (includegraph.PathResult, error) {
	src := g.Root()
	if from != "" {
		m, err := g.Match(from)
		if err != nil {
			return includegraph.PathResult{}, fmt.Errorf("-from: %w", err)
		}
		src = m
	}
	dst, err := g.Match(to)
	if err != nil {
		return includegraph.PathResult{}, fmt.Errorf("-to: %w", err)
	}
	return g.FindShortestPaths(src, dst, limit)
}

// shorten trims the first matching project prefix from p.
func shorten(p string, prefixes []string) string {
	for _, prefix := range prefixes {
		if rel, ok := strings.CutPrefix(p, prefix); ok && rel != "" {
			return strings.TrimLeft(rel, "/")
		}
	}
	return p
}

// printPaths prints res. Paths in include chains are shortened by
// prefixes.
func printPaths(w io.Writer, res includegraph.PathResult, prefixes []string) {
	if !res.Reachable {
		fmt.Fprintf(w, "no path from %s to %s\n", res.From, res.To)
		return
	}
	fmt.Fprintf(w, "%d shortest paths of length %d from %s to %s\n", res.Total, res.Length, res.From, res.To)
	for i, p := range res.Paths {
		fmt.Fprintf(w, "\n#%d\n", i+1)
		for j, n := range p {
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", j), shorten(n, prefixes))
		}
	}
	if len(res.Paths) < res.Total {
		fmt.Fprintf(w, "\n... and %d more\n", res.Total-len(res.Paths))
	}
}

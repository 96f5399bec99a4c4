// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scandeps is scandeps subcommand for debugging include resolution.
package scandeps

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/maruel/subcommands"

	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/hdrcost/analysis"
	"go.chromium.org/infra/build/hdrcost/scandeps"
)

const usage = `run scandeps

 $ hdrcost scandeps -root <header> [<header>...]

It resolves #include directives of the headers with the search dirs
of the root header's compile command, as the graph builder does for
edges not in the compiler's trace, and prints each directive with the
resolved path.
`

// Cmd returns the Command for the `scandeps` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "scandeps <args>...",
		ShortDesc: "run scandeps",
		LongDesc:  usage,
		Advanced:  true,
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
	dirs   bool
}

func (c *run) init() {
	c.common.Register(&c.Flags)
	c.Flags.BoolVar(&c.dirs, "dirs", false, "print include search dirs")
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	ctx := cli.GetContext(a, c, env)
	err := c.run(ctx, args)
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

func (c *run) run(ctx context.Context, args []string) error {
	_, err := c.common.LoadConfig(&c.Flags)
	if err != nil {
		return err
	}
	if c.common.Root == "" {
		return fmt.Errorf("no -root: %w", flag.ErrHelp)
	}
	opts, err := c.common.Options()
	if err != nil {
		return err
	}
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	root := scandeps.Canonical(wd, opts.Root)
	flags, err := analysis.CompileFlags(opts, root)
	if err != nil {
		return err
	}
	resolver, err := analysis.NewResolver(ctx, opts, flags)
	if err != nil {
		return err
	}
	if c.dirs {
		fmt.Println("#include \"...\" search starts here:")
		for _, d := range resolver.Dirs(scandeps.FormQuote) {
			fmt.Printf(" %s\n", d)
		}
	}
	headers := []string{root}
	for _, arg := range args {
		headers = append(headers, scandeps.Canonical(wd, arg))
	}
	for _, h := range headers {
		err := scanFile(ctx, os.Stdout, resolver, h)
		if err != nil {
			return err
		}
	}
	return nil
}

// scanFile prints include directives in fname and their resolved paths.
func scanFile(ctx context.Context, w io.Writer, resolver *scandeps.Resolver, fname string) error {
	buf, err := os.ReadFile(fname)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s:\n", fname)
	for _, d := range scandeps.CPPScan(ctx, fname, buf) {
		directive := "#include"
		if d.Next {
			directive = "#include_next"
		}
		p, ok := resolver.Resolve(ctx, d, fname)
		if !ok {
			p = "unresolved"
		}
		fmt.Fprintf(w, "%5d: %s %s -> %s\n", d.Line, directive, d, p)
	}
	return nil
}

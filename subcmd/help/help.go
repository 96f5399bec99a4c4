// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package help provides help subcommand.
package help

import (
	"flag"
	"fmt"

	"github.com/maruel/subcommands"
)

const examples = `
Examples:
 $ hdrcost analyze -root base/values.h -compile-commands out/Default/compile_commands.json -prefix base/ -benchmark=20
 $ hdrcost trace -graph results/include_graph.json -to flat_hash_map.h
 $ hdrcost consolidate -graph results/include_graph.json -prefix base/ -pattern third_party/abseil-cpp/
`

// Cmd returns the Command for the `help` subcommand provided by this package.
func Cmd() *subcommands.Command {
	return &subcommands.Command{
		UsageLine: "help [<command>|-advanced]",
		ShortDesc: "prints help about a command",
		LongDesc:  "Prints commands, global flags and examples, or help about a specific command.\nUse -advanced to display debugging commands too.",
		CommandRun: func() subcommands.CommandRun {
			c := &run{}
			c.Flags.BoolVar(&c.advanced, "advanced", false, "show advanced commands")
			return c
		},
	}
}

type run struct {
	subcommands.CommandRunBase
	advanced bool
}

func (c *run) Run(a subcommands.Application, args []string, env subcommands.Env) int {
	if len(args) > 0 {
		return subcommands.CmdHelp.CommandRun().Run(a, args, env)
	}
	w := a.GetOut()
	subcommands.Usage(w, a, c.advanced)
	fmt.Fprintln(w, "Global flags, given before the command:")
	flag.CommandLine.SetOutput(w)
	flag.PrintDefaults()
	fmt.Fprint(w, examples)
	return 0
}

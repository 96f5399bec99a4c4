// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// hdrcost analyzes include graph of C++ headers and measures
// compile cost of each header.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/maruel/subcommands"
	"go.chromium.org/luci/common/cli"

	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/subcmd/analyze"
	"go.chromium.org/infra/build/hdrcost/subcmd/consolidate"
	"go.chromium.org/infra/build/hdrcost/subcmd/help"
	"go.chromium.org/infra/build/hdrcost/subcmd/scandeps"
	"go.chromium.org/infra/build/hdrcost/subcmd/trace"
	"go.chromium.org/infra/build/hdrcost/subcmd/version"
	"go.chromium.org/infra/build/hdrcost/ui"
)

const hdrcostVersion = "hdrcost v0.1.0"

type globalFlags struct {
	logLevel  string
	verbosity int
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.logLevel, "log_level", "warn", "log level. one of debug, info, warn, error")
	fs.IntVar(&g.verbosity, "v", 0, "verbose log level")
}

// logger returns a logger writing to stderr at the log level.
func (g *globalFlags) logger() (*log.Logger, error) {
	level, err := log.ParseLevel(g.logLevel)
	if err != nil {
		return nil, fmt.Errorf("bad -log_level=%q: %w", g.logLevel, err)
	}
	if g.verbosity > 0 && level > log.DebugLevel {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
	}), nil
}

func getApplication(logger *log.Logger) *cli.Application {
	return &cli.Application{
		Name:  "hdrcost",
		Title: "C++ header dependency cost analyzer",
		Context: func(ctx context.Context) context.Context {
			return clog.NewContext(ctx, logger)
		},
		Commands: []*subcommands.Command{
			analyze.Cmd(),
			consolidate.Cmd(),
			trace.Cmd(),
			scandeps.Cmd(),

			help.Cmd(),
			version.Cmd(hdrcostVersion),
		},
	}
}

func main() {
	var g globalFlags
	g.register(flag.CommandLine)
	flag.Parse()
	os.Exit(hdrcostMain(g, flag.Args()))
}

func hdrcostMain(g globalFlags, args []string) int {
	ui.Init()
	defer ui.Restore()

	logger, err := g.logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	log.SetDefault(logger)
	clog.SetVerbosity(g.verbosity)

	// Print a stack trace when a panic occurs.
	defer func() {
		if r := recover(); r != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			logger.Fatalf("panic: %v\n%s", r, buf)
		}
	}()

	if buildinfo, ok := debug.ReadBuildInfo(); ok {
		logger.Debugf("main module: %s %s", moduleInfo(&buildinfo.Main), vcsInfo(buildinfo))
		if clog.V(1) {
			for _, m := range buildinfo.Deps {
				logger.Debugf("deps module: %s", moduleInfo(m))
			}
		}
	}
	return subcommands.Run(getApplication(logger), args)
}

func moduleInfo(m *debug.Module) string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("path:%s version:%s sum:%s replace:%s", m.Path, m.Version, m.Sum, moduleInfo(m.Replace))
}

func vcsInfo(buildinfo *debug.BuildInfo) string {
	m := make(map[string]string)
	for _, bs := range buildinfo.Settings {
		if strings.HasPrefix(bs.Key, "vcs.") {
			m[bs.Key] = bs.Value
		}
	}
	return fmt.Sprintf("vcs[revision=%s time=%s modified=%s]", m["vcs.revision"], m["vcs.time"], m["vcs.modified"])
}

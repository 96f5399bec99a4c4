// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package analysis

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.chromium.org/infra/build/hdrcost/config"
	"go.chromium.org/infra/build/hdrcost/toolsupport/shutil"
)

// DefaultTimeout is default timeout of compiler runs in analysis.
const DefaultTimeout = 5 * time.Minute

// Flags are common flags of subcommands.
type Flags struct {
	Root            string
	CompileCommands string
	Prefixes        StringsFlag
	Wrapper         string
	Config          string
	Compiler        string
	Timeout         time.Duration

	// Graph is include_graph.json saved by analyze, used instead of
	// tracing the root.
	Graph string
}

// Register registers flags in fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Root, "root", "", "root header to analyze")
	fs.StringVar(&f.CompileCommands, "compile-commands", "compile_commands.json", "compilation database to get compile flags")
	fs.Var(&f.Prefixes, "prefix", "path prefix of project headers. can be specified multiple times")
	fs.StringVar(&f.Wrapper, "wrapper", "", "command prepended to compiler commands, e.g. environment setup")
	fs.StringVar(&f.Config, "config", "", "config file (.yaml, .yml or .toml) for default flag values")
	fs.StringVar(&f.Compiler, "compiler", "", "compiler to use instead of the one in compilation database")
	fs.DurationVar(&f.Timeout, "timeout", DefaultTimeout, "timeout of compiler trace run")
	fs.StringVar(&f.Graph, "graph", "", "include_graph.json (or .json.zst) saved by analyze, to use instead of tracing -root")
}

// LoadConfig loads config file given by -config, and applies its
// values to flags not set on the command line.
// It returns nil config if -config is not given.
func (f *Flags) LoadConfig(fs *flag.FlagSet) (*config.Config, error) {
	if f.Config == "" {
		return nil, nil
	}
	cfg, err := config.Load(f.Config)
	if err != nil {
		return nil, err
	}
	set := SetFlags(fs)
	apply := func(name string, dst *string, v string) {
		if !set[name] && v != "" {
			*dst = v
		}
	}
	apply("root", &f.Root, cfg.Root)
	apply("compile-commands", &f.CompileCommands, cfg.CompileCommands)
	apply("wrapper", &f.Wrapper, cfg.Wrapper)
	apply("compiler", &f.Compiler, cfg.Compiler)
	if !set["prefix"] && len(cfg.Prefixes) > 0 {
		f.Prefixes = append(StringsFlag(nil), cfg.Prefixes...)
	}
	if !set["timeout"] && cfg.Timeout != "" {
		f.Timeout = cfg.TimeoutDuration()
	}
	return cfg, nil
}

// WrapperArgs returns -wrapper split into args.
func (f *Flags) WrapperArgs() ([]string, error) {
	if strings.TrimSpace(f.Wrapper) == "" {
		return nil, nil
	}
	args, err := shutil.Split(f.Wrapper)
	if err != nil {
		return nil, fmt.Errorf("bad -wrapper %q: %w", f.Wrapper, err)
	}
	return args, nil
}

// SetFlags returns names of flags set on the command line.
func SetFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// StringsFlag is a flag.Value of repeatable string flag.
type StringsFlag []string

// String returns the flag values joined by comma.
func (f *StringsFlag) String() string {
	return strings.Join(*f, ",")
}

// Set appends v.
func (f *StringsFlag) Set(v string) error {
	if v == "" {
		return fmt.Errorf("empty value")
	}
	*f = append(*f, v)
	return nil
}

// BenchmarkFlag is a flag.Value of `-benchmark` or `-benchmark=N`.
// `-benchmark` benchmarks all candidates, `-benchmark=N` top N of them.
type BenchmarkFlag struct {
	Enabled bool
	Limit   int
}

// String returns the flag value.
func (f *BenchmarkFlag) String() string {
	switch {
	case f == nil || !f.Enabled:
		return "false"
	case f.Limit > 0:
		return strconv.Itoa(f.Limit)
	}
	return "true"
}

// Set sets "true", "false" or a positive number of headers.
func (f *BenchmarkFlag) Set(v string) error {
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return fmt.Errorf("want positive number of headers: %q", v)
		}
		f.Enabled = true
		f.Limit = n
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("want true, false or positive number: %q", v)
	}
	f.Enabled = b
	f.Limit = 0
	return nil
}

// IsBoolFlag allows `-benchmark` without value.
func (f *BenchmarkFlag) IsBoolFlag() bool { return true }

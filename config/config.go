// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config loads hdrcost config file.
//
// A config file provides default values of command line flags.
// It is YAML (.yaml, .yml) or TOML (.toml), e.g.
//
//	root = "/src/base/values.h"
//	compile_commands = "/src/out/Default/compile_commands.json"
//	prefix = ["/src/base/"]
//
//	[benchmark]
//	enabled = true
//	limit = 20
//	profiler = "time"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for a config file with unknown extension.
var ErrUnknownFormat = errors.New("unknown config format")

// Config is a config of hdrcost.
type Config struct {
	Root            string   `yaml:"root" toml:"root"`
	CompileCommands string   `yaml:"compile_commands" toml:"compile_commands"`
	Compiler        string   `yaml:"compiler" toml:"compiler"`
	Wrapper         string   `yaml:"wrapper" toml:"wrapper"`
	Prefixes        []string `yaml:"prefix" toml:"prefix" validate:"dive,required"`
	Output          string   `yaml:"output" toml:"output"`
	Timeout         string   `yaml:"timeout" toml:"timeout" validate:"omitempty,duration"`

	Benchmark Benchmark `yaml:"benchmark" toml:"benchmark"`
}

// Benchmark is a config of benchmark.
type Benchmark struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Limit    int    `yaml:"limit" toml:"limit" validate:"gte=0"`
	Profiler string `yaml:"profiler" toml:"profiler" validate:"omitempty,oneof=time prmon rusage"`
	Jobs     int    `yaml:"jobs" toml:"jobs" validate:"gte=0"`
	Timeout  string `yaml:"timeout" toml:"timeout" validate:"omitempty,duration"`
	CostDB   string `yaml:"costdb" toml:"costdb"`
	Compress bool   `yaml:"compress" toml:"compress"`
}

// Load loads config from fname. Relative paths in the config are
// resolved against the directory of fname.
func Load(fname string) (*Config, error) {
	buf, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(filepath.Ext(fname), buf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	cfg.resolve(filepath.Dir(fname))
	return cfg, nil
}

// Parse parses buf in the format of ext, and validates it.
func Parse(ext string, buf []byte) (*Config, error) {
	cfg := &Config{}
	var err error
	switch ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(buf))
		dec.KnownFields(true)
		err = dec.Decode(cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(buf))
		dec.DisallowUnknownFields()
		err = dec.Decode(cfg)
	default:
		return nil, fmt.Errorf("%w %q: want .yaml, .yml or .toml", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the config.
func (c *Config) Validate() error {
	v := validator.New()
	err := v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := time.ParseDuration(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return err
	}
	err = v.Struct(c)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Root = abs(c.Root)
	c.CompileCommands = abs(c.CompileCommands)
	c.Output = abs(c.Output)
	c.Benchmark.CostDB = abs(c.Benchmark.CostDB)
	for i, p := range c.Prefixes {
		// keep trailing separator, which limits the prefix to a dir.
		trailing := strings.HasSuffix(p, string(filepath.Separator))
		c.Prefixes[i] = abs(p)
		if trailing && !strings.HasSuffix(c.Prefixes[i], string(filepath.Separator)) {
			c.Prefixes[i] += string(filepath.Separator)
		}
	}
}

// TimeoutDuration returns Timeout as duration, or 0 if unset.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// TimeoutDuration returns Timeout as duration, or 0 if unset.
func (b Benchmark) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(b.Timeout)
	return d
}

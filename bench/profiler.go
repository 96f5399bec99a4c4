// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bench

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.chromium.org/infra/build/hdrcost/execute"
)

// ErrNoMetrics is returned when a profiler reported no measurement.
var ErrNoMetrics = errors.New("no metrics from profiler")

// Measurement is resource usage measured by a profiler.
type Measurement struct {
	RSSBytes    int64
	WallSeconds float64
	CPUSeconds  float64
}

// Profiler measures resource usage of a command.
type Profiler interface {
	// Name returns the name of the profiler.
	Name() string

	// Wrap returns args to run args under the profiler.
	// dir is a work dir the profiler may write its report in.
	Wrap(args []string, dir string) []string

	// Parse returns measurement of the finished cmd.
	Parse(cmd *execute.Cmd, dir string) (Measurement, error)
}

// Profilers are the names of known profilers.
var Profilers = []string{"time", "prmon", "rusage"}

// DefaultProfiler is the profiler used unless specified. It needs no
// external tool installed on the host.
const DefaultProfiler = "rusage"

// NewProfiler returns a profiler by name.
func NewProfiler(name string) (Profiler, error) {
	switch name {
	case "time":
		return TimeProfiler{}, nil
	case "prmon":
		return PrmonProfiler{}, nil
	case "rusage":
		return RusageProfiler{}, nil
	}
	return nil, fmt.Errorf("unknown profiler %q; want one of %q", name, Profilers)
}

// TimeProfiler uses GNU time -v.
type TimeProfiler struct {
	// Path is path of GNU time. default is /usr/bin/time.
	Path string
}

// Name returns "time".
func (TimeProfiler) Name() string { return "time" }

// Wrap wraps args with time -v.
func (p TimeProfiler) Wrap(args []string, dir string) []string {
	path := p.Path
	if path == "" {
		path = "/usr/bin/time"
	}
	return append([]string{path, "-v"}, args...)
}

// Parse parses time -v report in stderr.
func (TimeProfiler) Parse(cmd *execute.Cmd, dir string) (Measurement, error) {
	return ParseTimeV(cmd.Stderr())
}

// ParseTimeV parses GNU time -v output.
//
//	User time (seconds): 1.23
//	System time (seconds): 0.45
//	Elapsed (wall clock) time (h:mm:ss or m:ss): 0:01.68
//	Maximum resident set size (kbytes): 123456
func ParseTimeV(buf []byte) (Measurement, error) {
	var m Measurement
	var user, sys float64
	s := bufio.NewScanner(bytes.NewReader(buf))
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		i := strings.LastIndex(line, ": ")
		if i < 0 {
			continue
		}
		key, value := line[:i], strings.TrimSpace(line[i+2:])
		var err error
		switch {
		case strings.HasPrefix(key, "Maximum resident set size"):
			var kb int64
			kb, err = strconv.ParseInt(value, 10, 64)
			m.RSSBytes = kb * 1024
		case strings.HasPrefix(key, "User time"):
			user, err = strconv.ParseFloat(value, 64)
		case strings.HasPrefix(key, "System time"):
			sys, err = strconv.ParseFloat(value, 64)
		case strings.HasPrefix(key, "Elapsed (wall clock) time"):
			m.WallSeconds, err = parseElapsed(value)
		}
		if err != nil {
			return m, fmt.Errorf("failed to parse %q: %w", line, err)
		}
	}
	m.CPUSeconds = user + sys
	if m.RSSBytes == 0 {
		return m, ErrNoMetrics
	}
	return m, nil
}

// parseElapsed parses "h:mm:ss" or "m:ss.ff".
func parseElapsed(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("unexpected elapsed time %q", s)
	}
	var total float64
	for _, p := range parts[:len(parts)-1] {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		total = total*60 + float64(v)
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil {
		return 0, err
	}
	return total*60 + sec, nil
}

// PrmonProfiler uses prmon.
// https://github.com/HSF/prmon
type PrmonProfiler struct {
	// Path is path of prmon. default is "prmon" in PATH.
	Path string
}

const prmonSummary = "prmon.json"

// Name returns "prmon".
func (PrmonProfiler) Name() string { return "prmon" }

// Wrap wraps args with prmon, writing json summary in dir.
func (p PrmonProfiler) Wrap(args []string, dir string) []string {
	path := p.Path
	if path == "" {
		path = "prmon"
	}
	return append([]string{path, "--interval", "0.1", "--json-summary", filepath.Join(dir, prmonSummary), "--"}, args...)
}

// Parse parses prmon json summary in dir.
func (PrmonProfiler) Parse(cmd *execute.Cmd, dir string) (Measurement, error) {
	buf, err := os.ReadFile(filepath.Join(dir, prmonSummary))
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: %w", ErrNoMetrics, err)
	}
	return ParsePrmonSummary(buf)
}

// ParsePrmonSummary parses prmon json summary.
// rss is in kB, times are in seconds.
func ParsePrmonSummary(buf []byte) (Measurement, error) {
	var summary struct {
		Max struct {
			RSS   int64   `json:"rss"`
			WTime float64 `json:"wtime"`
			UTime float64 `json:"utime"`
			STime float64 `json:"stime"`
		} `json:"Max"`
	}
	err := json.Unmarshal(buf, &summary)
	if err != nil {
		return Measurement{}, fmt.Errorf("failed to parse prmon summary: %w", err)
	}
	m := Measurement{
		RSSBytes:    summary.Max.RSS * 1024,
		WallSeconds: summary.Max.WTime,
		CPUSeconds:  summary.Max.UTime + summary.Max.STime,
	}
	if m.RSSBytes == 0 {
		return m, ErrNoMetrics
	}
	return m, nil
}

// RusageProfiler uses rusage of the child process. It needs no
// external tool, but the peak RSS is the largest of the compiler
// driver and its waited children.
type RusageProfiler struct{}

// Name returns "rusage".
func (RusageProfiler) Name() string { return "rusage" }

// Wrap returns args as is.
func (RusageProfiler) Wrap(args []string, dir string) []string { return args }

// Parse returns rusage of cmd.
func (RusageProfiler) Parse(cmd *execute.Cmd, dir string) (Measurement, error) {
	res := cmd.Result()
	if res.Rusage == nil || res.Rusage.MaxRSS == 0 {
		return Measurement{}, ErrNoMetrics
	}
	return Measurement{
		RSSBytes:    res.Rusage.MaxRSS,
		WallSeconds: res.Finished.Sub(res.Started).Seconds(),
		CPUSeconds:  (res.Rusage.Utime + res.Rusage.Stime).Seconds(),
	}, nil
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad(t *testing.T) {
	want := &Config{
		Root:            "/src/base/values.h",
		CompileCommands: "/src/out/Default/compile_commands.json",
		Wrapper:         "ccache",
		Prefixes:        []string{"/src/base/", "TESTDIR/third_party/"},
		Output:          "TESTDIR/results",
		Timeout:         "30s",
		Benchmark: Benchmark{
			Enabled:  true,
			Limit:    20,
			Profiler: "time",
			Jobs:     4,
			CostDB:   "/var/hdrcost/costs.sqlite",
		},
	}
	for _, tc := range []struct {
		name    string
		content string
	}{
		{
			name: "config.toml",
			content: `root = "/src/base/values.h"
compile_commands = "/src/out/Default/compile_commands.json"
wrapper = "ccache"
prefix = ["/src/base/", "third_party/"]
output = "results"
timeout = "30s"

[benchmark]
enabled = true
limit = 20
profiler = "time"
jobs = 4
costdb = "/var/hdrcost/costs.sqlite"
`,
		},
		{
			name: "config.yaml",
			content: `root: /src/base/values.h
compile_commands: /src/out/Default/compile_commands.json
wrapper: ccache
prefix:
  - /src/base/
  - third_party/
output: results
timeout: 30s
benchmark:
  enabled: true
  limit: 20
  profiler: time
  jobs: 4
  costdb: /var/hdrcost/costs.sqlite
`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			fname := filepath.Join(dir, tc.name)
			err := os.WriteFile(fname, []byte(tc.content), 0644)
			if err != nil {
				t.Fatal(err)
			}
			got, err := Load(fname)
			if err != nil {
				t.Fatalf("Load(%q)=_, %v; want nil", fname, err)
			}
			w := *want
			w.Prefixes = []string{"/src/base/", filepath.Join(dir, "third_party") + "/"}
			w.Output = filepath.Join(dir, "results")
			if diff := cmp.Diff(&w, got); diff != "" {
				t.Errorf("Load(%q) diff -want +got:\n%s", fname, diff)
			}
			if got.TimeoutDuration() != 30*time.Second {
				t.Errorf("TimeoutDuration()=%v; want 30s", got.TimeoutDuration())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		name    string
		ext     string
		content string
		wantErr error
	}{
		{
			name:    "unknown_ext",
			ext:     ".json",
			content: `{}`,
			wantErr: ErrUnknownFormat,
		},
		{
			name:    "bad_profiler",
			ext:     ".toml",
			content: "[benchmark]\nprofiler = \"perf\"\n",
		},
		{
			name:    "negative_limit",
			ext:     ".yaml",
			content: "benchmark:\n  limit: -1\n",
		},
		{
			name:    "bad_timeout",
			ext:     ".yaml",
			content: "timeout: forever\n",
		},
		{
			name:    "empty_prefix",
			ext:     ".toml",
			content: "prefix = [\"\"]\n",
		},
		{
			name:    "unknown_field",
			ext:     ".yaml",
			content: "roots: /src/a.h\n",
		},
		{
			name:    "unknown_field_toml",
			ext:     ".toml",
			content: "roots = \"/src/a.h\"\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.ext, []byte(tc.content))
			if err == nil {
				t.Fatalf("Parse(%q, %q)=_, nil; want error", tc.ext, tc.content)
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("Parse(%q, %q)=_, %v; want %v", tc.ext, tc.content, err, tc.wantErr)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml"} {
		cfg, err := Parse(ext, nil)
		if err != nil {
			t.Errorf("Parse(%q, nil)=_, %v; want nil", ext, err)
			continue
		}
		if diff := cmp.Diff(&Config{}, cfg); diff != "" {
			t.Errorf("Parse(%q, nil) diff -want +got:\n%s", ext, diff)
		}
	}
}

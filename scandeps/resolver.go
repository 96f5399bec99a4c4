// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/o11y/iometrics"
	"go.chromium.org/infra/build/hdrcost/toolsupport/gccutil"
)

// Canonical returns canonical absolute path of p, relative to dir.
// Symlinks are resolved if the file exists.
func Canonical(dir, p string) string {
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	p = filepath.Clean(p)
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return p
}

// searchDir is an include search dir or a header map.
type searchDir struct {
	dir  string
	hmap HeaderMap
}

// Resolver resolves include directives to files.
type Resolver struct {
	quote   []searchDir
	bracket []searchDir

	mu     sync.Mutex
	exists map[string]bool

	metrics *iometrics.IOMetrics
}

// NewResolver creates new resolver for search paths and the
// compiler's builtin search list.
// Dirs already in sp are removed from builtin. `-I foo.hmap` loads
// the header map.
func NewResolver(ctx context.Context, sp gccutil.SearchPaths, builtin []string) *Resolver {
	r := &Resolver{
		exists: make(map[string]bool),
	}
	seen := make(map[string]bool)
	add := func(dirs []searchDir, dir string) []searchDir {
		if seen[dir] {
			return dirs
		}
		seen[dir] = true
		if strings.HasSuffix(dir, ".hmap") {
			buf, err := os.ReadFile(dir)
			if err != nil {
				clog.Warningf(ctx, "failed to read hmap %s: %v", dir, err)
				return dirs
			}
			m, err := ParseHeaderMap(ctx, buf)
			if err != nil {
				clog.Warningf(ctx, "failed to parse hmap %s: %v", dir, err)
				return dirs
			}
			return append(dirs, searchDir{dir: dir, hmap: m})
		}
		return append(dirs, searchDir{dir: dir})
	}
	for _, dir := range sp.Quote {
		r.quote = add(r.quote, dir)
	}
	// quote dirs are searched only for "...", so bracket list
	// starts with its own dedup set.
	seen = make(map[string]bool)
	for _, dirs := range [][]string{sp.Bracket, sp.System, builtin} {
		for _, dir := range dirs {
			r.bracket = add(r.bracket, dir)
		}
	}
	return r
}

// Dirs returns search dirs for the form, in search order.
func (r *Resolver) Dirs(form Form) []string {
	var dirs []string
	if form == FormQuote {
		for _, d := range r.quote {
			dirs = append(dirs, d.dir)
		}
	}
	for _, d := range r.bracket {
		dirs = append(dirs, d.dir)
	}
	return dirs
}

// Resolve resolves d included from includer, and returns canonical path
// of the included file.
// Quoted includes search the includer's directory, quote dirs, then
// bracket dirs. Bracket includes search only bracket dirs.
// #include_next searches dirs after the one that contains the includer.
func (r *Resolver) Resolve(ctx context.Context, d Directive, includer string) (string, bool) {
	if d.Form == FormMacro {
		return "", false
	}
	if filepath.IsAbs(d.Name) {
		if r.isFile(d.Name) {
			return Canonical("", d.Name), true
		}
		return "", false
	}
	var dirs []searchDir
	if d.Form == FormQuote && !d.Next {
		dirs = append(dirs, searchDir{dir: filepath.Dir(includer)})
		dirs = append(dirs, r.quote...)
	}
	dirs = append(dirs, r.bracket...)
	if d.Next {
		dirs = dirs[nextIndex(dirs, includer):]
	}
	for _, sd := range dirs {
		var p string
		if sd.hmap != nil {
			v, ok := sd.hmap.Lookup(d.Name)
			if !ok {
				continue
			}
			p = v
		} else {
			p = filepath.Join(sd.dir, d.Name)
		}
		if r.isFile(p) {
			if clog.V(2) {
				clog.Infof(ctx, "resolve %s from %s -> %s", d, includer, p)
			}
			return Canonical("", p), true
		}
	}
	return "", false
}

// nextIndex returns index of dirs next to the dir that contains includer.
// It uses the longest matching dir. If no dir contains includer,
// #include_next behaves as #include.
func nextIndex(dirs []searchDir, includer string) int {
	best, bestLen := -1, -1
	for i, sd := range dirs {
		if sd.hmap != nil {
			continue
		}
		prefix := sd.dir + string(filepath.Separator)
		if strings.HasPrefix(includer, prefix) && len(prefix) > bestLen {
			best, bestLen = i, len(prefix)
		}
	}
	return best + 1
}

func (r *Resolver) isFile(p string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.exists[p]; ok {
		return v
	}
	fi, err := os.Stat(p)
	r.metrics.OpsDone(err)
	v := err == nil && fi.Mode().IsRegular()
	r.exists[p] = v
	return v
}

// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"context"
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"

	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/o11y/iometrics"
)

// DefaultCacheSize is default number of files kept in scan cache.
const DefaultCacheSize = 8192

// Result is a result of scanning a file.
type Result struct {
	// Path is canonical path of the scanned file.
	Path string

	// Includes are canonical paths of resolved includes,
	// in directive order, without duplicates.
	Includes []string

	// Unresolved are directives that could not be resolved.
	Unresolved []Directive

	// Directives is the number of include directives in the file.
	Directives int
}

// Scanner scans files for include directives.
type Scanner struct {
	resolver *Resolver
	cache    *lru.Cache[string, Result]
	metrics  *iometrics.IOMetrics
}

// NewScanner creates new scanner with resolver.
// cacheSize <= 0 means DefaultCacheSize.
func NewScanner(resolver *Resolver, cacheSize int) (*Scanner, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, Result](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan cache: %w", err)
	}
	metrics := iometrics.New("scandeps")
	resolver.metrics = metrics
	return &Scanner{
		resolver: resolver,
		cache:    cache,
		metrics:  metrics,
	}, nil
}

// IOStats returns file system operations done by the scanner and
// its resolver.
func (s *Scanner) IOStats() iometrics.Stats {
	return s.metrics.Stats()
}

// Scan reads path and returns its resolved includes.
func (s *Scanner) Scan(ctx context.Context, path string) (Result, error) {
	path = Canonical("", path)
	if r, ok := s.cache.Get(path); ok {
		return r, nil
	}
	buf, err := os.ReadFile(path)
	s.metrics.ReadDone(len(buf), err)
	if err != nil {
		return Result{}, err
	}
	directives := CPPScan(ctx, path, buf)
	r := Result{
		Path:       path,
		Directives: len(directives),
	}
	seen := make(map[string]bool)
	for _, d := range directives {
		p, ok := s.resolver.Resolve(ctx, d, path)
		if !ok {
			if clog.V(1) {
				clog.Infof(ctx, "%s:%d: unresolved include %s", path, d.Line, d)
			}
			r.Unresolved = append(r.Unresolved, d)
			continue
		}
		if seen[p] || p == path {
			continue
		}
		seen[p] = true
		r.Includes = append(r.Includes, p)
	}
	s.cache.Add(path, r)
	return r, nil
}

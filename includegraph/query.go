// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package includegraph

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// NoMatchError is returned when no node matches a substring.
type NoMatchError struct {
	Substr string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no header matches %q", e.Substr)
}

// AmbiguousMatchError is returned when more than one node matches a substring.
type AmbiguousMatchError struct {
	Substr     string
	Candidates []string
}

func (e *AmbiguousMatchError) Error() string {
	const maxShown = 10
	shown := e.Candidates
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d headers match %q:", len(e.Candidates), e.Substr)
	for _, c := range shown {
		fmt.Fprintf(&sb, "\n  %s", c)
	}
	if len(e.Candidates) > maxShown {
		fmt.Fprintf(&sb, "\n  ... and %d more", len(e.Candidates)-maxShown)
	}
	return sb.String()
}

// Match returns the unique node path that contains substr.
func (g *Graph) Match(substr string) (string, error) {
	var matches []string
	for p := range g.nodes {
		if strings.Contains(p, substr) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return "", &NoMatchError{Substr: substr}
	case 1:
		return matches[0], nil
	}
	slices.Sort(matches)
	return "", &AmbiguousMatchError{Substr: substr, Candidates: matches}
}

// PathResult is a result of shortest path query.
type PathResult struct {
	From string
	To   string

	// Reachable reports whether To is reachable from From.
	Reachable bool

	// Length is the number of edges of the shortest paths.
	Length int

	// Total is the number of shortest paths, saturated at math.MaxInt.
	Total int

	// Paths are shortest paths, each from From to To, in lexical order
	// of nodes walked backward from To.
	Paths [][]string
}

// FindShortestPaths returns up to limit shortest paths from -> to.
// limit <= 0 means all paths.
// Unreachable to is not an error, but Reachable=false.
func (g *Graph) FindShortestPaths(from, to string, limit int) (PathResult, error) {
	res := PathResult{From: from, To: to}
	if _, ok := g.nodes[from]; !ok {
		return res, fmt.Errorf("from %q: %w", from, &NoMatchError{Substr: from})
	}
	if _, ok := g.nodes[to]; !ok {
		return res, fmt.Errorf("to %q: %w", to, &NoMatchError{Substr: to})
	}

	dist := map[string]int{from: 0}
	preds := make(map[string][]string)
	order := []string{from}
	for i := 0; i < len(order); i++ {
		n := order[i]
		if n == to {
			// no shorter path goes through nodes further than to.
			continue
		}
		for c := range g.children[n] {
			d, ok := dist[c]
			switch {
			case !ok:
				dist[c] = dist[n] + 1
				preds[c] = append(preds[c], n)
				order = append(order, c)
			case d == dist[n]+1:
				preds[c] = append(preds[c], n)
			}
		}
	}
	length, ok := dist[to]
	if !ok {
		return res, nil
	}
	res.Reachable = true
	res.Length = length

	count := map[string]int{from: 1}
	for _, n := range order[1:] {
		c := 0
		for _, p := range preds[n] {
			c = saturatingAdd(c, count[p])
		}
		count[n] = c
	}
	res.Total = count[to]
	for _, ps := range preds {
		slices.Sort(ps)
	}

	// walk back from to, through sorted predecessors.
	path := make([]string, length+1)
	var walk func(n string, i int) bool
	walk = func(n string, i int) bool {
		path[i] = n
		if i == 0 {
			p := slices.Clone(path)
			res.Paths = append(res.Paths, p)
			return limit <= 0 || len(res.Paths) < limit
		}
		for _, p := range preds[n] {
			if !walk(p, i-1) {
				return false
			}
		}
		return true
	}
	walk(to, length)
	return res, nil
}

// saturatingAdd adds non-negative a and b, saturating at math.MaxInt.
func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

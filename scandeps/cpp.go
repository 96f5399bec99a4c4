// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"context"
	"strings"
	"time"

	"go.chromium.org/infra/build/hdrcost/o11y/clog"
)

// Form is a form of include name.
type Form int

const (
	// FormQuote is `#include "foo.h"`.
	FormQuote Form = iota
	// FormBracket is `#include <foo.h>`.
	FormBracket
	// FormMacro is `#include FOO_H`.
	FormMacro
)

// Directive is an include directive.
type Directive struct {
	// Name is the include name without delimiters.
	Name string
	Form Form
	// Next is true for #include_next.
	Next bool
	// Line is 1-based line number of the directive.
	Line int
}

// String returns the directive's include name in source form.
func (d Directive) String() string {
	switch d.Form {
	case FormQuote:
		return `"` + d.Name + `"`
	case FormBracket:
		return "<" + d.Name + ">"
	}
	return d.Name
}

// CPPScan scans C preprocessor directives for #include in buf.
func CPPScan(ctx context.Context, fname string, buf []byte) []Directive {
	started := time.Now()

	var includes []Directive
	lineno := 0
	for len(buf) > 0 {
		// start of line
		var line []byte
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			line = buf
			buf = nil
		} else {
			line = buf[:i]
			buf = buf[i+1:]
		}
		lineno++
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '#' {
			// not directive line
			continue
		}
		lineStart := line
		// skip #
		line = bytes.TrimSpace(line[1:])

		var next bool
		switch {
		case bytes.HasPrefix(line, []byte("include")):
			line = bytes.TrimPrefix(line, []byte("include"))
			switch {
			case bytes.HasPrefix(line, []byte("_next")):
				// #include_next
				line = bytes.TrimPrefix(line, []byte("_next"))
				next = true
			case len(line) == 0:
			case line[0] == ' ', line[0] == '\t', line[0] == '"', line[0] == '<':
			default:
				// not '#include ' nor '#include_next ' ?
				if clog.V(2) {
					clog.Infof(ctx, "skip %q", lineStart)
				}
				continue
			}
		case bytes.HasPrefix(line, []byte("import")):
			line = bytes.TrimPrefix(line, []byte("import"))
			if len(line) == 0 || (line[0] != ' ' && line[0] != '\t' && line[0] != '"' && line[0] != '<') {
				if clog.V(2) {
					clog.Infof(ctx, "skip %q", lineStart)
				}
				continue
			}
		default:
			// ignore other directives
			continue
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			// no path for #include?
			if clog.V(2) {
				clog.Infof(ctx, "skip %q", lineStart)
			}
			continue
		}
		d, ok := parseIncludeName(ctx, line)
		if !ok {
			continue
		}
		d.Next = next
		d.Line = lineno
		includes = append(includes, d)
	}
	dur := time.Since(started)
	if dur > time.Second {
		clog.Infof(ctx, "slow cppScan %s %s", fname, dur)
	}
	return includes
}

func parseIncludeName(ctx context.Context, incpath []byte) (Directive, bool) {
	if clog.V(2) {
		clog.Infof(ctx, "parseIncludeName %q", incpath)
	}
	var form Form
	var delim string
	switch incpath[0] {
	case '"':
		form = FormQuote
		delim = `"`
	case '<':
		form = FormBracket
		delim = ">"
	default:
		form = FormMacro
		delim = " \t"
	}
	i := bytes.IndexAny(incpath[1:], delim)
	switch {
	case i < 0 && form != FormMacro:
		// unclosed path?
		if clog.V(1) {
			clog.Infof(ctx, "unclosed path? %q", incpath)
		}
		return Directive{}, false
	case i < 0:
		// otherwise, use rest of line as token.
	case form == FormMacro:
		incpath = incpath[:i+1]
	default:
		incpath = incpath[1 : i+1]
	}
	if form == FormMacro && (incpath[0] < 'A' || incpath[0] > 'Z') {
		// not <>, "", nor upper macros?
		return Directive{}, false
	}
	if len(incpath) == 0 {
		return Directive{}, false
	}
	return Directive{
		Name: strings.Clone(string(incpath)),
		Form: form,
	}, true
}

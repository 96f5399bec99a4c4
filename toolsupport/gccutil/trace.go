// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.chromium.org/infra/build/hdrcost/execute"
	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/toolsupport/shutil"
)

var (
	// ErrCompilerFailed is returned when the trace pass could not run
	// or exited with non-zero status.
	ErrCompilerFailed = errors.New("compiler invocation failed")

	// ErrTraceUnparsable is returned when the trace output is
	// truncated or garbled.
	ErrTraceUnparsable = errors.New("trace unparsable")

	// ErrTraceEmpty is returned when the trace output has no trace lines.
	ErrTraceEmpty = errors.New("trace empty")
)

// stderrTailSize is the size of stderr kept in CompilerError.
const stderrTailSize = 4096

// CompilerError is an error of the trace pass invocation.
type CompilerError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CompilerError) Error() string {
	return fmt.Sprintf("%v: %s exit=%d: %v\n%s", ErrCompilerFailed, shutil.Join(e.Args), e.ExitCode, e.Err, e.Stderr)
}

// Is reports ErrCompilerFailed.
func (e *CompilerError) Is(target error) bool {
	return target == ErrCompilerFailed
}

func (e *CompilerError) Unwrap() error {
	return e.Err
}

// ParseError is an error of trace parsing.
type ParseError struct {
	Line int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%v: line %d %q: %s", ErrTraceUnparsable, e.Line, e.Text, e.Msg)
}

// Is reports ErrTraceUnparsable.
func (e *ParseError) Is(target error) bool {
	return target == ErrTraceUnparsable
}

// TraceEvent is an event of include trace.
type TraceEvent struct {
	// Depth is nesting depth of the inclusion. 1 means
	// included by the main file.
	Depth int

	// Path is the path of the included file as the compiler reported.
	Path string
}

// Tokenizer converts compiler trace output into trace events.
// A depth-N event's parent is the nearest preceding event of depth N-1.
type Tokenizer interface {
	Tokenize(buf []byte) ([]TraceEvent, error)
}

// HTokenizer tokenizes the output of gcc/clang -H.
//
//	. /usr/include/stdio.h
//	.. /usr/include/features.h
//	Multiple include guards may be useful for:
//	/usr/include/foo.h
type HTokenizer struct{}

const multipleIncludeGuards = "Multiple include guards may be useful for:"

// Tokenize parses buf as -H output.
func (HTokenizer) Tokenize(buf []byte) ([]TraceEvent, error) {
	var events []TraceEvent
	s := bufio.NewScanner(bytes.NewReader(buf))
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for s.Scan() {
		lineno++
		line := s.Text()
		if strings.HasPrefix(line, multipleIncludeGuards) {
			// rest is a list of headers, not a trace.
			break
		}
		depth, path, ok := parseTraceLine(line)
		if !ok {
			continue
		}
		prev := 0
		if len(events) > 0 {
			prev = events[len(events)-1].Depth
		}
		if depth > prev+1 {
			return nil, &ParseError{
				Line: lineno,
				Text: line,
				Msg:  fmt.Sprintf("depth jumps from %d to %d", prev, depth),
			}
		}
		events = append(events, TraceEvent{Depth: depth, Path: path})
	}
	if err := s.Err(); err != nil {
		return nil, &ParseError{Line: lineno + 1, Msg: err.Error()}
	}
	if len(events) == 0 {
		return nil, ErrTraceEmpty
	}
	return events, nil
}

// parseTraceLine parses `^\.+\s+path`.
func parseTraceLine(line string) (int, string, bool) {
	depth := 0
	for depth < len(line) && line[depth] == '.' {
		depth++
	}
	if depth == 0 || depth == len(line) {
		return 0, "", false
	}
	if line[depth] != ' ' && line[depth] != '\t' {
		return 0, "", false
	}
	path := strings.TrimSpace(line[depth:])
	if path == "" {
		return 0, "", false
	}
	return depth, path, true
}

// Trace runs the trace pass specified by args in dir and returns trace events
// parsed from its stderr.
func Trace(ctx context.Context, executor execute.Executor, tokenizer Tokenizer, args []string, dir string, timeout time.Duration) ([]TraceEvent, error) {
	if len(args) == 0 {
		return nil, &CompilerError{ExitCode: -1, Err: errors.New("empty command line")}
	}
	cmd := &execute.Cmd{
		ID:            "trace",
		Desc:          "trace " + args[len(args)-1],
		Args:          args,
		Dir:           dir,
		Timeout:       timeout,
		DiscardStdout: true,
	}
	s := time.Now()
	err := executor.Run(ctx, cmd)
	if err != nil {
		cerr := &CompilerError{
			Args:     args,
			ExitCode: cmd.Result().ExitCode,
			Stderr:   cmd.StderrTail(stderrTailSize),
			Err:      err,
		}
		return nil, cerr
	}
	events, err := tokenizer.Tokenize(cmd.Stderr())
	clog.Infof(ctx, "trace stderr:%d -> events:%d: %s", len(cmd.Stderr()), len(events), time.Since(s))
	return events, err
}

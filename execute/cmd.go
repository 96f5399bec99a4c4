// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package execute runs commands.
package execute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.chromium.org/infra/build/hdrcost/toolsupport/shutil"
)

// ErrTimeout is returned when a cmd didn't finish in its Timeout.
var ErrTimeout = errors.New("command timed out")

// Executor is an interface to run the cmd.
type Executor interface {
	Run(ctx context.Context, cmd *Cmd) error
}

// ExecutorFunc adapts a func to Executor.
type ExecutorFunc func(ctx context.Context, cmd *Cmd) error

// Run runs cmd by calling f.
func (f ExecutorFunc) Run(ctx context.Context, cmd *Cmd) error {
	return f(ctx, cmd)
}

// Cmd includes all the information required to run a command such as
// a compiler trace pass or a profiled compile.
type Cmd struct {
	// ID is used as a unique identifier for this cmd in logs.
	// It does not have to be human-readable, so using a UUID is fine.
	ID string

	// Desc is a short, human-readable identifier that is shown to the user when referencing this cmd.
	// Example: "bench foo/bar.h"
	Desc string

	// Args holds command line arguments.
	Args []string

	// Env specifies the environment of the process.
	// nil means the current process's environment.
	Env []string

	// Dir specifies the working directory of the cmd.
	Dir string

	// Timeout is the maximum duration of the cmd.
	// zero means no timeout.
	Timeout time.Duration

	// DiscardStdout makes the executor only count stdout bytes
	// rather than keep them, e.g. for `-E` output.
	DiscardStdout bool

	stdoutWriter, stderrWriter io.Writer
	stdoutBuffer, stderrBuffer bytes.Buffer
	stdoutSize                 int64

	result Result
}

// Result is the result of an executed cmd.
type Result struct {
	ExitCode int
	Started  time.Time
	Finished time.Time
	Rusage   *Rusage
}

// Rusage is resource usage of the cmd's process (and waited children).
type Rusage struct {
	// MaxRSS is peak resident set size in bytes.
	MaxRSS int64
	Utime  time.Duration
	Stime  time.Duration
}

// ExitError is an error of cmd exit.
type ExitError struct {
	ExitCode int
}

func (e ExitError) Error() string {
	return fmt.Sprintf("exit=%d", e.ExitCode)
}

// String returns an ID of the cmd.
func (c *Cmd) String() string {
	return c.ID
}

// Command returns command line string of the cmd.
func (c *Cmd) Command() string {
	return shutil.Join(c.Args)
}

// SetStdoutWriter sets w for stdout.
func (c *Cmd) SetStdoutWriter(w io.Writer) {
	c.stdoutWriter = w
}

// SetStderrWriter sets w for stderr.
func (c *Cmd) SetStderrWriter(w io.Writer) {
	c.stderrWriter = w
}

// StdoutWriter returns a writer set for stdout.
func (c *Cmd) StdoutWriter() io.Writer {
	c.stdoutBuffer.Reset()
	c.stdoutSize = 0
	var w io.Writer = &c.stdoutBuffer
	if c.DiscardStdout {
		w = io.Discard
	}
	w = &countWriter{w: w, n: &c.stdoutSize}
	if c.stdoutWriter == nil {
		return w
	}
	return io.MultiWriter(c.stdoutWriter, w)
}

// StderrWriter returns a writer set for stderr.
func (c *Cmd) StderrWriter() io.Writer {
	c.stderrBuffer.Reset()
	if c.stderrWriter == nil {
		return &c.stderrBuffer
	}
	return io.MultiWriter(c.stderrWriter, &c.stderrBuffer)
}

// Stdout returns stdout output of the cmd.
// It is empty if DiscardStdout is set.
func (c *Cmd) Stdout() []byte {
	return c.stdoutBuffer.Bytes()
}

// StdoutSize returns the number of bytes written to stdout.
func (c *Cmd) StdoutSize() int64 {
	return c.stdoutSize
}

// Stderr returns stderr output of the cmd.
func (c *Cmd) Stderr() []byte {
	return c.stderrBuffer.Bytes()
}

// SetResult sets the result of the cmd. It is called by executors.
func (c *Cmd) SetResult(r Result) {
	c.result = r
}

// Result returns the result of the cmd.
func (c *Cmd) Result() Result {
	return c.result
}

// StderrTail returns the last n bytes of stderr, for error messages.
func (c *Cmd) StderrTail(n int) string {
	buf := c.Stderr()
	if len(buf) > n {
		buf = buf[len(buf)-n:]
	}
	return string(buf)
}

type countWriter struct {
	w io.Writer
	n *int64
}

func (w *countWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	*w.n += int64(n)
	return n, err
}

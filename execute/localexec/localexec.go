// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package localexec implements local command execution.
package localexec

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"go.chromium.org/infra/build/hdrcost/execute"
	"go.chromium.org/infra/build/hdrcost/o11y/clog"
	"go.chromium.org/infra/build/hdrcost/sync/semaphore"
)

// LocalExec implements execute.Executor interface that runs commands locally.
type LocalExec struct {
	// OOMScoreAdj, if non-zero, is written to the child's oom_score_adj
	// so a memory hungry compile is killed before the analyzer itself.
	OOMScoreAdj int
}

// Run runs cmd with default LocalExec.
func Run(ctx context.Context, cmd *execute.Cmd) error {
	return LocalExec{}.Run(ctx, cmd)
}

// Run runs a cmd.
// It returns execute.ErrTimeout if the cmd exceeds its Timeout, and
// *execute.ExitError if the cmd exits with non-zero status.
func (le LocalExec) Run(ctx context.Context, cmd *execute.Cmd) error {
	if len(cmd.Args) == 0 {
		return fmt.Errorf("no arguments in the command. ID: %s", cmd.ID)
	}
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}
	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	c.Env = cmd.Env
	c.Dir = cmd.Dir
	c.Stdout = cmd.StdoutWriter()
	c.Stderr = cmd.StderrWriter()
	// grandchildren may keep stdout/stderr open after the kill.
	c.WaitDelay = time.Second

	s := time.Now()
	err := forkSema.Do(ctx, func(ctx context.Context) error {
		return c.Start()
	})
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Desc, err)
	}
	if le.OOMScoreAdj != 0 {
		oomScoreAdj(ctx, c.Process.Pid, le.OOMScoreAdj)
	}
	err = c.Wait()
	e := time.Now()

	res := execute.Result{
		ExitCode: exitCode(err),
		Started:  s,
		Finished: e,
		Rusage:   rusage(c),
	}
	cmd.SetResult(res)
	if clog.V(1) {
		clog.Infof(ctx, "%s exit=%d stdout=%d stderr=%d %s", cmd.ID, res.ExitCode, cmd.StdoutSize(), len(cmd.Stderr()), e.Sub(s))
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w after %s", cmd.Desc, execute.ErrTimeout, cmd.Timeout)
	}
	if err != nil {
		var eerr *exec.ExitError
		if !errors.As(err, &eerr) {
			return fmt.Errorf("%s: %w", cmd.Desc, err)
		}
	}
	if res.ExitCode != 0 {
		return &execute.ExitError{ExitCode: res.ExitCode}
	}
	return nil
}

// fix for http://b/278658064 windows: fork/exec: Not enough memory resources are available to process this command.
var forkSema = semaphore.New("fork", runtime.NumCPU())

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var eerr *exec.ExitError
	if !errors.As(err, &eerr) {
		return 1
	}
	if w, ok := eerr.ProcessState.Sys().(syscall.WaitStatus); ok {
		if w.Signaled() {
			return 128 + int(w.Signal())
		}
		return w.ExitStatus()
	}
	return 1
}

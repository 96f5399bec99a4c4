// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build unix

package localexec

import (
	"os/exec"
	"runtime"
	"syscall"
	"time"

	"go.chromium.org/infra/build/hdrcost/execute"
)

func rusage(cmd *exec.Cmd) *execute.Rusage {
	if cmd.ProcessState == nil {
		return nil
	}
	u, ok := cmd.ProcessState.SysUsage().(*syscall.Rusage)
	if !ok {
		return nil
	}
	// 32bit arch may use int32 for Maxrss etc.
	maxRSS := int64(u.Maxrss)
	if runtime.GOOS != "darwin" {
		// linux reports kilobytes, darwin bytes.
		maxRSS *= 1024
	}
	return &execute.Rusage{
		MaxRSS: maxRSS,
		Utime:  time.Duration(u.Utime.Nano()),
		Stime:  time.Duration(u.Stime.Nano()),
	}
}

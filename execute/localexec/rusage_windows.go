// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build windows

package localexec

import (
	"os/exec"

	"go.chromium.org/infra/build/hdrcost/execute"
)

func rusage(cmd *exec.Cmd) *execute.Rusage {
	return nil
}

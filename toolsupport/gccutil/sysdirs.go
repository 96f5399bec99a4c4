// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package gccutil

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.chromium.org/infra/build/hdrcost/execute"
)

// SystemIncludeDirs parses the output of `-E -v` and returns
// directories in the `#include <...>` search list, in search order.
// Framework directories are skipped.
//
//	#include "..." search starts here:
//	#include <...> search starts here:
//	 /usr/lib/gcc/x86_64-linux-gnu/12/include
//	 /usr/include
//	End of search list.
func SystemIncludeDirs(stderr []byte) []string {
	var dirs []string
	in := false
	s := bufio.NewScanner(bytes.NewReader(stderr))
	for s.Scan() {
		line := s.Text()
		switch {
		case strings.HasPrefix(line, "#include <...> search starts here:"):
			in = true
			continue
		case strings.HasPrefix(line, "End of search list."):
			in = false
			continue
		case !in:
			continue
		}
		dir := strings.TrimSpace(line)
		if dir == "" || strings.HasSuffix(dir, "(framework directory)") {
			continue
		}
		dirs = append(dirs, filepath.Clean(dir))
	}
	return dirs
}

// SystemDirs runs the compiler with -v and returns its include
// search list.
func SystemDirs(ctx context.Context, executor execute.Executor, compiler string, flags []string, dir string, timeout time.Duration) ([]string, error) {
	cmd := &execute.Cmd{
		ID:            "sysdirs",
		Desc:          "sysdirs " + compiler,
		Args:          VerboseArgs(compiler, flags),
		Dir:           dir,
		Timeout:       timeout,
		DiscardStdout: true,
	}
	err := executor.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to get include search list of %s: %w\n%s", compiler, err, cmd.StderrTail(stderrTailSize))
	}
	return SystemIncludeDirs(cmd.Stderr()), nil
}

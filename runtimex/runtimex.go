// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runtimex provides host resource information used to size
// worker pools.
//   - NumCPU()
//   - TotalMemory()
package runtimex

import "runtime"

var (
	ncpu int
	mem  uint64
)

func init() {
	ncpu = getproccount()
	if ncpu == 0 {
		ncpu = runtime.NumCPU()
	}
	mem = totalmem()
}

// NumCPU returns the number of logical CPUs usable by the current process.
// On Windows, runtime.NumCPU() only returns the information for a single Processor Group (up to 64).
// runtimex.NumCPU() uses GetActiveProcessorCount to get cpu counts from all Processor Groups.
// On non-Windows, runtime.NumCPU() is used as is.
func NumCPU() int {
	return ncpu
}

// TotalMemory returns physical memory size in bytes, or 0 if unknown.
func TotalMemory() uint64 {
	return mem
}

// Workers returns the number of concurrent workers to use for n jobs
// where each job may use up to perJob bytes of memory.
// It is bounded by NumCPU, by TotalMemory/perJob (if memory is known),
// and by n. It returns at least 1.
func Workers(n int, perJob uint64) int {
	return workers(n, NumCPU(), TotalMemory(), perJob)
}

func workers(n, cpus int, total, perJob uint64) int {
	w := cpus
	if total > 0 && perJob > 0 {
		if m := int(total / perJob); m < w {
			w = m
		}
	}
	if n < w {
		w = n
	}
	if w < 1 {
		w = 1
	}
	return w
}

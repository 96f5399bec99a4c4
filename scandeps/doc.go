// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package scandeps provides a simple C/C++ include scanner.
// It is not a preprocessor. It only checks the following forms of
// directives
//
//	#include "foo.h"
//	#include <foo.h>
//	#include_next <foo.h>
//	#import "foo.h"
//
// and resolves them against include search paths, so it finds
// includes that a compiler trace omits because of include guards.
//
// It doesn't process `#if` or `#ifdef`, so it reports includes in all
// branches. `#include FOO_H` is reported as unresolved since it
// doesn't expand macros.
//
// It doesn't allow comments nor multiline (\ at the end of line)
// for the directives.
package scandeps

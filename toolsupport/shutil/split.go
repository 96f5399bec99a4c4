// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package shutil splits and joins POSIX shell command lines, such as the
// "command" field of compile_commands.json or a user supplied wrapper.
package shutil

import (
	"fmt"
	"strings"
)

// Split splits a command line.
// It supports single quotes, double quotes and backslash escapes.
// It would return error for pipe line or command list, or for
// unterminated quotes.
func Split(cmdline string) ([]string, error) {
	var args []string
	var sb strings.Builder
	inArg := false
	for i := 0; i < len(cmdline); i++ {
		ch := cmdline[i]
		switch ch {
		case ' ', '\t', '\n', '\r':
			if inArg {
				args = append(args, sb.String())
				sb.Reset()
				inArg = false
			}
		case '\\':
			inArg = true
			if i+1 < len(cmdline) {
				i++
				if cmdline[i] != '\n' {
					sb.WriteByte(cmdline[i])
				}
			}
		case '\'':
			inArg = true
			j := strings.IndexByte(cmdline[i+1:], '\'')
			if j < 0 {
				return nil, fmt.Errorf("failed to split: unterminated single quote at %d", i)
			}
			sb.WriteString(cmdline[i+1 : i+1+j])
			i += j + 1
		case '"':
			inArg = true
			j, err := doubleQuoted(&sb, cmdline, i+1)
			if err != nil {
				return nil, err
			}
			i = j
		case ';', '&', '|', '`':
			return nil, fmt.Errorf("failed to split: cmdline contains shell metachar %c", ch)
		default:
			inArg = true
			sb.WriteByte(ch)
		}
	}
	if inArg {
		args = append(args, sb.String())
	}
	if len(args) >= 1 && strings.Contains(args[0], "=") && !strings.HasPrefix(args[0], "-") {
		// if initial args contains =, it would set env var and need to invoke via sh
		return nil, fmt.Errorf("argv[0] is env set %q", args[0])
	}
	return args, nil
}

// doubleQuoted writes the contents of a double-quoted string starting at
// cmdline[i] into sb, and returns the index of the closing quote.
func doubleQuoted(sb *strings.Builder, cmdline string, i int) (int, error) {
	start := i - 1
	for ; i < len(cmdline); i++ {
		ch := cmdline[i]
		switch ch {
		case '"':
			return i, nil
		case '\\':
			if i+1 < len(cmdline) {
				switch next := cmdline[i+1]; next {
				case '"', '\\', '$', '`':
					sb.WriteByte(next)
					i++
					continue
				case '\n':
					i++
					continue
				}
			}
			sb.WriteByte(ch)
		default:
			sb.WriteByte(ch)
		}
	}
	return 0, fmt.Errorf("failed to split: unterminated double quote at %d", start)
}

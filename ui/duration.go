// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package ui

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FormatDuration formats duration in "X.XXs", "XmXX.XXs" or "XhXmXX.XXs".
func FormatDuration(d time.Duration) string {
	d = d.Round(10 * time.Millisecond)
	var sb strings.Builder
	sb.Grow(32)

	mins := d.Truncate(time.Minute)
	d -= mins
	if mins > 0 {
		sb.WriteString(strings.TrimSuffix(mins.String(), "0s"))
		if d < 10*time.Second {
			sb.WriteByte('0')
		}
	}
	fmt.Fprintf(&sb, "%02.02fs", d.Seconds())
	return sb.String()
}

// FormatSeconds formats seconds measured by profilers as FormatDuration
// does. Negative or NaN seconds are shown as "-".
func FormatSeconds(s float64) string {
	if s < 0 || math.IsNaN(s) {
		return "-"
	}
	return FormatDuration(time.Duration(s * float64(time.Second)))
}

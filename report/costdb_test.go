// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCostDB(t *testing.T) {
	ctx := context.Background()
	fname := filepath.Join(t.TempDir(), "db", "costs.sqlite")
	db, err := OpenCostDB(ctx, fname)
	if err != nil {
		t.Fatalf("OpenCostDB=%v", err)
	}
	defer db.Close()

	t1 := time.UnixMilli(1700000000000)
	t2 := t1.Add(time.Hour)
	err = db.Record(ctx, Run{ID: "run1", Root: "/src/root.h", Host: "h", Profiler: "time", Time: t1}, []CostRow{
		{Header: "/src/a.h", RSSBytes: 100, WallSeconds: 1, CPUSeconds: 1},
		{Header: "/src/b.h", Error: "exit=1"},
	})
	if err != nil {
		t.Fatalf("Record(run1)=%v", err)
	}
	err = db.Record(ctx, Run{ID: "run2", Root: "/src/root.h", Host: "h", Profiler: "time", Time: t2}, []CostRow{
		{Header: "/src/a.h", RSSBytes: 80, WallSeconds: 0.5, CPUSeconds: 0.5},
		{Header: "/src/b.h", RSSBytes: 50, WallSeconds: 2, CPUSeconds: 2},
	})
	if err != nil {
		t.Fatalf("Record(run2)=%v", err)
	}
	err = db.Record(ctx, Run{ID: "run2", Root: "/src/root.h", Time: t2}, nil)
	if err == nil {
		t.Errorf("Record(run2) again=nil; want error")
	}

	hist, err := db.History(ctx, "/src/a.h")
	if err != nil {
		t.Fatalf("History=%v", err)
	}
	want := []HistoryEntry{
		{RunID: "run2", Time: t2, RSSBytes: 80, WallSeconds: 0.5, CPUSeconds: 0.5},
		{RunID: "run1", Time: t1, RSSBytes: 100, WallSeconds: 1, CPUSeconds: 1},
	}
	if diff := cmp.Diff(want, hist); diff != "" {
		t.Errorf("History diff -want +got:\n%s", diff)
	}

	prev, err := db.Previous(ctx, "run2", []string{"/src/a.h", "/src/b.h", "/src/c.h"})
	if err != nil {
		t.Fatalf("Previous=%v", err)
	}
	wantPrev := map[string]HistoryEntry{
		"/src/a.h": {RunID: "run1", Time: t1, RSSBytes: 100, WallSeconds: 1, CPUSeconds: 1},
	}
	if diff := cmp.Diff(wantPrev, prev); diff != "" {
		t.Errorf("Previous diff -want +got:\n%s", diff)
	}
}

// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package clog_test is a test for clog package.
package clog_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"go.chromium.org/infra/build/hdrcost/o11y/clog"
)

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := log.NewWithOptions(&lockedWriter{w: &buf, mu: &mu}, log.Options{Level: log.DebugLevel})
	ctx := clog.NewContext(context.Background(), logger)

	clog.Infof(ctx, "Info")
	clog.Warningf(ctx, "Warning")
	clog.Errorf(ctx, "Error")

	var wg sync.WaitGroup
	for _, id := range []string{"id1", "id2"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx := clog.With(ctx, "header", id)
			clog.Infof(cctx, "Child Info")
			clog.Debugf(cctx, "Child Debug")
		}()
	}
	wg.Wait()

	got := buf.String()
	for _, want := range []string{"Info", "Warning", "Error", "header=id1", "header=id2", "Child Debug"} {
		if !strings.Contains(got, want) {
			t.Errorf("log output missing %q:\n%s", want, got)
		}
	}
}

func TestFromContextDefault(t *testing.T) {
	if got := clog.FromContext(context.Background()); got != log.Default() {
		t.Errorf("FromContext(empty)=%p; want default logger %p", got, log.Default())
	}
}

func TestV(t *testing.T) {
	defer clog.SetVerbosity(0)
	clog.SetVerbosity(1)
	if !clog.V(1) {
		t.Errorf("V(1)=false; want true")
	}
	if clog.V(2) {
		t.Errorf("V(2)=true; want false")
	}
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

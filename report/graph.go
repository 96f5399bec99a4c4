// Copyright 2025 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package report writes analysis results.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"go.chromium.org/infra/build/hdrcost/includegraph"
	"go.chromium.org/infra/build/hdrcost/o11y/clog"
)

const (
	// GraphFile is the file name of the include graph.
	GraphFile = "include_graph.json"

	// zstdExt is appended to GraphFile when compressed.
	zstdExt = ".zst"
)

// zstdMagic is the frame magic number of zstd.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// LoadGraph loads the include graph from fname.
// zstd compressed file is detected by its magic number.
func LoadGraph(ctx context.Context, fname string) (*includegraph.Graph, error) {
	b, err := os.ReadFile(fname)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(b, zstdMagic) {
		r, err := zstd.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		b, err = io.ReadAll(r)
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", fname, err)
		}
	}
	g := &includegraph.Graph{}
	err = json.Unmarshal(b, g)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", fname, err)
	}
	clog.Infof(ctx, "loaded graph %s: %d nodes %d edges", fname, g.Len(), g.NumEdges())
	return g, nil
}

// SaveGraph saves g in fname. If fname ends with ".zst", it is
// compressed by zstd. The previous file is kept in fname+".0".
func SaveGraph(ctx context.Context, fname string, g *includegraph.Graph) error {
	b, err := json.MarshalIndent(g, "", " ")
	if err != nil {
		return err
	}
	ofname := fname + ".0"
	if err := os.Remove(ofname); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(fname, ofname); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	var w io.WriteCloser = nopCloser{f}
	if strings.HasSuffix(fname, zstdExt) {
		w, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			f.Close()
			return err
		}
	}
	if _, err := w.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	clog.Infof(ctx, "saved graph %s: %d nodes %d edges", fname, g.Len(), g.NumEdges())
	return f.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Copyright 2024 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"go.chromium.org/infra/build/hdrcost/o11y/clog"
)

// Header map (*.hmap) is a clang's lookup table from include name to
// file path, given as an include dir (`-I foo.hmap`).
// https://source.chromium.org/chromium/chromium/src/+/main:build/config/ios/write_framework_hmap.py
// https://github.com/llvm/llvm-project/blob/main/clang/include/clang/Lex/HeaderMapTypes.h

// ErrBadHeaderMap is returned for malformed header map.
var ErrBadHeaderMap = errors.New("bad header map")

var hmapMagic = []byte("pamh")

// hmapHeader is the header after the magic.
type hmapHeader struct {
	Version        uint16
	Reserved       uint16
	StringOffset   uint32
	StringCount    uint32
	HashCapacity   uint32
	MaxValueLength uint32
}

// hmapBucket is an entry of the hash table. Fields are offsets in
// the string table; 0 key means an empty bucket.
type hmapBucket struct {
	Key    uint32
	Prefix uint32
	Suffix uint32
}

const hmapHeaderSize = 4 + 2 + 2 + 4*4

// HeaderMap maps include name to file path.
// Lookup is case insensitive as clang does.
type HeaderMap map[string]string

// Lookup returns file path for the include name.
func (m HeaderMap) Lookup(name string) (string, bool) {
	p, ok := m[strings.ToLower(name)]
	return p, ok
}

// ParseHeaderMap parses *.hmap file content.
func ParseHeaderMap(ctx context.Context, buf []byte) (HeaderMap, error) {
	if !bytes.HasPrefix(buf, hmapMagic) {
		return nil, fmt.Errorf("wrong magic: %w", ErrBadHeaderMap)
	}
	var hdr hmapHeader
	r := bytes.NewReader(buf[len(hmapMagic):])
	err := binary.Read(r, binary.LittleEndian, &hdr)
	if err != nil {
		return nil, fmt.Errorf("short header: %w", ErrBadHeaderMap)
	}
	if hdr.Version != 1 {
		return nil, fmt.Errorf("unknown version %d: %w", hdr.Version, ErrBadHeaderMap)
	}
	if int64(hdr.StringOffset) > int64(len(buf)) {
		return nil, fmt.Errorf("string_offset=%d beyond size=%d: %w", hdr.StringOffset, len(buf), ErrBadHeaderMap)
	}
	strs := buf[hdr.StringOffset:]
	str := func(off uint32) (string, error) {
		if int64(off) >= int64(len(strs)) {
			return "", fmt.Errorf("string offset %d out of range: %w", off, ErrBadHeaderMap)
		}
		s := strs[off:]
		end := bytes.IndexByte(s, 0)
		if end < 0 {
			return "", fmt.Errorf("unterminated string at %d: %w", off, ErrBadHeaderMap)
		}
		return string(s[:end]), nil
	}

	avail := (int64(hdr.StringOffset) - hmapHeaderSize) / 12
	n := min(int64(hdr.HashCapacity), max(avail, 0))
	buckets := make([]hmapBucket, n)
	err = binary.Read(r, binary.LittleEndian, buckets)
	if err != nil {
		return nil, fmt.Errorf("short buckets: %w", ErrBadHeaderMap)
	}
	m := make(HeaderMap)
	for i, b := range buckets {
		if b.Key == 0 {
			continue
		}
		key, err := str(b.Key)
		if err != nil {
			return nil, fmt.Errorf("bucket %d key: %w", i, err)
		}
		prefix, err := str(b.Prefix)
		if err != nil {
			return nil, fmt.Errorf("bucket %d prefix: %w", i, err)
		}
		suffix, err := str(b.Suffix)
		if err != nil {
			return nil, fmt.Errorf("bucket %d suffix: %w", i, err)
		}
		m[strings.ToLower(key)] = prefix + suffix
	}
	if clog.V(1) {
		clog.Infof(ctx, "hmap: %d entries in %d buckets", len(m), hdr.HashCapacity)
	}
	return m, nil
}

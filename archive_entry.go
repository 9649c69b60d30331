// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"fmt"
	"io"
	"math"
)

// ReadEntry reads full decompressed content of the entry with exact key.
func (a *Archive) ReadEntry(key string) ([]byte, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	e, ok := a.Entry(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}

	return a.readEntryData(e)
}

// GetData returns decompressed content for key, or nil and false when the key
// is absent or the entry cannot be read.
func (a *Archive) GetData(key string) ([]byte, bool) {
	data, err := a.ReadEntry(key)
	if err != nil {
		return nil, false
	}

	return data, true
}

// OpenEntry opens the entry with exact key for streaming reads.
// Parts are decompressed one at a time.
func (a *Archive) OpenEntry(key string) (io.ReadCloser, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}

	e, ok := a.Entry(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}

	if e.Storage == StorageStored {
		return io.NopCloser(io.NewSectionReader(a.ra, int64(e.Offset), int64(e.Size))), nil
	}

	return &partReader{archive: a, entry: e}, nil
}

// readEntryData reads and assembles all parts of e into a fresh buffer.
func (a *Archive) readEntryData(e ArchiveEntry) ([]byte, error) {
	outLen, err := checkedUint32ToInt(e.Size)
	if err != nil {
		return nil, fmt.Errorf("resolve output size for %s: %w", e.Key, err)
	}

	out := make([]byte, outLen)
	if e.Storage == StorageStored {
		if _, err := a.ra.ReadAt(out, int64(e.Offset)); err != nil && err != io.EOF {
			return nil, fmt.Errorf("read entry %s: %w", e.Key, err)
		}

		return out, nil
	}

	pos := 0
	for i := range e.PartCount {
		chunk, err := a.readPart(e, i)
		if err != nil {
			return nil, err
		}

		pos += copy(out[pos:], chunk)
	}

	return out, nil
}

// readPart reads and decompresses part i of entry e.
func (a *Archive) readPart(e ArchiveEntry, i uint32) ([]byte, error) {
	p := a.parts[e.FirstPart+i]
	stored := make([]byte, p.StoredSize)
	if _, err := a.ra.ReadAt(stored, int64(p.Offset)); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read entry %s part %d: %w", e.Key, i, err)
	}

	if p.StoredSize == p.Size {
		return stored, nil
	}

	data, err := decompressBlock(a.codec, stored, p.Size)
	if err != nil {
		return nil, fmt.Errorf("decompress entry %s part %d: %w", e.Key, i, err)
	}

	return data, nil
}

// partReader streams a multi-part entry.
type partReader struct {
	archive *Archive
	buf     []byte
	entry   ArchiveEntry
	next    uint32
}

// Read implements io.Reader.
func (r *partReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.next >= r.entry.PartCount {
			return 0, io.EOF
		}
		if err := r.archive.checkOpen(); err != nil {
			return 0, err
		}

		chunk, err := r.archive.readPart(r.entry, r.next)
		if err != nil {
			return 0, err
		}

		r.buf = chunk
		r.next++
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// Close releases the buffered part.
func (r *partReader) Close() error {
	r.buf = nil
	r.next = r.entry.PartCount
	return nil
}

// checkedUint32ToInt converts uint32 to int with platform-safe overflow check.
func checkedUint32ToInt(v uint32) (int, error) {
	if uint64(v) > uint64(math.MaxInt) {
		return 0, ErrSizeOverflow
	}

	return int(v), nil
}

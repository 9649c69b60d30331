// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Kind identifies a container format.
type Kind uint8

// Container kinds.
const (
	// KindArchive is an ARC resource archive.
	KindArchive Kind = iota + 1
	// KindDatabase is an ARZ record database.
	KindDatabase
)

// String returns kind name.
func (k Kind) String() string {
	switch k {
	case KindArchive:
		return "archive"
	case KindDatabase:
		return "database"
	default:
		return "unknown"
	}
}

// DetectKind sniffs the container format of the file at path.
func DetectKind(path string) (Kind, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	return DetectKindFromReaderAt(f, size)
}

// DetectKindFromReaderAt sniffs the container format: ARC magic first, then
// an ARZ header whose tables fit in size.
func DetectKindFromReaderAt(ra io.ReaderAt, size int64) (Kind, error) {
	if ra == nil {
		return 0, ErrNilReader
	}

	if hdr, err := readArcHeader(ra, size); err == nil {
		if _, err := codecForArchive(hdr.Version); err == nil {
			return KindArchive, nil
		}
	}

	if size >= arzHeaderSize {
		var b [arzHeaderSize]byte
		if _, err := ra.ReadAt(b[:], 0); err != nil && err != io.EOF {
			return 0, fmt.Errorf("read header: %w", err)
		}

		if isDatabaseHeader(b[:], size) {
			return KindDatabase, nil
		}
	}

	return 0, ErrUnknownFormat
}

// isDatabaseHeader reports whether b is an ARZ header with tables inside size.
func isDatabaseHeader(b []byte, size int64) bool {
	if binary.LittleEndian.Uint16(b[0:2]) != arzTag || binary.LittleEndian.Uint16(b[2:4]) != arzVersion {
		return false
	}

	rtStart := uint64(binary.LittleEndian.Uint32(b[4:8]))
	rtEnd := rtStart + uint64(binary.LittleEndian.Uint32(b[8:12]))
	stStart := uint64(binary.LittleEndian.Uint32(b[16:20]))
	stEnd := stStart + uint64(binary.LittleEndian.Uint32(b[20:24]))
	limit := uint64(size) //nolint:gosec // size is a non-negative file length

	return rtStart >= arzHeaderSize && stStart >= arzHeaderSize && rtEnd <= limit && stEnd <= limit
}

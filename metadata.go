// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"fmt"
	"io"
	"os"
)

// ListArchiveEntries opens an ARC and returns entry metadata without payload reads.
func ListArchiveEntries(path string) ([]ArchiveEntry, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return ListArchiveEntriesFromReaderAt(f, size)
}

// ListArchiveEntriesFromReaderAt parses ARC entry metadata from a random-access source.
func ListArchiveEntriesFromReaderAt(ra io.ReaderAt, size int64) ([]ArchiveEntry, error) {
	a, err := NewArchiveFromReaderAt(ra, size, ArchiveOptions{})
	if err != nil {
		return nil, err
	}

	return a.Entries(), nil
}

// ListRecords opens an ARZ and returns record metadata without decoding blocks.
func ListRecords(path string) ([]RecordInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	img, err := parseDatabase(data)
	if err != nil {
		return nil, err
	}

	out := make([]RecordInfo, img.index.Len())
	for i := range out {
		out[i] = img.records[img.index.Entry(i).Slot].info()
	}

	return out, nil
}

// openFileWithSize opens a file and returns a handle plus current size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat: %w", err)
	}

	return f, fi.Size(), nil
}

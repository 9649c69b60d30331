// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectKind(t *testing.T) {
	t.Parallel()

	arcPath := writeTestArchive(t, testArchiveInputs()[:1], ArchiveWriteOptions{})
	arzPath := writeTestDatabase(t, buildTestDatabase(t, testRecords()))
	junkPath := filepath.Join(t.TempDir(), "junk.bin")
	if err := os.WriteFile(junkPath, bytes.Repeat([]byte{0xAB}, 64), 0o600); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	testCases := []struct {
		err  error
		name string
		path string
		want Kind
	}{
		{name: "archive", path: arcPath, want: KindArchive},
		{name: "database", path: arzPath, want: KindDatabase},
		{name: "unknown", path: junkPath, err: ErrUnknownFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := DetectKind(tc.path)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("DetectKind error=%v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectKind: %v", err)
			}
			if got != tc.want {
				t.Fatalf("DetectKind=%s, want %s", got, tc.want)
			}
		})
	}
}

func TestDetectKindFromReaderAt(t *testing.T) {
	t.Parallel()

	if _, err := DetectKindFromReaderAt(nil, 0); !errors.Is(err, ErrNilReader) {
		t.Fatalf("DetectKindFromReaderAt(nil) error=%v, want ErrNilReader", err)
	}

	data := buildTestDatabase(t, testRecords())
	kind, err := DetectKindFromReaderAt(bytes.NewReader(data), int64(len(data)))
	if err != nil || kind != KindDatabase {
		t.Fatalf("DetectKindFromReaderAt(database)=%s,%v", kind, err)
	}

	// Tables past the end of the input are not a database.
	short := data[:len(data)/2]
	if _, err := DetectKindFromReaderAt(bytes.NewReader(short), int64(len(short))); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("DetectKindFromReaderAt(truncated) error=%v, want ErrUnknownFormat", err)
	}

	if Kind(0).String() != "unknown" || KindArchive.String() != "archive" {
		t.Fatal("Kind.String mismatch")
	}
}

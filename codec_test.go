// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"compress/zlib"
	"errors"
	"testing"
)

func TestBlockCodecRoundTrip(t *testing.T) {
	t.Parallel()

	src := bytes.Repeat([]byte("records\\items\\sword01.dbr;"), 200)

	for _, codec := range []blockCodec{codecZlib, codecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			t.Parallel()

			stored, err := compressBlock(codec, src, 0)
			if err != nil {
				t.Fatalf("compressBlock: %v", err)
			}
			if stored == nil || len(stored) >= len(src) {
				t.Fatalf("compressBlock stored %d bytes for %d input", len(stored), len(src))
			}

			got, err := decompressBlock(codec, stored, uint32(len(src)))
			if err != nil {
				t.Fatalf("decompressBlock: %v", err)
			}
			if !bytes.Equal(got, src) {
				t.Fatal("round trip mismatch")
			}

			if _, err := decompressBlock(codec, stored, uint32(len(src)+1)); err == nil {
				t.Fatal("size mismatch must fail")
			}
		})
	}
}

func TestCompressZlibLevels(t *testing.T) {
	t.Parallel()

	src := bytes.Repeat([]byte{1, 2, 3, 4}, 1024)
	fast, err := compressZlib(src, zlib.BestSpeed)
	if err != nil {
		t.Fatalf("compressZlib(fast): %v", err)
	}

	got, err := decompressZlib(fast, 0)
	if err != nil {
		t.Fatalf("decompressZlib(unknown size): %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatal("round trip mismatch")
	}

	if _, err := compressZlib(src, 42); err == nil {
		t.Fatal("invalid level must fail")
	}
}

func TestDecompressBlockErrors(t *testing.T) {
	t.Parallel()

	if _, err := decompressBlock(codecZlib, []byte("not zlib"), 8); err == nil {
		t.Fatal("garbage zlib must fail")
	}
	if _, err := decompressBlock(codecLZ4, []byte{0x10, 'a'}, 0); err == nil {
		t.Fatal("lz4 with unknown size must fail")
	}
	if _, err := decompressBlock(blockCodec(9), nil, 1); err == nil {
		t.Fatal("unknown codec must fail")
	}
}

func TestCodecForArchive(t *testing.T) {
	t.Parallel()

	if c, err := codecForArchive(ArchiveVersionTQ); err != nil || c != codecZlib {
		t.Fatalf("codecForArchive(TQ)=%v,%v", c, err)
	}
	if c, err := codecForArchive(ArchiveVersionGD); err != nil || c != codecLZ4 {
		t.Fatalf("codecForArchive(GD)=%v,%v", c, err)
	}
	if _, err := codecForArchive(2); !errors.Is(err, ErrInvalidHeader) {
		t.Fatalf("codecForArchive(2) error=%v, want ErrInvalidHeader", err)
	}
	if codecForLayout(LayoutGD) != codecLZ4 || codecForLayout(LayoutTQ) != codecZlib {
		t.Fatal("codecForLayout mismatch")
	}
}

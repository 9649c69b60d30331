// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/pierrec/lz4"
)

// blockCodec identifies the compression used by a container variant.
type blockCodec uint8

const (
	// codecZlib is used by Titan Quest archives and databases.
	codecZlib blockCodec = iota + 1
	// codecLZ4 is used by Grim Dawn archives and databases (raw lz4 blocks).
	codecLZ4
)

// String returns codec name.
func (c blockCodec) String() string {
	switch c {
	case codecZlib:
		return "zlib"
	case codecLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// decompressBlock inflates one stored block. size is the expected output
// length; zero means unknown, which lz4 blocks cannot handle.
func decompressBlock(codec blockCodec, src []byte, size uint32) ([]byte, error) {
	switch codec {
	case codecZlib:
		return decompressZlib(src, size)
	case codecLZ4:
		if size == 0 {
			return nil, fmt.Errorf("lz4: unknown decompressed size")
		}

		dst := make([]byte, size)
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		if n != int(size) {
			return nil, fmt.Errorf("lz4: got %d bytes, want %d", n, size)
		}

		return dst, nil
	default:
		return nil, fmt.Errorf("unsupported block codec %d", codec)
	}
}

// decompressZlib inflates a zlib stream, verifying size when known.
func decompressZlib(src []byte, size uint32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer func() { _ = r.Close() }()

	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("zlib inflate: %w", err)
	}
	if size > 0 && buf.Len() != int(size) {
		return nil, fmt.Errorf("zlib: got %d bytes, want %d", buf.Len(), size)
	}

	return buf.Bytes(), nil
}

// compressBlock deflates one block. For lz4 a nil result with nil error
// means the data is incompressible and must be stored raw.
func compressBlock(codec blockCodec, src []byte, level int) ([]byte, error) {
	switch codec {
	case codecZlib:
		return compressZlib(src, level)
	case codecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(src)))
		var hashTable [1 << 16]int
		n, err := lz4.CompressBlock(src, dst, hashTable[:])
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 {
			return nil, nil
		}

		return dst[:n], nil
	default:
		return nil, fmt.Errorf("unsupported block codec %d", codec)
	}
}

// compressZlib deflates src into a zlib stream.
func compressZlib(src []byte, level int) ([]byte, error) {
	if level == 0 {
		level = zlib.BestCompression
	}

	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("create zlib writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}

	return buf.Bytes(), nil
}

// codecForArchive maps an ARC version to its part codec.
func codecForArchive(version uint32) (blockCodec, error) {
	switch version {
	case ArchiveVersionTQ:
		return codecZlib, nil
	case ArchiveVersionGD:
		return codecLZ4, nil
	default:
		return 0, fmt.Errorf("%w: unsupported archive version %d", ErrInvalidHeader, version)
	}
}

// codecForLayout maps an ARZ layout to its block codec.
func codecForLayout(layout DatabaseLayout) blockCodec {
	if layout == LayoutGD {
		return codecLZ4
	}

	return codecZlib
}

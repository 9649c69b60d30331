// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/adler32"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

// archiveWriteBufferSize is the buffered writer size used by WriteArchive.
const archiveWriteBufferSize = 256 * 1024

// archiveWriterPool reuses bufio writers between WriteArchive calls.
var archiveWriterPool = sync.Pool{
	New: func() any {
		return bufio.NewWriterSize(io.Discard, archiveWriteBufferSize)
	},
}

// ArchiveWriteResult summarizes one archive build.
type ArchiveWriteResult struct {
	// Entries is the written file table in native order.
	Entries []ArchiveEntry `json:"entries" yaml:"entries"`
	// Parts is number of parts written.
	Parts int `json:"parts" yaml:"parts"`
	// RawBytes is total payload size before compression.
	RawBytes int64 `json:"raw_bytes" yaml:"raw_bytes"`
	// StoredBytes is total stored payload size.
	StoredBytes int64 `json:"stored_bytes" yaml:"stored_bytes"`
	// CompressedEntries is number of entries with at least one compressed part.
	CompressedEntries int `json:"compressed_entries" yaml:"compressed_entries"`
	// Duration is total build time.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// archiveBuild accumulates tables while payloads are streamed.
type archiveBuild struct {
	w        *bufio.Writer
	matcher  *pathMatcher
	names    []byte
	parts    []arcPart
	// nameLocs holds name table length and offset per entry.
	nameLocs [][2]uint32
	entries  []ArchiveEntry
	opts     ArchiveWriteOptions
	offset   uint64
	codec    blockCodec
}

// WriteArchive writes an ARC archive to out. Entries keep the input order;
// keys are normalized to "/" separated form and must be unique ignoring case.
func WriteArchive(ctx context.Context, out io.WriteSeeker, inputs []ArchiveInput, opts ArchiveWriteOptions) (*ArchiveWriteResult, error) {
	startedAt := time.Now()

	if len(inputs) == 0 {
		return nil, ErrEmptyInputs
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	codec, err := codecForArchive(opts.Version)
	if err != nil {
		return nil, err
	}

	keys, err := prepareArchiveKeys(inputs)
	if err != nil {
		return nil, err
	}

	matcher, err := newPathMatcher(opts.Compress, opts.CompressMatcherOptions)
	if err != nil {
		return nil, fmt.Errorf("compile compress rules: %w", err)
	}

	w := archiveWriterPool.Get().(*bufio.Writer) //nolint:forcetypeassert // pool contains only *bufio.Writer
	w.Reset(out)
	defer func() {
		w.Reset(io.Discard)
		archiveWriterPool.Put(w)
	}()

	b := &archiveBuild{
		w:       w,
		matcher: matcher,
		opts:    opts,
		codec:   codec,
		offset:  arcHeaderSize,
		entries: make([]ArchiveEntry, 0, len(inputs)),
	}

	var placeholder [arcHeaderSize]byte
	if _, err := w.Write(placeholder[:]); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	res := &ArchiveWriteResult{}
	for i := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		payload, err := readArchiveInput(inputs[i], keys[i])
		if err != nil {
			return nil, err
		}

		entry, compressed, err := b.writeEntry(keys[i], payload, inputs[i].ModTime)
		if err != nil {
			return nil, err
		}

		res.RawBytes += int64(entry.Size)
		res.StoredBytes += int64(entry.StoredSize)
		if compressed {
			res.CompressedEntries++
		}
		if opts.OnEntryDone != nil {
			opts.OnEntryDone(entry)
		}
	}

	tocOffset := b.offset
	if err := b.writeTOC(); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("flush archive: %w", err)
	}

	header := make([]byte, 0, arcHeaderSize)
	for _, v := range []uint64{
		arcMagic,
		uint64(opts.Version),
		uint64(len(b.entries)),
		uint64(len(b.parts)),
		uint64(len(b.parts)) * arcPartSize,
		uint64(len(b.names)),
		tocOffset,
	} {
		if v > math.MaxUint32 {
			return nil, fmt.Errorf("%w: archive header field %d", ErrSizeOverflow, v)
		}

		header = binary.LittleEndian.AppendUint32(header, uint32(v))
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to header: %w", err)
	}
	if _, err := out.Write(header); err != nil {
		return nil, fmt.Errorf("patch header: %w", err)
	}
	if _, err := out.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("seek to end: %w", err)
	}

	res.Entries = b.entries
	res.Parts = len(b.parts)
	res.Duration = time.Since(startedAt)
	return res, nil
}

// WriteArchiveFile writes an ARC archive to outPath.
func WriteArchiveFile(ctx context.Context, outPath string, inputs []ArchiveInput, opts ArchiveWriteOptions) (*ArchiveWriteResult, error) {
	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
	}()

	res, err := WriteArchive(ctx, f, inputs, opts)
	if err != nil {
		return nil, err
	}

	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync archive file: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close archive file: %w", err)
	}
	f = nil

	return res, nil
}

// writeEntry writes one payload as a raw run or as parts and records its
// file table entry. It reports whether any part was compressed.
func (b *archiveBuild) writeEntry(key string, payload []byte, modTime time.Time) (ArchiveEntry, bool, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return ArchiveEntry{}, false, fmt.Errorf("%w: entry %s of %d bytes", ErrSizeOverflow, key, len(payload))
	}

	name, err := encodeText(key)
	if err != nil {
		return ArchiveEntry{}, false, fmt.Errorf("entry %s: %w", key, err)
	}

	entry := ArchiveEntry{
		Key:      key,
		Size:     uint32(len(payload)), //nolint:gosec // checked above
		CRC:      adler32.Checksum(payload),
		FileTime: timeToFileTime(modTime),
		Storage:  StorageStored,
	}
	if err := b.checkOffset(uint64(len(payload))); err != nil {
		return ArchiveEntry{}, false, fmt.Errorf("entry %s: %w", key, err)
	}
	entry.Offset = uint32(b.offset) //nolint:gosec // checked by checkOffset

	compressed := false
	if b.shouldCompress(key, len(payload)) {
		entry.Storage = StorageParts
		entry.FirstPart = uint32(len(b.parts)) //nolint:gosec // bounded by header check
		for start := 0; start < len(payload); start += b.opts.PartSize {
			chunk := payload[start:min(start+b.opts.PartSize, len(payload))]
			stored, err := b.storedPart(chunk)
			if err != nil {
				return ArchiveEntry{}, false, fmt.Errorf("compress %s: %w", key, err)
			}
			if len(stored) != len(chunk) {
				compressed = true
			}

			if err := b.checkOffset(uint64(len(stored))); err != nil {
				return ArchiveEntry{}, false, fmt.Errorf("entry %s: %w", key, err)
			}
			// Offsets are checked by checkOffset and part sizes are bounded by PartSize.
			//nolint:gosec
			b.parts = append(b.parts, arcPart{
				Offset:     uint32(b.offset),
				StoredSize: uint32(len(stored)),
				Size:       uint32(len(chunk)),
			})
			if err := b.write(stored); err != nil {
				return ArchiveEntry{}, false, fmt.Errorf("write entry %s: %w", key, err)
			}

			entry.StoredSize += uint32(len(stored)) //nolint:gosec // bounded by payload size
			entry.PartCount++
		}
	} else {
		if err := b.write(payload); err != nil {
			return ArchiveEntry{}, false, fmt.Errorf("write entry %s: %w", key, err)
		}

		entry.StoredSize = entry.Size
	}

	b.appendName(name)
	b.entries = append(b.entries, entry)
	return entry, compressed, nil
}

// shouldCompress reports whether key is a compression candidate.
func (b *archiveBuild) shouldCompress(key string, size int) bool {
	if size < b.opts.MinCompressSize {
		return false
	}

	return b.matcher.Match(key)
}

// storedPart compresses chunk, keeping it raw when compression does not shrink it.
func (b *archiveBuild) storedPart(chunk []byte) ([]byte, error) {
	compressed, err := compressBlock(b.codec, chunk, 0)
	if err != nil {
		return nil, err
	}
	if compressed == nil || len(compressed) >= len(chunk) {
		return chunk, nil
	}

	return compressed, nil
}

// appendName adds the entry name to the name table.
func (b *archiveBuild) appendName(name []byte) {
	//nolint:gosec // bounded by header check
	b.nameLocs = append(b.nameLocs, [2]uint32{uint32(len(name)), uint32(len(b.names))})
	b.names = append(b.names, name...)
	b.names = append(b.names, 0)
}

// checkOffset verifies that n more bytes keep offsets within uint32.
func (b *archiveBuild) checkOffset(n uint64) error {
	if b.offset+n > math.MaxUint32 {
		return fmt.Errorf("%w: archive data exceeds 4 GiB", ErrSizeOverflow)
	}

	return nil
}

// write appends p to the data area.
func (b *archiveBuild) write(p []byte) error {
	if _, err := b.w.Write(p); err != nil {
		return err
	}

	b.offset += uint64(len(p))
	return nil
}

// writeTOC writes part table, name table and file records.
func (b *archiveBuild) writeTOC() error {
	buf := make([]byte, 0, len(b.parts)*arcPartSize+len(b.names)+len(b.entries)*arcFileRecordSize)
	for _, p := range b.parts {
		buf = binary.LittleEndian.AppendUint32(buf, p.Offset)
		buf = binary.LittleEndian.AppendUint32(buf, p.StoredSize)
		buf = binary.LittleEndian.AppendUint32(buf, p.Size)
	}

	buf = append(buf, b.names...)
	for i := range b.entries {
		e := &b.entries[i]
		buf = binary.LittleEndian.AppendUint32(buf, e.Storage)
		buf = binary.LittleEndian.AppendUint32(buf, e.Offset)
		buf = binary.LittleEndian.AppendUint32(buf, e.StoredSize)
		buf = binary.LittleEndian.AppendUint32(buf, e.Size)
		buf = binary.LittleEndian.AppendUint32(buf, e.CRC)
		buf = binary.LittleEndian.AppendUint64(buf, e.FileTime)
		buf = binary.LittleEndian.AppendUint32(buf, e.PartCount)
		buf = binary.LittleEndian.AppendUint32(buf, e.FirstPart)
		buf = binary.LittleEndian.AppendUint32(buf, b.nameLocs[i][0])
		buf = binary.LittleEndian.AppendUint32(buf, b.nameLocs[i][1])
	}

	if err := b.checkOffset(uint64(len(buf))); err != nil {
		return err
	}
	if err := b.write(buf); err != nil {
		return fmt.Errorf("write table of contents: %w", err)
	}

	return nil
}

// prepareArchiveKeys normalizes input paths and rejects case-insensitive duplicates.
func prepareArchiveKeys(inputs []ArchiveInput) ([]string, error) {
	keys := make([]string, len(inputs))
	seen := make(map[string]string, len(inputs))
	for i := range inputs {
		key, err := normalizeArchiveEntryPath(inputs[i].Path)
		if err != nil {
			return nil, err
		}

		folded := strings.ToLower(key)
		if existing, ok := seen[folded]; ok {
			return nil, fmt.Errorf("%w: %q conflicts with %q", ErrDuplicateEntryPath, key, existing)
		}

		seen[folded] = key
		keys[i] = key
	}

	return keys, nil
}

// readArchiveInput returns the payload of in.
func readArchiveInput(in ArchiveInput, key string) ([]byte, error) {
	if in.Open == nil {
		return in.Data, nil
	}

	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", key, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(rc, math.MaxUint32+1)); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("read input %s: %w", key, err)
	}
	if err := rc.Close(); err != nil {
		return nil, fmt.Errorf("close input %s: %w", key, err)
	}

	return buf.Bytes(), nil
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

// DatabaseBuildOptions configures BuildDatabase.
type DatabaseBuildOptions struct {
	// ModTime is the record timestamp (zero means now).
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	// Strings seeds the string pool in this order before records are interned.
	Strings []string `json:"strings,omitempty" yaml:"strings,omitempty"`
	// CompressionLevel is the zlib level (zero means best compression).
	CompressionLevel int `json:"compression_level,omitempty" yaml:"compression_level,omitempty"`
}

// imageParts are the sections of a database image in write order.
type imageParts struct {
	// region is the data block area that follows the header.
	region      []byte
	stringTable []byte
	footer      []byte
	records     []dbRecord
}

// WriteDatabase encodes records into a Titan Quest ARZ image and writes it to w.
func WriteDatabase(w io.Writer, records []*Record, opts DatabaseBuildOptions) error {
	data, err := BuildDatabase(records, opts)
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write database: %w", err)
	}

	return nil
}

// BuildDatabase encodes records into a Titan Quest ARZ image. Record paths are
// stored in lower case with "\" separators; variable IDs that do not name
// their variable in the resulting pool are replaced by interned name IDs.
func BuildDatabase(records []*Record, opts DatabaseBuildOptions) ([]byte, error) {
	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now()
	}

	in := newPoolInterner(newStringPool(nil))
	for _, s := range opts.Strings {
		if _, err := in.intern(s); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, len(records))
	parts := imageParts{records: make([]dbRecord, 0, len(records))}
	for _, rec := range records {
		key := NormalizeRecordPath(rec.Path)
		if key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEntryPath, rec.Path)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEntryPath, key)
		}
		seen[key] = struct{}{}

		pathID, err := in.intern(strings.ToLower(key))
		if err != nil {
			return nil, err
		}

		block, err := encodeRecord(rec, in)
		if err != nil {
			return nil, err
		}

		stored, err := compressZlib(block, opts.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if uint64(len(parts.region))+uint64(len(stored)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: data region", ErrSizeOverflow)
		}

		parts.records = append(parts.records, dbRecord{
			PathID:     uint32(pathID), //nolint:gosec // IDs are non-negative
			Type:       rec.Type,
			Offset:     uint32(len(parts.region)), //nolint:gosec // checked above
			StoredSize: uint32(len(stored)),       //nolint:gosec // checked above
			FileTime:   timeToFileTime(modTime),
		})
		parts.region = append(parts.region, stored...)
	}

	table, err := appendStringBlock(nil, in.added)
	if err != nil {
		return nil, err
	}
	parts.stringTable = table

	return assembleDatabase(parts)
}

// assembleDatabase lays out header, data region, record table (Titan Quest
// layout), string table and footer.
func assembleDatabase(p imageParts) ([]byte, error) {
	tableSize := 0
	for i := range p.records {
		tableSize += arzRecordFixedTQ + len(p.records[i].Type)
	}

	total := uint64(arzHeaderSize) + uint64(len(p.region)) + uint64(tableSize) + uint64(len(p.stringTable)) + uint64(len(p.footer))
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("%w: database of %d bytes", ErrSizeOverflow, total)
	}

	out := make([]byte, arzHeaderSize, total+64)
	out = append(out, p.region...)

	rtStart := len(out)
	for i := range p.records {
		r := &p.records[i]
		typ, err := encodeText(r.Type)
		if err != nil {
			return nil, fmt.Errorf("record type: %w", err)
		}

		out = binary.LittleEndian.AppendUint32(out, r.PathID)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(typ))) //nolint:gosec // bounded by total check
		out = append(out, typ...)
		out = binary.LittleEndian.AppendUint32(out, r.Offset)
		out = binary.LittleEndian.AppendUint32(out, r.StoredSize)
		out = binary.LittleEndian.AppendUint64(out, r.FileTime)
	}
	rtSize := len(out) - rtStart

	stStart := len(out)
	out = append(out, p.stringTable...)
	out = append(out, p.footer...)
	if uint64(len(out)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: database of %d bytes", ErrSizeOverflow, len(out))
	}

	// Every field is bounded by the total size check above.
	binary.LittleEndian.PutUint16(out[0:2], arzTag)
	binary.LittleEndian.PutUint16(out[2:4], arzVersion)
	putUint32s(out[4:24], rtStart, rtSize, len(p.records), stStart, len(p.stringTable))

	return out, nil
}

// putUint32s writes values as consecutive little-endian dwords.
func putUint32s(dst []byte, values ...int) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(v)) //nolint:gosec // callers bound values
	}
}

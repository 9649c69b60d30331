// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// arcPart is one stored chunk of an ARC payload.
type arcPart struct {
	Offset     uint32
	StoredSize uint32
	Size       uint32
}

// arcHeader is the fixed ARC header.
type arcHeader struct {
	Version       uint32
	FileCount     uint32
	PartCount     uint32
	PartTableSize uint32
	NameTableSize uint32
	TOCOffset     uint32
}

// Archive provides read-only access to a parsed ARC resource archive.
type Archive struct {
	// ra is the underlying random-access reader used for payload reads.
	ra io.ReaderAt
	// file is set when Archive owns an *os.File opened via OpenArchive.
	file *os.File
	// log receives diagnostics.
	log *zerolog.Logger
	// index maps keys to file table slots.
	index *Index
	// files is the parsed file table in on-disk order, duplicates included.
	files []ArchiveEntry
	// parts is the parsed part table.
	parts []arcPart
	// header is the parsed fixed header.
	header arcHeader
	// size is total source size in bytes.
	size int64
	// mu guards closed state and close operation.
	mu sync.Mutex
	// codec is the part codec selected by version.
	codec blockCodec
	// closed reports whether Close was already called.
	closed bool
}

// OpenArchive opens an ARC file by path and parses its tables.
func OpenArchive(path string) (*Archive, error) {
	return OpenArchiveWithOptions(path, ArchiveOptions{})
}

// OpenArchiveWithOptions opens an ARC file by path using explicit options.
func OpenArchiveWithOptions(path string, opts ArchiveOptions) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	a, err := NewArchiveFromReaderAt(f, fi.Size(), opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	a.file = f
	return a, nil
}

// NewArchiveFromReaderAt parses an ARC from an existing ReaderAt and known size.
func NewArchiveFromReaderAt(ra io.ReaderAt, size int64, opts ArchiveOptions) (*Archive, error) {
	if ra == nil {
		return nil, ErrNilReader
	}

	a := &Archive{ra: ra, size: size, log: loggerOrNop(opts.Logger)}
	if err := a.parse(); err != nil {
		return nil, err
	}

	if dup := a.index.Duplicates(); dup > 0 {
		a.log.Warn().Int("duplicates", dup).Msg("archive has duplicate keys; first occurrence kept")
	}
	a.log.Debug().
		Uint32("version", a.header.Version).
		Int("entries", a.index.Len()).
		Int("parts", len(a.parts)).
		Msg("archive opened")

	return a, nil
}

// Close closes the underlying file if the archive owns one.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true
	if a.file != nil {
		return a.file.Close()
	}

	return nil
}

// Version returns the archive format version.
func (a *Archive) Version() uint32 {
	return a.header.Version
}

// Len returns number of unique keys.
func (a *Archive) Len() int {
	return a.index.Len()
}

// Keys returns entry keys in native order.
func (a *Archive) Keys() []string {
	return a.index.Keys()
}

// Index returns the key index.
func (a *Archive) Index() *Index {
	return a.index
}

// Entries returns a copy of entry metadata in native order.
func (a *Archive) Entries() []ArchiveEntry {
	out := make([]ArchiveEntry, a.index.Len())
	for i := range out {
		out[i] = a.files[a.index.Entry(i).Slot]
	}

	return out
}

// Entry returns metadata for an exact key.
func (a *Archive) Entry(key string) (ArchiveEntry, bool) {
	ie, ok := a.index.Lookup(key)
	if !ok {
		return ArchiveEntry{}, false
	}

	return a.files[ie.Slot], true
}

// Prefix returns entries at or below directory dir in native order.
func (a *Archive) Prefix(dir string) []ArchiveEntry {
	matched := a.index.Prefix(dir)
	out := make([]ArchiveEntry, len(matched))
	for i := range matched {
		out[i] = a.files[matched[i].Slot]
	}

	return out
}

// checkOpen returns ErrClosed after Close.
func (a *Archive) checkOpen() error {
	if a == nil || a.ra == nil {
		return ErrNilReader
	}

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}

	return nil
}

// parse reads and validates header, part table, name table and file table.
func (a *Archive) parse() error {
	hdr, err := readArcHeader(a.ra, a.size)
	if err != nil {
		return err
	}
	a.header = hdr

	a.codec, err = codecForArchive(hdr.Version)
	if err != nil {
		return err
	}

	partBytes := uint64(hdr.PartCount) * arcPartSize
	fileBytes := uint64(hdr.FileCount) * arcFileRecordSize
	if uint64(hdr.PartTableSize) < partBytes {
		return fmt.Errorf("%w: part table size %d < %d parts", ErrInvalidHeader, hdr.PartTableSize, hdr.PartCount)
	}

	tocEnd := uint64(hdr.TOCOffset) + uint64(hdr.PartTableSize) + uint64(hdr.NameTableSize) + fileBytes
	if tocEnd > uint64(a.size) { //nolint:gosec // size is non-negative file length
		return fmt.Errorf("%w: table of contents ends at %d, file is %d bytes", ErrTruncated, tocEnd, a.size)
	}

	toc := make([]byte, tocEnd-uint64(hdr.TOCOffset))
	if _, err := a.ra.ReadAt(toc, int64(hdr.TOCOffset)); err != nil && err != io.EOF {
		return fmt.Errorf("read table of contents: %w", err)
	}

	a.parts = make([]arcPart, hdr.PartCount)
	for i := range a.parts {
		b := toc[i*arcPartSize:]
		p := arcPart{
			Offset:     binary.LittleEndian.Uint32(b[0:4]),
			StoredSize: binary.LittleEndian.Uint32(b[4:8]),
			Size:       binary.LittleEndian.Uint32(b[8:12]),
		}
		if uint64(p.Offset)+uint64(p.StoredSize) > uint64(a.size) { //nolint:gosec // size is non-negative
			return fmt.Errorf("%w: part %d ends past end of file", ErrTruncated, i)
		}

		a.parts[i] = p
	}

	names := toc[hdr.PartTableSize : hdr.PartTableSize+hdr.NameTableSize]
	records := toc[hdr.PartTableSize+hdr.NameTableSize:]
	a.files = make([]ArchiveEntry, hdr.FileCount)
	entries := make([]IndexEntry, 0, hdr.FileCount)
	for i := range a.files {
		e, err := a.parseFileRecord(records[i*arcFileRecordSize:(i+1)*arcFileRecordSize], names)
		if err != nil {
			return fmt.Errorf("file record %d: %w", i, err)
		}

		a.files[i] = e
		entries = append(entries, IndexEntry{
			Key:        e.Key,
			Offset:     e.Offset,
			StoredSize: e.StoredSize,
			Size:       e.Size,
			Slot:       i,
			Compressed: e.IsCompressed(),
		})
	}

	a.index = newIndex(entries)
	return nil
}

// parseFileRecord decodes one 44-byte file record and validates its payload bounds.
func (a *Archive) parseFileRecord(b []byte, names []byte) (ArchiveEntry, error) {
	e := ArchiveEntry{
		Storage:    binary.LittleEndian.Uint32(b[0:4]),
		Offset:     binary.LittleEndian.Uint32(b[4:8]),
		StoredSize: binary.LittleEndian.Uint32(b[8:12]),
		Size:       binary.LittleEndian.Uint32(b[12:16]),
		CRC:        binary.LittleEndian.Uint32(b[16:20]),
		FileTime:   binary.LittleEndian.Uint64(b[20:28]),
		PartCount:  binary.LittleEndian.Uint32(b[28:32]),
		FirstPart:  binary.LittleEndian.Uint32(b[32:36]),
	}
	nameLen := binary.LittleEndian.Uint32(b[36:40])
	nameOff := binary.LittleEndian.Uint32(b[40:44])

	if uint64(nameOff)+uint64(nameLen) > uint64(len(names)) {
		return e, fmt.Errorf("%w: name outside name table", ErrTruncated)
	}

	name := names[nameOff : nameOff+nameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	key, err := decodeText(name)
	if err != nil {
		return e, fmt.Errorf("%w: name: %w", ErrInvalidHeader, err)
	}
	e.Key = key

	if e.Storage == StorageStored {
		if uint64(e.Offset)+uint64(e.Size) > uint64(a.size) { //nolint:gosec // size is non-negative
			return e, fmt.Errorf("%w: %s payload ends past end of file", ErrTruncated, e.Key)
		}

		return e, nil
	}

	if uint64(e.FirstPart)+uint64(e.PartCount) > uint64(len(a.parts)) {
		return e, fmt.Errorf("%w: %s references parts outside part table", ErrTruncated, e.Key)
	}

	var total uint64
	for _, p := range a.parts[e.FirstPart : e.FirstPart+e.PartCount] {
		total += uint64(p.Size)
	}
	if total != uint64(e.Size) {
		return e, fmt.Errorf("%w: %s parts hold %d bytes, record says %d", ErrInvalidHeader, e.Key, total, e.Size)
	}

	return e, nil
}

// readArcHeader reads and validates the fixed ARC header.
func readArcHeader(ra io.ReaderAt, size int64) (arcHeader, error) {
	if size < arcHeaderSize {
		return arcHeader{}, fmt.Errorf("%w: short header", ErrInvalidHeader)
	}

	var b [arcHeaderSize]byte
	if _, err := ra.ReadAt(b[:], 0); err != nil {
		if err == io.EOF {
			return arcHeader{}, fmt.Errorf("%w: short header", ErrInvalidHeader)
		}

		return arcHeader{}, fmt.Errorf("read header: %w", err)
	}

	if binary.LittleEndian.Uint32(b[0:4]) != arcMagic {
		return arcHeader{}, fmt.Errorf("%w: bad archive magic", ErrInvalidHeader)
	}

	return arcHeader{
		Version:       binary.LittleEndian.Uint32(b[4:8]),
		FileCount:     binary.LittleEndian.Uint32(b[8:12]),
		PartCount:     binary.LittleEndian.Uint32(b[12:16]),
		PartTableSize: binary.LittleEndian.Uint32(b[16:20]),
		NameTableSize: binary.LittleEndian.Uint32(b[20:24]),
		TOCOffset:     binary.LittleEndian.Uint32(b[24:28]),
	}, nil
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

// arzHeader is the fixed ARZ header.
type arzHeader struct {
	RecordTableStart uint32
	RecordTableSize  uint32
	RecordCount      uint32
	StringTableStart uint32
	StringTableSize  uint32
}

// dbRecord is one record table entry.
type dbRecord struct {
	Path       string
	RawPath    string
	Type       string
	PathID     uint32
	Offset     uint32
	StoredSize uint32
	Size       uint32
	FileTime   uint64
}

// info converts a table entry to public metadata.
func (r *dbRecord) info() RecordInfo {
	return RecordInfo{
		Path:       r.Path,
		RawPath:    r.RawPath,
		Type:       r.Type,
		PathID:     r.PathID,
		Offset:     r.Offset,
		StoredSize: r.StoredSize,
		Size:       r.Size,
		FileTime:   r.FileTime,
	}
}

// dbImage is one immutable parsed state of a database file.
type dbImage struct {
	index       *Index
	pool        *StringPool
	data        []byte
	stringTable []byte
	footer      []byte
	records     []dbRecord
	header      arzHeader
	dataEnd     uint32
	layout      DatabaseLayout
}

// Database provides record access and write-back for an ARZ database.
type Database struct {
	// img is the current state; commits replace it as a whole.
	img *dbImage
	// pristine is the open-time state kept for Restore (nil with SnapshotOff).
	pristine *dbImage
	// saved holds keys overwritten in this session.
	saved map[string]struct{}
	log   *zerolog.Logger
	store SnapshotStore
	// path is the backing file; empty for in-memory databases.
	path      string
	container string
	opts      DatabaseOptions
	mu        sync.RWMutex
	closed    bool
}

// StringMatch is one string pool search hit.
type StringMatch struct {
	Value string `json:"value" yaml:"value"`
	ID    int32  `json:"id" yaml:"id"`
}

// OpenDatabase opens an ARZ file by path.
func OpenDatabase(path string) (*Database, error) {
	return OpenDatabaseWithOptions(path, DatabaseOptions{})
}

// OpenDatabaseWithOptions opens an ARZ file by path using explicit options.
// The file is read into memory; Save persists changes back to path.
func OpenDatabaseWithOptions(path string, opts DatabaseOptions) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.Container == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}

		opts.Container = abs
	}

	d, err := newDatabase(data, opts)
	if err != nil {
		return nil, err
	}

	d.path = path
	return d, nil
}

// NewDatabaseFromBytes parses an ARZ image held in memory. Save keeps changes
// in memory; use WriteTo to persist them.
func NewDatabaseFromBytes(data []byte, opts DatabaseOptions) (*Database, error) {
	if opts.Container == "" {
		opts.Container = "memory"
	}

	return newDatabase(bytes.Clone(data), opts)
}

// newDatabase parses data, which the database takes ownership of.
func newDatabase(data []byte, opts DatabaseOptions) (*Database, error) {
	opts.applyDefaults()

	img, err := parseDatabase(data)
	if err != nil {
		return nil, err
	}

	d := &Database{
		img:       img,
		saved:     make(map[string]struct{}),
		log:       loggerOrNop(opts.Logger),
		store:     opts.Store,
		container: opts.Container,
		opts:      opts,
	}
	if opts.Snapshots == SnapshotMemory {
		d.pristine = img
	}

	if dup := img.index.Duplicates(); dup > 0 {
		d.log.Warn().Int("duplicates", dup).Msg("database has duplicate record paths; first occurrence kept")
	}
	d.log.Debug().
		Str("layout", img.layout.String()).
		Int("records", img.index.Len()).
		Int("strings", img.pool.Len()).
		Msg("database opened")

	return d, nil
}

// Close releases the database image. Further calls fail with ErrClosed.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	d.img = nil
	d.pristine = nil
	return nil
}

// snapshot returns the current image under the read lock.
func (d *Database) snapshot() (*dbImage, error) {
	if d == nil {
		return nil, ErrNilReader
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, ErrClosed
	}

	return d.img, nil
}

// Layout returns the detected record table layout.
func (d *Database) Layout() DatabaseLayout {
	img, err := d.snapshot()
	if err != nil {
		return 0
	}

	return img.layout
}

// Len returns number of unique record paths.
func (d *Database) Len() int {
	img, err := d.snapshot()
	if err != nil {
		return 0
	}

	return img.index.Len()
}

// Keys returns normalized record paths in native order.
func (d *Database) Keys() []string {
	img, err := d.snapshot()
	if err != nil {
		return nil
	}

	return img.index.Keys()
}

// Records returns record metadata in native order.
func (d *Database) Records() []RecordInfo {
	img, err := d.snapshot()
	if err != nil {
		return nil
	}

	out := make([]RecordInfo, img.index.Len())
	for i := range out {
		out[i] = img.records[img.index.Entry(i).Slot].info()
	}

	return out
}

// Record returns metadata for one record path.
func (d *Database) Record(path string) (RecordInfo, bool) {
	img, err := d.snapshot()
	if err != nil {
		return RecordInfo{}, false
	}

	ie, ok := img.index.Lookup(NormalizeRecordPath(path))
	if !ok {
		return RecordInfo{}, false
	}

	return img.records[ie.Slot].info(), true
}

// Prefix returns metadata of records at or below directory dir in native order.
func (d *Database) Prefix(dir string) []RecordInfo {
	img, err := d.snapshot()
	if err != nil {
		return nil
	}

	matched := img.index.Prefix(dir)
	out := make([]RecordInfo, len(matched))
	for i := range matched {
		out[i] = img.records[matched[i].Slot].info()
	}

	return out
}

// StringPool returns the current string pool. The pool is immutable; saves
// that add strings publish a new pool.
func (d *Database) StringPool() *StringPool {
	img, err := d.snapshot()
	if err != nil {
		return nil
	}

	return img.pool
}

// SearchStrings returns pool strings containing substr (case-sensitive) in ID order.
// limit <= 0 returns all matches.
func (d *Database) SearchStrings(substr string, limit int) []StringMatch {
	p := d.StringPool()
	ids := p.Search(substr, limit)
	out := make([]StringMatch, len(ids))
	for i, id := range ids {
		s, _ := p.Get(id)
		out[i] = StringMatch{ID: id, Value: s}
	}

	return out
}

// GetRecord decodes the record at path (normalized before lookup).
// The result is a fresh copy owned by the caller.
func (d *Database) GetRecord(path string) (*Record, error) {
	img, err := d.snapshot()
	if err != nil {
		return nil, err
	}

	key := NormalizeRecordPath(path)
	ie, ok := img.index.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}

	return img.decodeSlot(ie.Slot)
}

// GetItem is GetRecord for reference resolution: it returns nil instead of
// an error for absent or undecodable records.
func (d *Database) GetItem(path string) *Record {
	rec, err := d.GetRecord(path)
	if err != nil {
		return nil
	}

	return rec
}

// RawBlock returns a copy of the decompressed block of the record at path.
func (d *Database) RawBlock(path string) ([]byte, error) {
	img, err := d.snapshot()
	if err != nil {
		return nil, err
	}

	key := NormalizeRecordPath(path)
	ie, ok := img.index.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}

	return img.readBlock(ie.Slot)
}

// Check decodes every record with up to workers goroutines (zero means
// GOMAXPROCS) and returns one failure per undecodable record in native order.
func (d *Database) Check(ctx context.Context, workers int) ([]EntryFailure, error) {
	img, err := d.snapshot()
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	var failures []orderedFailure
	p := pool.New().WithMaxGoroutines(max(workers, 1))
	for i := range img.index.Len() {
		if ctx.Err() != nil {
			break
		}

		p.Go(func() {
			ie := img.index.Entry(i)
			if _, err := img.decodeSlot(ie.Slot); err != nil {
				mu.Lock()
				failures = append(failures, orderedFailure{order: i, EntryFailure: EntryFailure{Key: ie.Key, Err: err}})
				mu.Unlock()
			}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(failures, func(a, b orderedFailure) int { return a.order - b.order })
	out := make([]EntryFailure, len(failures))
	for i := range failures {
		out[i] = failures[i].EntryFailure
	}

	return out, nil
}

// WriteTo writes the current database image to w.
func (d *Database) WriteTo(w io.Writer) (int64, error) {
	img, err := d.snapshot()
	if err != nil {
		return 0, err
	}

	n, err := w.Write(img.data)
	return int64(n), err
}

// Extract writes every selected record as variable text to dstDir. Output
// files are named after the normalized record path.
func (d *Database) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	img, err := d.snapshot()
	if err != nil {
		return err
	}

	keys := img.index.Keys()
	return extractKeys(ctx, dstDir, keys, opts, func(key string) int64 {
		ie, _ := img.index.Lookup(key)
		return int64(ie.Size)
	}, func(key string) (io.ReadCloser, error) {
		ie, _ := img.index.Lookup(key)
		rec, err := img.decodeSlot(ie.Slot)
		if err != nil {
			return nil, err
		}

		return io.NopCloser(bytes.NewReader([]byte(rec.String()))), nil
	})
}

// storedBlock returns the stored bytes of slot, bounded by the data region.
func (img *dbImage) storedBlock(slot int) ([]byte, error) {
	r := &img.records[slot]
	start := uint64(arzHeaderSize) + uint64(r.Offset)
	end := start + uint64(r.StoredSize)
	if end > uint64(img.dataEnd) {
		return nil, &MalformedError{
			Path:   r.Path,
			Reason: fmt.Sprintf("stored block [%d,%d) outside data region", start, end),
		}
	}

	return img.data[start:end], nil
}

// readBlock returns the decompressed block of slot.
func (img *dbImage) readBlock(slot int) ([]byte, error) {
	stored, err := img.storedBlock(slot)
	if err != nil {
		return nil, err
	}

	r := &img.records[slot]
	block, err := decompressBlock(codecForLayout(img.layout), stored, r.Size)
	if err != nil {
		return nil, &MalformedError{Path: r.Path, Reason: err.Error()}
	}

	return block, nil
}

// decodeSlot decodes the record stored in slot.
func (img *dbImage) decodeSlot(slot int) (*Record, error) {
	block, err := img.readBlock(slot)
	if err != nil {
		return nil, err
	}

	r := &img.records[slot]
	return decodeRecord(r.Path, r.Type, block, img.pool.Get)
}

// snapshotOf returns the stored form of slot.
func (img *dbImage) snapshotOf(slot int) (RecordSnapshot, error) {
	stored, err := img.storedBlock(slot)
	if err != nil {
		return RecordSnapshot{}, err
	}

	r := &img.records[slot]
	return RecordSnapshot{
		Type:     r.Type,
		Block:    bytes.Clone(stored),
		Size:     r.Size,
		FileTime: r.FileTime,
	}, nil
}

// parseDatabase parses a whole ARZ image.
func parseDatabase(data []byte) (*dbImage, error) {
	if len(data) < arzHeaderSize {
		return nil, fmt.Errorf("%w: short header", ErrInvalidHeader)
	}

	if tag := binary.LittleEndian.Uint16(data[0:2]); tag != arzTag {
		return nil, fmt.Errorf("%w: bad database tag %d", ErrInvalidHeader, tag)
	}
	if ver := binary.LittleEndian.Uint16(data[2:4]); ver != arzVersion {
		return nil, fmt.Errorf("%w: unsupported database version %d", ErrInvalidHeader, ver)
	}

	hdr := arzHeader{
		RecordTableStart: binary.LittleEndian.Uint32(data[4:8]),
		RecordTableSize:  binary.LittleEndian.Uint32(data[8:12]),
		RecordCount:      binary.LittleEndian.Uint32(data[12:16]),
		StringTableStart: binary.LittleEndian.Uint32(data[16:20]),
		StringTableSize:  binary.LittleEndian.Uint32(data[20:24]),
	}

	size := uint64(len(data))
	rtEnd := uint64(hdr.RecordTableStart) + uint64(hdr.RecordTableSize)
	stEnd := uint64(hdr.StringTableStart) + uint64(hdr.StringTableSize)
	if hdr.RecordTableStart < arzHeaderSize || hdr.StringTableStart < arzHeaderSize {
		return nil, fmt.Errorf("%w: tables overlap header", ErrInvalidHeader)
	}
	if rtEnd > size {
		return nil, fmt.Errorf("%w: record table ends at %d, file is %d bytes", ErrTruncated, rtEnd, size)
	}
	if stEnd > size {
		return nil, fmt.Errorf("%w: string table ends at %d, file is %d bytes", ErrTruncated, stEnd, size)
	}

	stringTable := data[hdr.StringTableStart:stEnd]
	strs, err := decodeStringTable(stringTable)
	if err != nil {
		return nil, err
	}

	img := &dbImage{
		data:        data,
		header:      hdr,
		pool:        newStringPool(strs),
		stringTable: stringTable,
		footer:      data[max(rtEnd, stEnd):],
		dataEnd:     min(hdr.RecordTableStart, hdr.StringTableStart),
	}

	table := data[hdr.RecordTableStart:rtEnd]
	var ok bool
	if img.records, ok = parseRecordTable(table, hdr.RecordCount, false); ok {
		img.layout = LayoutTQ
	} else if img.records, ok = parseRecordTable(table, hdr.RecordCount, true); ok {
		img.layout = LayoutGD
	} else {
		return nil, fmt.Errorf("%w: record table of %d bytes does not hold %d records", ErrInvalidHeader, hdr.RecordTableSize, hdr.RecordCount)
	}

	entries := make([]IndexEntry, len(img.records))
	for i := range img.records {
		r := &img.records[i]
		raw, ok := img.pool.Get(int32(r.PathID)) //nolint:gosec // out of range IDs fail the lookup
		if !ok {
			return nil, fmt.Errorf("%w: record %d path id %d outside string pool", ErrInvalidHeader, i, r.PathID)
		}

		r.RawPath = raw
		r.Path = NormalizeRecordPath(raw)
		entries[i] = IndexEntry{
			Key:        r.Path,
			Offset:     r.Offset,
			StoredSize: r.StoredSize,
			Size:       r.Size,
			Slot:       i,
			Compressed: true,
		}
	}

	img.index = newIndex(entries)
	return img, nil
}

// parseRecordTable parses count entries and reports whether they consume the table exactly.
func parseRecordTable(table []byte, count uint32, gd bool) ([]dbRecord, bool) {
	fixed := arzRecordFixedTQ
	if gd {
		fixed = arzRecordFixedGD
	}

	records := make([]dbRecord, 0, min(int(count), len(table)/fixed+1))
	off := 0
	for range count {
		if len(table)-off < fixed {
			return nil, false
		}

		var r dbRecord
		r.PathID = binary.LittleEndian.Uint32(table[off:])
		typeLen := binary.LittleEndian.Uint32(table[off+4:])
		off += 8
		if uint64(typeLen) > uint64(len(table)-off-(fixed-8)) {
			return nil, false
		}

		typ, err := decodeText(table[off : off+int(typeLen)])
		if err != nil {
			return nil, false
		}
		r.Type = typ
		off += int(typeLen)

		r.Offset = binary.LittleEndian.Uint32(table[off:])
		r.StoredSize = binary.LittleEndian.Uint32(table[off+4:])
		off += 8
		if gd {
			r.Size = binary.LittleEndian.Uint32(table[off:])
			off += 4
		}
		r.FileTime = binary.LittleEndian.Uint64(table[off:])
		off += 8

		records = append(records, r)
	}

	return records, off == len(table)
}

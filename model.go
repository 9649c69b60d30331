// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/woozymasta/pathrules"
)

// ARC binary layout.
const (
	arcMagic          = 0x00435241 // "ARC\0" little-endian
	arcHeaderSize     = 28         // magic, version, 5 table fields
	arcPartSize       = 12         // offset, stored size, size
	arcFileRecordSize = 44         // fixed file record at the end of TOC
)

// ARZ binary layout.
const (
	arzTag        = 2
	arzVersion    = 3
	arzHeaderSize = 24
	// arzRecordFixedTQ is record table entry size without the type string.
	arzRecordFixedTQ = 24
	// arzRecordFixedGD adds the decompressed size field.
	arzRecordFixedGD = 28
	// variableHeaderSize is type:u16 count:u16 nameID:u32.
	variableHeaderSize = 8
)

// ARC format versions.
const (
	// ArchiveVersionTQ is the Titan Quest archive version with zlib parts.
	ArchiveVersionTQ uint32 = 1
	// ArchiveVersionGD is the Grim Dawn archive version with lz4 parts.
	ArchiveVersionGD uint32 = 3
)

// ARC file record storage types.
const (
	// StorageStored marks a payload kept raw at its offset.
	StorageStored uint32 = 1
	// StorageParts marks a payload split into (possibly compressed) parts.
	StorageParts uint32 = 3
)

// Default tuning values.
const (
	DefaultPartSize        = 256 * 1024
	DefaultMinCompressSize = 64
	DefaultSearchLimit     = 100
)

// DatabaseLayout identifies the record table layout of an ARZ file.
type DatabaseLayout uint8

// Record table layouts.
const (
	// LayoutTQ is the Titan Quest layout with zlib blocks.
	LayoutTQ DatabaseLayout = iota + 1
	// LayoutGD is the Grim Dawn layout with lz4 blocks and explicit sizes.
	LayoutGD
)

// String returns layout name.
func (l DatabaseLayout) String() string {
	switch l {
	case LayoutTQ:
		return "tq"
	case LayoutGD:
		return "gd"
	default:
		return "unknown"
	}
}

// ArchiveEntry describes a single parsed ARC file record.
type ArchiveEntry struct {
	// Key is the entry path as stored in the archive name table.
	Key string `json:"key" yaml:"key"`
	// Offset is byte offset of the raw payload or of the first part.
	Offset uint32 `json:"offset" yaml:"offset"`
	// StoredSize is total stored (possibly compressed) size in bytes.
	StoredSize uint32 `json:"stored_size" yaml:"stored_size"`
	// Size is decompressed size in bytes.
	Size uint32 `json:"size" yaml:"size"`
	// Storage is the file record storage type.
	Storage uint32 `json:"storage" yaml:"storage"`
	// CRC is the stored checksum field, kept as-is.
	CRC uint32 `json:"crc,omitempty" yaml:"crc,omitempty"`
	// FileTime is the Windows FILETIME of the entry.
	FileTime uint64 `json:"file_time,omitempty" yaml:"file_time,omitempty"`
	// PartCount is number of parts backing the payload.
	PartCount uint32 `json:"part_count,omitempty" yaml:"part_count,omitempty"`
	// FirstPart is index of the first part in the part table.
	FirstPart uint32 `json:"first_part,omitempty" yaml:"first_part,omitempty"`
}

// IsCompressed reports whether any stored bytes differ from the payload size.
func (e *ArchiveEntry) IsCompressed() bool {
	return e.Storage != StorageStored && e.StoredSize != e.Size
}

// ModTime converts FileTime to time.Time (zero when unset).
func (e *ArchiveEntry) ModTime() time.Time {
	return fileTimeToTime(e.FileTime)
}

// RecordInfo describes one ARZ record table entry.
type RecordInfo struct {
	// Path is the normalized record path.
	Path string `json:"path" yaml:"path"`
	// RawPath is the record path as stored in the string pool.
	RawPath string `json:"raw_path" yaml:"raw_path"`
	// Type is the record type tag.
	Type string `json:"type" yaml:"type"`
	// PathID is the string pool ID of RawPath.
	PathID uint32 `json:"path_id" yaml:"path_id"`
	// Offset is the block offset relative to the end of the header.
	Offset uint32 `json:"offset" yaml:"offset"`
	// StoredSize is the compressed block size.
	StoredSize uint32 `json:"stored_size" yaml:"stored_size"`
	// Size is the decompressed block size (zero when not stored by the layout).
	Size uint32 `json:"size,omitempty" yaml:"size,omitempty"`
	// FileTime is the Windows FILETIME of the record.
	FileTime uint64 `json:"file_time,omitempty" yaml:"file_time,omitempty"`
}

// ModTime converts FileTime to time.Time (zero when unset).
func (r *RecordInfo) ModTime() time.Time {
	return fileTimeToTime(r.FileTime)
}

// ArchiveOptions configures archive open behavior.
type ArchiveOptions struct {
	// Logger receives debug and warning events; nil disables logging.
	Logger *zerolog.Logger `json:"-" yaml:"-"`
}

// SnapshotMode controls how pristine record bytes are retained for Restore.
type SnapshotMode string

// Snapshot retention modes.
const (
	// SnapshotMemory keeps open-time stored bytes of every record in memory.
	SnapshotMemory SnapshotMode = "memory"
	// SnapshotOff keeps nothing; restore only works for entries not yet saved.
	SnapshotOff SnapshotMode = "off"
)

// DatabaseOptions configures database open and write-back behavior.
type DatabaseOptions struct {
	// Logger receives debug and warning events; nil disables logging.
	Logger *zerolog.Logger `json:"-" yaml:"-"`
	// Store persists pristine record bytes across sessions; nil keeps them in memory only.
	Store SnapshotStore `json:"-" yaml:"-"`
	// Container names the database inside Store (default: absolute file path, or "memory").
	Container string `json:"container,omitempty" yaml:"container,omitempty"`
	// Snapshots selects in-memory pristine retention.
	Snapshots SnapshotMode `json:"snapshots,omitempty" yaml:"snapshots,omitempty"`
	// BackupKeep controls how many backup generations are kept after a commit.
	// 0 means remove backup, 1 keeps only `<file>.bak`, N keeps `.bak` + `.bak.1..N-1`.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
	// CompressionLevel is the zlib level for re-encoded blocks (zero means best compression).
	CompressionLevel int `json:"compression_level,omitempty" yaml:"compression_level,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(key string, written int64, outputPath string) `json:"-" yaml:"-"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// Prefix limits extraction to keys under this directory.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	// Rules select entries by path; empty means all entries.
	Rules []pathrules.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// MatcherOptions control rule matching.
	MatcherOptions pathrules.MatcherOptions `json:"matcher_options,omitzero" yaml:"matcher_options,omitzero"`
	// Keys limits extraction to these exact keys; nil means all entries.
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// RawNames disables default path sanitization during extract.
	RawNames bool `json:"raw_names,omitempty" yaml:"raw_names,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
	// ExtractFileModeSkipExisting leaves existing files untouched.
	ExtractFileModeSkipExisting ExtractFileMode = "skip_existing"
)

// ArchiveInput describes one payload to be written into an ARC entry.
type ArchiveInput struct {
	// ModTime is optional entry timestamp.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	// Open returns source stream for this entry; Data is used when nil.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Path is destination key inside the archive.
	Path string `json:"path" yaml:"path"`
	// Data is the in-memory payload.
	Data []byte `json:"-" yaml:"-"`
}

// ArchiveWriteOptions configures archive build behavior.
type ArchiveWriteOptions struct {
	// OnEntryDone is called after one entry payload is written.
	OnEntryDone func(entry ArchiveEntry) `json:"-" yaml:"-"`
	// Compress defines ordered path rules for compression candidate selection.
	// Empty rule set compresses every entry.
	Compress []pathrules.Rule `json:"compress,omitempty" yaml:"compress,omitempty"`
	// CompressMatcherOptions control compression path rule matching.
	CompressMatcherOptions pathrules.MatcherOptions `json:"compress_matcher_options,omitzero" yaml:"compress_matcher_options,omitzero"`
	// Version selects ArchiveVersionTQ (zlib) or ArchiveVersionGD (lz4).
	Version uint32 `json:"version,omitempty" yaml:"version,omitempty"`
	// PartSize is maximum decompressed size of one part.
	PartSize int `json:"part_size,omitempty" yaml:"part_size,omitempty"`
	// MinCompressSize stores entries smaller than this raw.
	MinCompressSize int `json:"min_compress_size,omitempty" yaml:"min_compress_size,omitempty"`
}

// applyDefaults fills zero-valued archive write options with defaults.
func (opts *ArchiveWriteOptions) applyDefaults() {
	if opts.Version == 0 {
		opts.Version = ArchiveVersionTQ
	}

	if opts.PartSize <= 0 {
		opts.PartSize = DefaultPartSize
	}

	if opts.MinCompressSize <= 0 {
		opts.MinCompressSize = DefaultMinCompressSize
	}

	if opts.CompressMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.CompressMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.CompressMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.CompressMatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeTruncate
	}

	if opts.MatcherOptions == (pathrules.MatcherOptions{}) {
		opts.MatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}
}

// applyDefaults fills zero-valued database options with defaults.
func (opts *DatabaseOptions) applyDefaults() {
	if opts.Snapshots == "" {
		opts.Snapshots = SnapshotMemory
	}

	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}
}

// loggerOrNop returns l or a disabled logger.
func loggerOrNop(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}

	nop := zerolog.Nop()
	return &nop
}

// fileTimeEpochDelta is 100ns intervals between 1601-01-01 and 1970-01-01.
const fileTimeEpochDelta = 116444736000000000

// fileTimeToTime converts Windows FILETIME to time.Time.
func fileTimeToTime(ft uint64) time.Time {
	if ft == 0 || ft < fileTimeEpochDelta {
		return time.Time{}
	}

	return time.Unix(0, int64(ft-fileTimeEpochDelta)*100).UTC() //nolint:gosec // bounded by epoch check
}

// timeToFileTime converts time.Time to Windows FILETIME.
func timeToFileTime(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}

	ns := t.UnixNano()
	if ns < 0 {
		return 0
	}

	return uint64(ns/100) + fileTimeEpochDelta //nolint:gosec // non-negative checked above
}

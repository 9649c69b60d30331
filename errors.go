// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for archive and database operations. Use errors.Is in callers.
var (
	// ErrInvalidHeader means the container header markers do not match a supported format.
	ErrInvalidHeader = errors.New("invalid container: missing or bad header")
	// ErrTruncated means a declared table or payload extends past end of file.
	ErrTruncated = errors.New("container truncated")
	// ErrStringPoolCorrupt means the database string table cannot be decoded.
	ErrStringPoolCorrupt = errors.New("string pool corrupt")
	// ErrUnknownFormat means the file is neither an ARC archive nor an ARZ database.
	ErrUnknownFormat = errors.New("unknown container format")
	// ErrNilReader means the reader is nil.
	ErrNilReader = errors.New("reader is nil")
	// ErrClosed means the archive or database is already closed.
	ErrClosed = errors.New("container already closed")
	// ErrEntryNotFound means the key is not present in the container index.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrMalformedRecord means a record block is present but internally inconsistent.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrEncode means a record cannot be encoded with its declared value types.
	ErrEncode = errors.New("record encode failed")
	// ErrTypeMismatch means a value does not match the variable data type.
	ErrTypeMismatch = errors.New("value does not match variable type")
	// ErrIndexOutOfRange means a value index is outside the variable value count.
	ErrIndexOutOfRange = errors.New("value index out of range")
	// ErrInvalidVariableText means a variable text line cannot be parsed.
	ErrInvalidVariableText = errors.New("invalid variable text")
	// ErrNoBackup means no pristine copy of the record is available for restore.
	ErrNoBackup = errors.New("no pristine copy available")
	// ErrReadOnlyFormat means the container variant does not support write-back.
	ErrReadOnlyFormat = errors.New("container format is read-only")
	// ErrSizeOverflow means a size or offset exceeds the 32-bit container limit.
	ErrSizeOverflow = errors.New("size exceeds uint32 container limit")
	// ErrEmptyInputs means no inputs provided for archive build.
	ErrEmptyInputs = errors.New("no inputs provided")
	// ErrInvalidEntryPath means an entry path is empty or invalid after normalization.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrDuplicateEntryPath means two inputs resolve to the same path.
	ErrDuplicateEntryPath = errors.New("duplicate entry path")
	// ErrInvalidRules means one or more path selection rules are invalid.
	ErrInvalidRules = errors.New("invalid path rules")
	// ErrInvalidExtractPath means an entry path is invalid for the extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrSnapshotCorrupt means a stored pristine snapshot failed its checksum.
	ErrSnapshotCorrupt = errors.New("snapshot checksum mismatch")
)

// MalformedError describes why one record block failed to decode.
type MalformedError struct {
	// Path is the normalized record path.
	Path string
	// Reason is a short description of the inconsistency.
	Reason string
	// Offset is the byte offset inside the decompressed block.
	Offset int
	// Fixable reports whether Fix can rebuild a valid encoding.
	Fixable bool
}

// Error implements error.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d: %s", ErrMalformedRecord, e.Path, e.Offset, e.Reason)
}

// Unwrap returns ErrMalformedRecord.
func (e *MalformedError) Unwrap() error {
	return ErrMalformedRecord
}

// ExtractError collects per-entry failures of a bulk extraction.
type ExtractError struct {
	// Failures maps entry key to its error, in extraction order.
	Failures []EntryFailure
}

// EntryFailure is one failed entry of a bulk operation.
type EntryFailure struct {
	Err error
	Key string
}

// Error implements error.
func (e *ExtractError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("extract %s: %v", e.Failures[0].Key, e.Failures[0].Err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "extract: %d entries failed", len(e.Failures))
	for i, f := range e.Failures {
		if i == 3 {
			sb.WriteString("; ...")
			break
		}

		fmt.Fprintf(&sb, "; %s: %v", f.Key, f.Err)
	}

	return sb.String()
}

// Unwrap exposes the individual entry errors to errors.Is and errors.As.
func (e *ExtractError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i := range e.Failures {
		out[i] = e.Failures[i].Err
	}

	return out
}

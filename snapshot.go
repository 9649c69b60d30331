// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"sync"
)

// RecordSnapshot holds the pristine stored form of one database record.
type RecordSnapshot struct {
	// Type is the record type tag.
	Type string `msgpack:"t"`
	// Block is the stored (compressed) block bytes.
	Block []byte `msgpack:"b"`
	// Size is the decompressed block size when the layout records it.
	Size uint32 `msgpack:"s,omitempty"`
	// FileTime is the record table timestamp.
	FileTime uint64 `msgpack:"ft"`
}

// clone returns a deep copy.
func (s RecordSnapshot) clone() RecordSnapshot {
	s.Block = bytes.Clone(s.Block)
	return s
}

// SnapshotStore persists pristine record bytes so Restore works across sessions.
// container identifies the database file; key is the normalized record path.
type SnapshotStore interface {
	// Get returns the snapshot for key, or false when none is stored.
	Get(container, key string) (RecordSnapshot, bool, error)
	// PutIfAbsent stores snap unless a snapshot for key already exists.
	PutIfAbsent(container, key string, snap RecordSnapshot) error
}

// MemorySnapshotStore is a process-local SnapshotStore. It can be shared by
// several Database handles opened on the same file.
type MemorySnapshotStore struct {
	snaps map[string]RecordSnapshot
	mu    sync.RWMutex
}

// NewMemorySnapshotStore creates an empty in-memory store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: make(map[string]RecordSnapshot)}
}

// Get implements SnapshotStore.
func (s *MemorySnapshotStore) Get(container, key string) (RecordSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[snapshotKey(container, key)]
	if !ok {
		return RecordSnapshot{}, false, nil
	}

	return snap.clone(), true, nil
}

// PutIfAbsent implements SnapshotStore.
func (s *MemorySnapshotStore) PutIfAbsent(container, key string, snap RecordSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := snapshotKey(container, key)
	if _, ok := s.snaps[k]; !ok {
		s.snaps[k] = snap.clone()
	}

	return nil
}

// Len returns number of stored snapshots.
func (s *MemorySnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.snaps)
}

// snapshotKey joins container and record key with a NUL separator.
func snapshotKey(container, key string) string {
	return container + "\x00" + key
}

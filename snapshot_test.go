// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"
)

func testSnapshot(level byte) RecordSnapshot {
	return RecordSnapshot{
		Type:     "Weapon",
		Block:    []byte{1, 2, 3, level},
		Size:     16,
		FileTime: 132000000000000000,
	}
}

func TestMemorySnapshotStoreKeepsFirst(t *testing.T) {
	t.Parallel()

	store := NewMemorySnapshotStore()
	if _, ok, err := store.Get("c", "k"); ok || err != nil {
		t.Fatalf("Get(empty)=%v,%v", ok, err)
	}

	first := testSnapshot(1)
	if err := store.PutIfAbsent("c", "k", first); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}
	if err := store.PutIfAbsent("c", "k", testSnapshot(2)); err != nil {
		t.Fatalf("PutIfAbsent(second): %v", err)
	}
	if err := store.PutIfAbsent("other", "k", testSnapshot(3)); err != nil {
		t.Fatalf("PutIfAbsent(other container): %v", err)
	}

	got, ok, err := store.Get("c", "k")
	if err != nil || !ok {
		t.Fatalf("Get=%v,%v", ok, err)
	}
	if !sameSnapshot(got, first) {
		t.Fatalf("Get=%+v, want first snapshot", got)
	}
	if store.Len() != 2 {
		t.Fatalf("Len()=%d, want 2", store.Len())
	}

	// Stored snapshots do not alias caller memory.
	first.Block[0] = 9
	got, _, _ = store.Get("c", "k")
	if got.Block[0] != 1 {
		t.Fatal("store aliases caller block")
	}
}

func TestBoltSnapshotStorePersists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snapshots.db")
	store, err := OpenBoltSnapshotStore(path)
	if err != nil {
		t.Fatalf("OpenBoltSnapshotStore: %v", err)
	}

	want := testSnapshot(1)
	if err := store.PutIfAbsent("/data/database.arz", testSwordPath, want); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}
	if err := store.PutIfAbsent("/data/database.arz", testSwordPath, testSnapshot(2)); err != nil {
		t.Fatalf("PutIfAbsent(second): %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	store, err = OpenBoltSnapshotStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = store.Close() }()

	got, ok, err := store.Get("/data/database.arz", testSwordPath)
	if err != nil || !ok {
		t.Fatalf("Get=%v,%v", ok, err)
	}
	if !sameSnapshot(got, want) {
		t.Fatalf("Get=%+v, want %+v", got, want)
	}

	if _, ok, err := store.Get("/other.arz", testSwordPath); ok || err != nil {
		t.Fatalf("Get(other container)=%v,%v", ok, err)
	}
}

func TestBoltSnapshotStoreDetectsCorruption(t *testing.T) {
	t.Parallel()

	store, err := OpenBoltSnapshotStore(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("OpenBoltSnapshotStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.PutIfAbsent("c", "k", testSnapshot(1)); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}

	err = store.bdb.Update(func(btx *bbolt.Tx) error {
		cb := btx.Bucket(snapshotBucket).Bucket([]byte("c"))
		raw := bytes.Clone(cb.Get([]byte("k")))
		raw[len(raw)-1] ^= 0xff
		return cb.Put([]byte("k"), raw)
	})
	if err != nil {
		t.Fatalf("tamper: %v", err)
	}

	if _, _, err := store.Get("c", "k"); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Fatalf("Get error=%v, want ErrSnapshotCorrupt", err)
	}
	if _, err := decodeSnapshotValue([]byte{1, 2}); !errors.Is(err, ErrSnapshotCorrupt) {
		t.Fatalf("decodeSnapshotValue(short) error=%v, want ErrSnapshotCorrupt", err)
	}
}

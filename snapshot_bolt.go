// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
)

// snapshotBucket is the root bucket; each container gets a nested bucket.
var snapshotBucket = []byte("snapshots")

// BoltSnapshotStore is a SnapshotStore persisted in a bbolt file.
// Values are msgpack encoded and prefixed with an xxhash64 checksum.
type BoltSnapshotStore struct {
	bdb *bbolt.DB
}

// OpenBoltSnapshotStore opens or creates a snapshot store file.
func OpenBoltSnapshotStore(path string) (*BoltSnapshotStore, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second

	bdb, err := bbolt.Open(path, 0o600, &bopt)
	if err != nil {
		return nil, fmt.Errorf("open snapshot store: %w", err)
	}

	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}

	return &BoltSnapshotStore{bdb: bdb}, nil
}

// Close closes the store file.
func (s *BoltSnapshotStore) Close() error {
	return s.bdb.Close()
}

// Get implements SnapshotStore.
func (s *BoltSnapshotStore) Get(container, key string) (RecordSnapshot, bool, error) {
	var (
		snap  RecordSnapshot
		found bool
	)

	err := s.bdb.View(func(btx *bbolt.Tx) error {
		cb := btx.Bucket(snapshotBucket).Bucket([]byte(container))
		if cb == nil {
			return nil
		}

		raw := cb.Get([]byte(key))
		if raw == nil {
			return nil
		}

		decoded, err := decodeSnapshotValue(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}

		snap, found = decoded, true
		return nil
	})
	if err != nil {
		return RecordSnapshot{}, false, err
	}

	return snap, found, nil
}

// PutIfAbsent implements SnapshotStore.
func (s *BoltSnapshotStore) PutIfAbsent(container, key string, snap RecordSnapshot) error {
	value, err := encodeSnapshotValue(snap)
	if err != nil {
		return err
	}

	return s.bdb.Update(func(btx *bbolt.Tx) error {
		cb, err := btx.Bucket(snapshotBucket).CreateBucketIfNotExists([]byte(container))
		if err != nil {
			return fmt.Errorf("create container bucket: %w", err)
		}

		if cb.Get([]byte(key)) != nil {
			return nil
		}

		return cb.Put([]byte(key), value)
	})
}

// Containers returns container names that hold snapshots.
func (s *BoltSnapshotStore) Containers() ([]string, error) {
	var out []string
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		return btx.Bucket(snapshotBucket).ForEach(func(k, v []byte) error {
			if v == nil {
				out = append(out, string(k))
			}
			return nil
		})
	})

	return out, err
}

// encodeSnapshotValue serializes snap as checksum + msgpack payload.
func encodeSnapshotValue(snap RecordSnapshot) ([]byte, error) {
	payload, err := msgpack.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	out := make([]byte, 8, 8+len(payload))
	binary.LittleEndian.PutUint64(out, xxhash.Sum64(payload))
	return append(out, payload...), nil
}

// decodeSnapshotValue verifies the checksum and decodes the msgpack payload.
func decodeSnapshotValue(raw []byte) (RecordSnapshot, error) {
	if len(raw) < 8 {
		return RecordSnapshot{}, fmt.Errorf("%w: short value", ErrSnapshotCorrupt)
	}

	payload := raw[8:]
	if binary.LittleEndian.Uint64(raw) != xxhash.Sum64(payload) {
		return RecordSnapshot{}, ErrSnapshotCorrupt
	}

	var snap RecordSnapshot
	if err := msgpack.Unmarshal(payload, &snap); err != nil {
		return RecordSnapshot{}, fmt.Errorf("%w: %w", ErrSnapshotCorrupt, err)
	}

	// bbolt memory is only valid inside the transaction.
	return snap.clone(), nil
}

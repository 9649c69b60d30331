// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"time"
)

// blockReplacement is the new stored form of one record table slot.
type blockReplacement struct {
	typ      string
	block    []byte
	size     uint32
	fileTime uint64
}

// Save re-encodes rec and replaces the stored block of rec.Path. Only the
// record table entry of rec.Path changes; all other stored blocks are kept
// byte for byte. New strings are appended to the string pool. On any error
// the database stays at its last good state.
func (d *Database) Save(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrEncode)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := d.writable()
	if err != nil {
		return err
	}

	key := NormalizeRecordPath(rec.Path)
	ie, ok := img.index.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}

	in := newPoolInterner(img.pool)
	block, err := encodeRecord(rec, in)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}

	stored, err := compressZlib(block, d.opts.CompressionLevel)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	if err := d.keepPristine(img, key, ie.Slot); err != nil {
		return err
	}

	typ := rec.Type
	if typ == "" {
		typ = img.records[ie.Slot].Type
	}

	repl := map[int]blockReplacement{
		ie.Slot: {
			typ:      typ,
			block:    stored,
			size:     uint32(len(block)), //nolint:gosec // bounded by uint16 counts per variable
			fileTime: timeToFileTime(time.Now()),
		},
	}
	if err := d.commit(img, repl, in.added); err != nil {
		return err
	}

	d.saved[key] = struct{}{}
	d.log.Debug().
		Str("record", key).
		Int("stored_size", len(stored)).
		Int("new_strings", len(in.added)).
		Msg("record saved")

	return nil
}

// Restore re-applies the pristine stored bytes of rec.Path and reloads rec
// in place with the pristine values. It fails with ErrNoBackup when no
// pristine copy is available.
func (d *Database) Restore(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", ErrEntryNotFound)
	}

	fresh, err := d.restore(NormalizeRecordPath(rec.Path))
	if err != nil {
		return err
	}

	*rec = *fresh
	return nil
}

// RestorePath is Restore by record path; it returns the restored record.
func (d *Database) RestorePath(path string) (*Record, error) {
	return d.restore(NormalizeRecordPath(path))
}

// restore commits the pristine bytes of key and decodes the result.
func (d *Database) restore(key string) (*Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := d.writable()
	if err != nil {
		return nil, err
	}

	ie, ok := img.index.Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, key)
	}

	snap, err := d.pristineSnapshot(img, key, ie.Slot)
	if err != nil {
		return nil, err
	}

	current, err := img.snapshotOf(ie.Slot)
	if err != nil && !errors.Is(err, ErrMalformedRecord) {
		return nil, err
	}

	if err != nil || !sameSnapshot(current, snap) {
		repl := map[int]blockReplacement{
			ie.Slot: {typ: snap.Type, block: snap.Block, size: snap.Size, fileTime: snap.FileTime},
		}
		if err := d.commit(img, repl, nil); err != nil {
			return nil, err
		}

		d.log.Debug().Str("record", key).Msg("record restored")
	}

	fresh, err := d.img.decodeSlot(ie.Slot)
	if err != nil {
		return nil, fmt.Errorf("reload restored record: %w", err)
	}

	return fresh, nil
}

// writable returns the current image when it accepts commits. Caller holds d.mu.
func (d *Database) writable() (*dbImage, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if d.img.layout != LayoutTQ {
		return nil, fmt.Errorf("%w: %s layout", ErrReadOnlyFormat, d.img.layout)
	}

	return d.img, nil
}

// keepPristine stores the pre-edit bytes of key in the persistent store the
// first time the entry is overwritten in this session.
func (d *Database) keepPristine(img *dbImage, key string, slot int) error {
	if d.store == nil {
		return nil
	}
	if _, saved := d.saved[key]; saved {
		return nil
	}

	snap, err := img.snapshotOf(slot)
	if err != nil {
		return err
	}

	if err := d.store.PutIfAbsent(d.container, key, snap); err != nil {
		return fmt.Errorf("store pristine %s: %w", key, err)
	}

	return nil
}

// pristineSnapshot returns the original stored form of key: persistent
// store, then open-time image, then the current bytes while the entry is
// still unsaved.
func (d *Database) pristineSnapshot(img *dbImage, key string, slot int) (RecordSnapshot, error) {
	if d.store != nil {
		snap, found, err := d.store.Get(d.container, key)
		if err != nil {
			return RecordSnapshot{}, fmt.Errorf("load pristine %s: %w", key, err)
		}
		if found {
			return snap, nil
		}
	}

	if d.pristine != nil {
		if ie, ok := d.pristine.index.Lookup(key); ok {
			return d.pristine.snapshotOf(ie.Slot)
		}
	}

	if _, saved := d.saved[key]; !saved {
		return img.snapshotOf(slot)
	}

	return RecordSnapshot{}, fmt.Errorf("%w: %s", ErrNoBackup, key)
}

// sameSnapshot reports whether two stored forms are identical.
func sameSnapshot(a, b RecordSnapshot) bool {
	return a.Type == b.Type && a.Size == b.Size && a.FileTime == b.FileTime && bytes.Equal(a.Block, b.Block)
}

// commit builds a new image from img with repl applied and added strings
// appended, persists it for path-backed databases and publishes it.
// Caller holds d.mu.
func (d *Database) commit(img *dbImage, repl map[int]blockReplacement, added []string) error {
	data, err := buildImage(img, repl, added)
	if err != nil {
		return err
	}

	next, err := parseDatabase(data)
	if err != nil {
		return fmt.Errorf("verify rebuilt database: %w", err)
	}

	if d.path != "" {
		if err := d.persist(data); err != nil {
			return err
		}
	}

	d.img = next
	d.log.Debug().
		Int("replaced", len(repl)).
		Int("size", len(data)).
		Msg("database committed")

	return nil
}

// buildImage keeps the data region of img verbatim, appends replacement
// blocks after it, rewrites the record table and appends added strings as a
// new string table block. Bytes after the string table are kept.
func buildImage(img *dbImage, repl map[int]blockReplacement, added []string) ([]byte, error) {
	oldRegion := img.data[arzHeaderSize:img.dataEnd]

	appendSize := 0
	for _, r := range repl {
		appendSize += len(r.block)
	}

	region := make([]byte, 0, len(oldRegion)+appendSize)
	region = append(region, oldRegion...)

	records := make([]dbRecord, len(img.records))
	copy(records, img.records)
	for slot := range records {
		r, ok := repl[slot]
		if !ok {
			continue
		}
		if uint64(len(region))+uint64(len(r.block)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: data region", ErrSizeOverflow)
		}

		records[slot].Type = r.typ
		records[slot].Offset = uint32(len(region))      //nolint:gosec // checked above
		records[slot].StoredSize = uint32(len(r.block)) //nolint:gosec // checked above
		records[slot].Size = r.size
		records[slot].FileTime = r.fileTime
		region = append(region, r.block...)
	}

	table := bytes.Clone(img.stringTable)
	if len(added) > 0 {
		var err error
		if table, err = appendStringBlock(table, added); err != nil {
			return nil, err
		}
	}

	return assembleDatabase(imageParts{
		region:      region,
		records:     records,
		stringTable: table,
		footer:      img.footer,
	})
}

// persist writes data next to the database file, rotates backups and moves
// the new file into place, rolling back on failure.
func (d *Database) persist(data []byte) error {
	tmpPath := d.path + ".tmp"
	if err := writeFileSync(tmpPath, data); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	backupPath := d.path + ".bak"
	if err := prepareBackupSlot(backupPath, d.opts.BackupKeep); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(d.path, backupPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move database to backup: %w", err)
	}

	if err := os.Rename(tmpPath, d.path); err != nil {
		_ = os.Remove(tmpPath)
		if rollbackErr := rollbackFromBackup(d.path, backupPath); rollbackErr != nil {
			return fmt.Errorf("replace database: %w (rollback failed: %v)", err, rollbackErr)
		}

		return fmt.Errorf("replace database: %w", err)
	}

	if d.opts.BackupKeep == 0 {
		if err := removeIfExists(backupPath); err != nil {
			return fmt.Errorf("remove backup: %w", err)
		}
	}

	return nil
}

// writeFileSync writes data to path and syncs it to disk.
func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

// prepareBackupSlot rotates or removes existing backup generations before a commit.
func prepareBackupSlot(backupPath string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames source to destination when source exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", path, err)
}

// rollbackFromBackup puts the backup back in place after a failed commit.
func rollbackFromBackup(path string, backupPath string) error {
	_ = os.Remove(path)

	if err := os.Rename(backupPath, path); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"errors"
	"fmt"
	"time"
)

// RepairReport is the outcome of a Fix pass.
type RepairReport struct {
	// Repairs lists rewritten records with the issues fixed in each.
	Repairs []RecordRepair `json:"repairs,omitempty" yaml:"repairs,omitempty"`
	// Failures lists records with unrecoverable corruption, left untouched.
	Failures []EntryFailure `json:"-" yaml:"-"`
	// Scanned is number of records decoded.
	Scanned int `json:"scanned" yaml:"scanned"`
	// Repaired is number of records rewritten.
	Repaired int `json:"repaired" yaml:"repaired"`
}

// RecordRepair describes one repaired record.
type RecordRepair struct {
	Path  string   `json:"path" yaml:"path"`
	Notes []string `json:"notes" yaml:"notes"`
}

// Fix decodes every record and rewrites those that fail only with fixable
// malformations, all in one commit:
//
//   - 1-3 trailing bytes that do not form a dword are dropped;
//   - a trailing partial variable header is dropped;
//   - a value count larger than the remaining dwords is clamped, and the
//     variable is dropped when no dword remains;
//   - a variable with a zero value count is dropped;
//   - a repeated variable name keeps its first occurrence only.
//
// Decompression failures, name or string IDs outside the pool and blocks
// outside the data region are fatal for the record and reported in
// Failures. Fix returns an error only when the commit fails.
func (d *Database) Fix() (*RepairReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := d.writable()
	if err != nil {
		return nil, err
	}

	report := &RepairReport{}
	repl := make(map[int]blockReplacement)
	in := newPoolInterner(img.pool)
	now := timeToFileTime(time.Now())

	for i := range img.index.Len() {
		ie := img.index.Entry(i)
		report.Scanned++

		rec, notes, err := img.repairSlot(ie.Slot)
		if err != nil {
			report.Failures = append(report.Failures, EntryFailure{Key: ie.Key, Err: err})
			d.log.Warn().Str("record", ie.Key).Err(err).Msg("record cannot be repaired")
			continue
		}
		if len(notes) == 0 {
			continue
		}

		block, err := encodeRecord(rec, in)
		if err != nil {
			report.Failures = append(report.Failures, EntryFailure{Key: ie.Key, Err: fmt.Errorf("%w: %w", ErrEncode, err)})
			continue
		}

		stored, err := compressZlib(block, d.opts.CompressionLevel)
		if err != nil {
			report.Failures = append(report.Failures, EntryFailure{Key: ie.Key, Err: err})
			continue
		}

		if err := d.keepPristine(img, ie.Key, ie.Slot); err != nil {
			return nil, err
		}

		repl[ie.Slot] = blockReplacement{
			typ:      img.records[ie.Slot].Type,
			block:    stored,
			size:     uint32(len(block)), //nolint:gosec // bounded by the source block
			fileTime: now,
		}
		report.Repairs = append(report.Repairs, RecordRepair{Path: ie.Key, Notes: notes})
	}

	if len(repl) > 0 {
		if err := d.commit(img, repl, in.added); err != nil {
			return nil, err
		}

		for _, r := range report.Repairs {
			d.saved[r.Path] = struct{}{}
		}
	}

	report.Repaired = len(report.Repairs)
	d.log.Debug().
		Int("scanned", report.Scanned).
		Int("repaired", report.Repaired).
		Int("failed", len(report.Failures)).
		Msg("database repair finished")

	return report, nil
}

// repairSlot decodes slot leniently. It returns nil notes when the record is
// already well formed.
func (img *dbImage) repairSlot(slot int) (*Record, []string, error) {
	block, err := img.readBlock(slot)
	if err != nil {
		return nil, nil, err
	}

	r := &img.records[slot]
	_, err = decodeRecord(r.Path, r.Type, block, img.pool.Get)
	if err == nil {
		return nil, nil, nil
	}

	var me *MalformedError
	if errors.As(err, &me) && !me.Fixable {
		return nil, nil, err
	}

	vars, notes, err := decodeVariables(r.Path, block, img.pool.Get, true)
	if err != nil {
		return nil, nil, err
	}

	return buildRecord(r.Path, r.Type, vars), notes, nil
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const (
	benchDefaultEntries = 128
	benchRecords        = 4096
)

var (
	// benchRecordSink prevents compiler elimination in decode loops.
	benchRecordSink *Record
)

// createBenchArchive writes an archive with entries of mixed compressibility.
func createBenchArchive(b *testing.B, entries int) string {
	b.Helper()

	inputs := make([]ArchiveInput, entries)
	for i := range inputs {
		inputs[i] = ArchiveInput{
			Path: fmt.Sprintf("textures/set%d/item%d.tex", i%8, i),
			Data: bytes.Repeat([]byte(fmt.Sprintf("texture %d ", i)), 512),
		}
	}

	path := filepath.Join(b.TempDir(), "bench.arc")
	if _, err := WriteArchiveFile(context.Background(), path, inputs, ArchiveWriteOptions{}); err != nil {
		b.Fatal(err)
	}

	return path
}

// createBenchDatabase builds a database of n similar item records.
func createBenchDatabase(b *testing.B, n int) []byte {
	b.Helper()

	records := make([]*Record, n)
	for i := range records {
		rec := NewRecord(fmt.Sprintf(`records\items\gen\item%05d.dbr`, i), "Weapon")
		rec.Set(NewStringVariable(0, "itemNameTag", fmt.Sprintf("tagItem%05d", i)))
		rec.Set(NewIntVariable(1, "itemLevel", int32(i%80))) //nolint:gosec // bounded
		rec.Set(NewFloatVariable(2, "offensivePhysicalMin", 3.5, 4.5, 5.5))
		records[i] = rec
	}

	data, err := BuildDatabase(records, DatabaseBuildOptions{Strings: []string{"itemNameTag", "itemLevel", "offensivePhysicalMin"}})
	if err != nil {
		b.Fatal(err)
	}

	return data
}

func BenchmarkOpenArchive(b *testing.B) {
	path := createBenchArchive(b, benchDefaultEntries)

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		a, err := OpenArchive(path)
		if err != nil {
			b.Fatal(err)
		}
		_ = a.Entries()
		_ = a.Close()
	}
}

func BenchmarkArchiveExtract(b *testing.B) {
	path := createBenchArchive(b, benchDefaultEntries)
	dir := b.TempDir()
	opts := ExtractOptions{MaxWorkers: 4}

	b.ReportAllocs()
	b.ResetTimer()
	i := 0
	for b.Loop() {
		a, err := OpenArchive(path)
		if err != nil {
			b.Fatal(err)
		}

		out := filepath.Join(dir, fmt.Sprintf("run%d", i))
		i++
		_ = os.MkdirAll(out, 0o750)
		err = a.Extract(context.Background(), out, opts)
		_ = a.Close()
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkOpenDatabase(b *testing.B) {
	data := createBenchDatabase(b, benchRecords)

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		db, err := NewDatabaseFromBytes(data, DatabaseOptions{})
		if err != nil {
			b.Fatal(err)
		}
		_ = db.Close()
	}
}

func BenchmarkGetRecord(b *testing.B) {
	db, err := NewDatabaseFromBytes(createBenchDatabase(b, benchRecords), DatabaseOptions{})
	if err != nil {
		b.Fatal(err)
	}

	keys := db.Keys()

	b.ReportAllocs()
	b.ResetTimer()
	i := 0
	for b.Loop() {
		rec, err := db.GetRecord(keys[i%len(keys)])
		if err != nil {
			b.Fatal(err)
		}
		benchRecordSink = rec
		i++
	}
}

func BenchmarkSaveRecord(b *testing.B) {
	db, err := NewDatabaseFromBytes(createBenchDatabase(b, benchRecords), DatabaseOptions{})
	if err != nil {
		b.Fatal(err)
	}

	rec, err := db.GetRecord(`records\items\gen\item00042.dbr`)
	if err != nil {
		b.Fatal(err)
	}
	level, _ := rec.Get("itemLevel")

	b.ReportAllocs()
	b.ResetTimer()
	var n int32
	for b.Loop() {
		n++
		_ = level.SetInt(0, n)
		if err := db.Save(rec); err != nil {
			b.Fatal(err)
		}
	}
}

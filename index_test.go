// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"slices"
	"testing"
)

func indexKeys(entries []IndexEntry) []string {
	out := make([]string, len(entries))
	for i := range entries {
		out[i] = entries[i].Key
	}

	return out
}

func TestIndexFirstOccurrenceWins(t *testing.T) {
	t.Parallel()

	idx := newIndex([]IndexEntry{
		{Key: "b.txt", Slot: 0},
		{Key: "a.txt", Slot: 1},
		{Key: "b.txt", Slot: 2},
	})

	if idx.Len() != 2 {
		t.Fatalf("Len()=%d, want 2", idx.Len())
	}
	if idx.Duplicates() != 1 {
		t.Fatalf("Duplicates()=%d, want 1", idx.Duplicates())
	}
	if got := idx.Keys(); !slices.Equal(got, []string{"b.txt", "a.txt"}) {
		t.Fatalf("Keys()=%v, want native order", got)
	}

	e, ok := idx.Lookup("b.txt")
	if !ok || e.Slot != 0 {
		t.Fatalf("Lookup(b.txt)=%+v,%v, want slot 0", e, ok)
	}
	if _, ok := idx.Lookup("B.TXT"); ok {
		t.Fatal("Lookup must be exact")
	}
}

func TestIndexPrefix(t *testing.T) {
	t.Parallel()

	idx := newIndex([]IndexEntry{
		{Key: `RECORDS\ITEMS\SWORD.DBR`},
		{Key: `RECORDS\CREATURES\RAT.DBR`},
		{Key: `RECORDS\ITEMSET\SET.DBR`},
		{Key: `RECORDS\ITEMS\AXE.DBR`},
		{Key: `RECORDS\ITEMS\MISC\GEM.DBR`},
	})

	testCases := []struct {
		name string
		dir  string
		want []string
	}{
		{
			name: "directory",
			dir:  `records\items`,
			want: []string{`RECORDS\ITEMS\SWORD.DBR`, `RECORDS\ITEMS\AXE.DBR`, `RECORDS\ITEMS\MISC\GEM.DBR`},
		},
		{
			name: "slash form",
			dir:  "records/items/misc/",
			want: []string{`RECORDS\ITEMS\MISC\GEM.DBR`},
		},
		{
			name: "exact key",
			dir:  `records\creatures\rat.dbr`,
			want: []string{`RECORDS\CREATURES\RAT.DBR`},
		},
		{
			name: "root",
			dir:  "",
			want: []string{`RECORDS\ITEMS\SWORD.DBR`, `RECORDS\CREATURES\RAT.DBR`, `RECORDS\ITEMSET\SET.DBR`, `RECORDS\ITEMS\AXE.DBR`, `RECORDS\ITEMS\MISC\GEM.DBR`},
		},
		{
			name: "missing",
			dir:  "records/skills",
			want: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := indexKeys(idx.Prefix(tc.dir))
			if !slices.Equal(got, tc.want) {
				t.Fatalf("Prefix(%q)=%v, want %v", tc.dir, got, tc.want)
			}
		})
	}
}

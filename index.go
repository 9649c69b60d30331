// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"slices"
	"strings"

	"github.com/armon/go-radix"
)

// IndexEntry is one key of a container index with its storage location.
type IndexEntry struct {
	// Key is the lookup key (exact archive name or normalized record path).
	Key string `json:"key" yaml:"key"`
	// Offset is the stored block offset.
	Offset uint32 `json:"offset" yaml:"offset"`
	// StoredSize is the stored (possibly compressed) length.
	StoredSize uint32 `json:"stored_size" yaml:"stored_size"`
	// Size is the decompressed length when known.
	Size uint32 `json:"size,omitempty" yaml:"size,omitempty"`
	// Slot is the position of the backing record in the container table.
	Slot int `json:"slot" yaml:"slot"`
	// Compressed reports whether the stored bytes need decompression.
	Compressed bool `json:"compressed" yaml:"compressed"`
}

// Index is an immutable key table in container order.
type Index struct {
	lookup     map[string]int
	tree       *radix.Tree
	entries    []IndexEntry
	duplicates int
}

// newIndex builds an index from entries in native order. For duplicate keys
// the first occurrence wins; later ones are counted and dropped.
func newIndex(entries []IndexEntry) *Index {
	idx := &Index{
		lookup:  make(map[string]int, len(entries)),
		tree:    radix.New(),
		entries: make([]IndexEntry, 0, len(entries)),
	}

	for _, e := range entries {
		if _, ok := idx.lookup[e.Key]; ok {
			idx.duplicates++
			continue
		}

		pos := len(idx.entries)
		idx.lookup[e.Key] = pos
		idx.entries = append(idx.entries, e)
		// Keys differing only in case or separators share one tree node.
		pk := prefixKey(e.Key)
		var positions []int
		if v, ok := idx.tree.Get(pk); ok {
			positions = v.([]int) //nolint:forcetypeassert // tree holds only positions
		}
		idx.tree.Insert(pk, append(positions, pos))
	}

	return idx
}

// Len returns number of unique keys.
func (x *Index) Len() int {
	return len(x.entries)
}

// Duplicates returns number of table entries dropped as duplicate keys.
func (x *Index) Duplicates() int {
	return x.duplicates
}

// Keys returns keys in native order.
func (x *Index) Keys() []string {
	out := make([]string, len(x.entries))
	for i := range x.entries {
		out[i] = x.entries[i].Key
	}

	return out
}

// Entries returns a copy of all entries in native order.
func (x *Index) Entries() []IndexEntry {
	return slices.Clone(x.entries)
}

// Entry returns entry at position i.
func (x *Index) Entry(i int) IndexEntry {
	return x.entries[i]
}

// Lookup returns the entry for an exact key.
func (x *Index) Lookup(key string) (IndexEntry, bool) {
	i, ok := x.lookup[key]
	if !ok {
		return IndexEntry{}, false
	}

	return x.entries[i], true
}

// Prefix returns entries at or below directory dir, in native order.
// Directory matching ignores case and separator style.
func (x *Index) Prefix(dir string) []IndexEntry {
	dir = prefixKey(dir)
	if dir == "" {
		return x.Entries()
	}

	var positions []int
	if v, ok := x.tree.Get(dir); ok {
		positions = append(positions, v.([]int)...) //nolint:forcetypeassert // tree holds only positions
	}
	x.tree.WalkPrefix(dir+"/", func(_ string, v any) bool {
		positions = append(positions, v.([]int)...) //nolint:forcetypeassert // tree holds only positions
		return false
	})

	// Radix walk is lexical; restore container order.
	slices.Sort(positions)
	out := make([]IndexEntry, len(positions))
	for i, pos := range positions {
		out[i] = x.entries[pos]
	}

	return out
}

// prefixKey is the directory matching form of a key.
func prefixKey(key string) string {
	return strings.ToLower(NormalizePath(key))
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"errors"
	"slices"
	"testing"
)

func TestStringTableRoundTrip(t *testing.T) {
	t.Parallel()

	first, err := appendStringBlock(nil, []string{"itemLevel", "Schwert der Flamme é"})
	if err != nil {
		t.Fatalf("appendStringBlock: %v", err)
	}
	table, err := appendStringBlock(first, []string{"", "itemLevel"})
	if err != nil {
		t.Fatalf("appendStringBlock: %v", err)
	}

	got, err := decodeStringTable(table)
	if err != nil {
		t.Fatalf("decodeStringTable: %v", err)
	}

	want := []string{"itemLevel", "Schwert der Flamme é", "", "itemLevel"}
	if !slices.Equal(got, want) {
		t.Fatalf("strings=%q, want %q", got, want)
	}

	pool := newStringPool(got)
	if id, ok := pool.ID("itemLevel"); !ok || id != 0 {
		t.Fatalf("ID(itemLevel)=%d,%v, want first occurrence 0", id, ok)
	}
	if s, ok := pool.Get(3); !ok || s != "itemLevel" {
		t.Fatalf("Get(3)=%q,%v", s, ok)
	}
	if _, ok := pool.Get(4); ok {
		t.Fatal("Get(4) must fail")
	}
	if _, ok := pool.Get(-1); ok {
		t.Fatal("Get(-1) must fail")
	}
}

func TestDecodeStringTableCorrupt(t *testing.T) {
	t.Parallel()

	table, err := appendStringBlock(nil, []string{"abc", "defgh"})
	if err != nil {
		t.Fatalf("appendStringBlock: %v", err)
	}

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "partial count", data: table[:2]},
		{name: "string past end", data: table[:len(table)-1]},
		{name: "count past end", data: []byte{0xff, 0xff, 0, 0, 1, 0, 0, 0}},
	}

	for _, tc := range testCases {
		if _, err := decodeStringTable(tc.data); !errors.Is(err, ErrStringPoolCorrupt) {
			t.Fatalf("%s: error=%v, want ErrStringPoolCorrupt", tc.name, err)
		}
	}
}

func TestStringPoolSearch(t *testing.T) {
	t.Parallel()

	pool := newStringPool([]string{"tagSword", "itemLevel", "tagShield", "TagAxe"})

	if got := pool.Search("tag", 0); !slices.Equal(got, []int32{0, 2}) {
		t.Fatalf("Search(tag)=%v, want [0 2]", got)
	}
	if got := pool.Search("tag", 1); !slices.Equal(got, []int32{0}) {
		t.Fatalf("Search(tag, 1)=%v, want [0]", got)
	}
	if got := pool.Search("missing", 0); len(got) != 0 {
		t.Fatalf("Search(missing)=%v, want none", got)
	}
}

func TestPoolInternerStagesStrings(t *testing.T) {
	t.Parallel()

	pool := newStringPool([]string{"a", "b"})
	in := newPoolInterner(pool)

	if id, _ := in.intern("b"); id != 1 {
		t.Fatalf("intern(b)=%d, want 1", id)
	}
	if id, _ := in.intern("c"); id != 2 {
		t.Fatalf("intern(c)=%d, want 2", id)
	}
	if id, _ := in.intern("c"); id != 2 {
		t.Fatalf("second intern(c)=%d, want 2", id)
	}
	if !slices.Equal(in.added, []string{"c"}) {
		t.Fatalf("added=%q, want [c]", in.added)
	}
	if s, ok := in.lookup(2); !ok || s != "c" {
		t.Fatalf("lookup(2)=%q,%v", s, ok)
	}
	if pool.Len() != 2 {
		t.Fatalf("interner modified pool: Len()=%d", pool.Len())
	}

	grown := pool.withAppended(in.added)
	if grown.Len() != 3 || pool.Len() != 2 {
		t.Fatalf("withAppended lens=%d,%d", grown.Len(), pool.Len())
	}
}

func TestEncodeTextRejectsUnrepresentable(t *testing.T) {
	t.Parallel()

	if _, err := encodeText("日本"); !errors.Is(err, ErrEncode) {
		t.Fatalf("encodeText error=%v, want ErrEncode", err)
	}

	raw, err := encodeText("é")
	if err != nil {
		t.Fatalf("encodeText: %v", err)
	}
	if len(raw) != 1 || raw[0] != 0xe9 {
		t.Fatalf("encodeText(é)=%x, want e9", raw)
	}
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"strings"
	"testing"
)

func TestSanitizePathSegment(t *testing.T) {
	t.Parallel()

	longName := strings.Repeat("a", 400)
	gotLong := sanitizePathSegment(longName)
	if len(gotLong) > maxSanitizedSegmentLen {
		t.Fatalf("len(long)=%d, want <= %d", len(gotLong), maxSanitizedSegmentLen)
	}
	if gotLong == longName {
		t.Fatal("long segment was not shortened")
	}
	if again := sanitizePathSegment(longName); again != gotLong {
		t.Fatalf("shortening is not deterministic: %q != %q", again, gotLong)
	}

	testCases := []struct {
		in   string
		want string
	}{
		{in: "CON.txt", want: "_CON.txt"},
		{in: "COM8.c", want: "_COM8.c"},
		{in: "a:b?.txt", want: "a_b_.txt"},
		{in: "name. ", want: "name"},
		{in: "CLOCK$.cfg", want: "_CLOCK$.cfg"},
		{in: "a\x1b[31m.txt", want: "a_[31m.txt"},
		{in: "a\x7fb.txt", want: "a_b.txt"},
		{in: "a\u200fb.txt", want: "a_b.txt"},
		{in: "..", want: "_"},
		{in: "sword01.dbr", want: "sword01.dbr"},
	}

	for _, tc := range testCases {
		got := sanitizePathSegment(tc.in)
		if got != tc.want {
			t.Fatalf("sanitizePathSegment(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestIsReservedDeviceName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		want bool
	}{
		{name: "con", want: true},
		{name: "con.txt", want: true},
		{name: "CLOCK$", want: true},
		{name: "lpt1.dbr", want: true},
		{name: "normal.txt", want: false},
		{name: "_con.txt", want: false},
		{name: "comx.txt", want: false},
	}

	for _, tc := range testCases {
		got := isReservedDeviceName(tc.name)
		if got != tc.want {
			t.Fatalf("isReservedDeviceName(%q)=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSanitizeKeysCollision(t *testing.T) {
	t.Parallel()

	got, err := sanitizeKeys([]string{"a:b.txt", "a?b.txt", "A:B.txt"})
	if err != nil {
		t.Fatalf("sanitizeKeys: %v", err)
	}

	want := []string{"a_b.txt", "a_b~2.txt", "A_B~3.txt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d]=%q, want %q", i, got[i], want[i])
		}
	}
}

func TestSanitizeKeysMangledPaths(t *testing.T) {
	t.Parallel()

	got, err := sanitizeKeys([]string{
		`\\\\\:\`,
		`..\evil.txt`,
		`RECORDS\ITEMS\CON.DBR`,
	})
	if err != nil {
		t.Fatalf("sanitizeKeys: %v", err)
	}

	if got[0] != "_" {
		t.Fatalf("got[0]=%q, want _", got[0])
	}
	if got[1] != "_/evil.txt" {
		t.Fatalf("got[1]=%q, want _/evil.txt", got[1])
	}
	if got[2] != "RECORDS/ITEMS/_CON.DBR" {
		t.Fatalf("got[2]=%q, want RECORDS/ITEMS/_CON.DBR", got[2])
	}
}

func TestSanitizePath(t *testing.T) {
	t.Parallel()

	got, err := SanitizePath(`records\items\a:b.dbr`)
	if err != nil {
		t.Fatalf("SanitizePath: %v", err)
	}
	if got != "records/items/a_b.dbr" {
		t.Fatalf("SanitizePath=%q, want records/items/a_b.dbr", got)
	}

	empty, err := SanitizePath("  ")
	if err != nil {
		t.Fatalf("SanitizePath(empty): %v", err)
	}
	if empty != "" {
		t.Fatalf("SanitizePath(empty)=%q, want empty", empty)
	}
}

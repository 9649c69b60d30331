// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"encoding/binary"
	"fmt"
	"iter"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// StringPool maps stable integer IDs to strings of a database string table.
type StringPool struct {
	// ids is reverse lookup; the first occurrence of a string wins.
	ids  map[string]int32
	strs []string
}

// newStringPool builds a pool from strings in ID order.
func newStringPool(strs []string) *StringPool {
	p := &StringPool{
		strs: strs,
		ids:  make(map[string]int32, len(strs)),
	}
	for i, s := range strs {
		if _, ok := p.ids[s]; !ok {
			p.ids[s] = int32(i) //nolint:gosec // pool size bounded by uint32 table count
		}
	}

	return p
}

// Len returns number of strings.
func (p *StringPool) Len() int {
	if p == nil {
		return 0
	}

	return len(p.strs)
}

// Get returns string by ID.
func (p *StringPool) Get(id int32) (string, bool) {
	if p == nil || id < 0 || int(id) >= len(p.strs) {
		return "", false
	}

	return p.strs[id], true
}

// ID returns the lowest ID holding s.
func (p *StringPool) ID(s string) (int32, bool) {
	if p == nil {
		return 0, false
	}

	id, ok := p.ids[s]
	return id, ok
}

// Strings returns a copy of all strings in ID order.
func (p *StringPool) Strings() []string {
	if p == nil {
		return nil
	}

	out := make([]string, len(p.strs))
	copy(out, p.strs)
	return out
}

// All iterates ID and string pairs in ID order.
func (p *StringPool) All() iter.Seq2[int32, string] {
	return func(yield func(int32, string) bool) {
		if p == nil {
			return
		}

		for i, s := range p.strs {
			if !yield(int32(i), s) { //nolint:gosec // bounded by pool size
				return
			}
		}
	}
}

// Search returns IDs of strings containing substr (case-sensitive) in ID order.
// limit <= 0 returns all matches.
func (p *StringPool) Search(substr string, limit int) []int32 {
	if p == nil {
		return nil
	}

	var out []int32
	for i, s := range p.strs {
		if !strings.Contains(s, substr) {
			continue
		}

		out = append(out, int32(i)) //nolint:gosec // bounded by pool size
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	return out
}

// withAppended returns a new pool extended by added strings; p is not modified.
func (p *StringPool) withAppended(added []string) *StringPool {
	if len(added) == 0 {
		return p
	}

	strs := make([]string, 0, len(p.strs)+len(added))
	strs = append(strs, p.strs...)
	strs = append(strs, added...)
	return newStringPool(strs)
}

// poolInterner resolves string IDs against a pool and stages new strings
// without touching the pool until the caller commits them.
type poolInterner struct {
	pool    *StringPool
	pending map[string]int32
	added   []string
}

// newPoolInterner creates an interner over pool.
func newPoolInterner(pool *StringPool) *poolInterner {
	return &poolInterner{pool: pool}
}

// intern returns the ID of s, staging it when absent.
func (in *poolInterner) intern(s string) (int32, error) {
	if id, ok := in.pool.ID(s); ok {
		return id, nil
	}
	if id, ok := in.pending[s]; ok {
		return id, nil
	}

	next := in.pool.Len() + len(in.added)
	if next >= math.MaxInt32 {
		return 0, fmt.Errorf("%w: string pool full", ErrSizeOverflow)
	}
	if in.pending == nil {
		in.pending = make(map[string]int32)
	}

	id := int32(next)
	in.pending[s] = id
	in.added = append(in.added, s)
	return id, nil
}

// lookup resolves id against the pool and staged strings.
func (in *poolInterner) lookup(id int32) (string, bool) {
	if s, ok := in.pool.Get(id); ok {
		return s, true
	}

	i := int(id) - in.pool.Len()
	if i >= 0 && i < len(in.added) {
		return in.added[i], true
	}

	return "", false
}

// decodeStringTable parses one or more `count (len bytes)*count` blocks.
func decodeStringTable(data []byte) ([]string, error) {
	var out []string
	off := 0
	for off < len(data) {
		if len(data)-off < 4 {
			return nil, fmt.Errorf("%w: partial block count at %d", ErrStringPoolCorrupt, off)
		}

		count := binary.LittleEndian.Uint32(data[off:])
		off += 4
		if uint64(count)*4 > uint64(len(data)-off) {
			return nil, fmt.Errorf("%w: block of %d strings exceeds table", ErrStringPoolCorrupt, count)
		}

		for range count {
			if len(data)-off < 4 {
				return nil, fmt.Errorf("%w: partial string length at %d", ErrStringPoolCorrupt, off)
			}

			n := binary.LittleEndian.Uint32(data[off:])
			off += 4
			if uint64(n) > uint64(len(data)-off) {
				return nil, fmt.Errorf("%w: string of %d bytes at %d exceeds table", ErrStringPoolCorrupt, n, off)
			}

			s, err := decodeText(data[off : off+int(n)])
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStringPoolCorrupt, err)
			}

			out = append(out, s)
			off += int(n)
		}
	}

	return out, nil
}

// appendStringBlock appends one string table block holding strs.
func appendStringBlock(dst []byte, strs []string) ([]byte, error) {
	if uint64(len(strs)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d strings", ErrSizeOverflow, len(strs))
	}

	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(strs))) //nolint:gosec // checked above
	for _, s := range strs {
		raw, err := encodeText(s)
		if err != nil {
			return nil, err
		}
		if uint64(len(raw)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: string of %d bytes", ErrSizeOverflow, len(raw))
		}

		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(raw))) //nolint:gosec // checked above
		dst = append(dst, raw...)
	}

	return dst, nil
}

// decodeText converts Windows-1252 bytes to UTF-8.
func decodeText(b []byte) (string, error) {
	if isASCII(b) {
		return string(b), nil
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode windows-1252: %w", err)
	}

	return string(out), nil
}

// encodeText converts UTF-8 to Windows-1252 bytes.
func encodeText(s string) ([]byte, error) {
	if isASCII([]byte(s)) {
		return []byte(s), nil
	}
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: string %q is not valid UTF-8", ErrEncode, s)
	}

	out, err := charmap.Windows1252.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: string %q not representable in windows-1252: %w", ErrEncode, s, err)
	}

	return out, nil
}

// isASCII reports whether b holds only 7-bit bytes.
func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}

	return true
}

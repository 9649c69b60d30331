// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"fmt"
	"io"
	"maps"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// TextMap maps text resource tags to display text.
type TextMap map[string]string

// Lookup returns text for tag.
func (m TextMap) Lookup(tag string) (string, bool) {
	s, ok := m[tag]
	return s, ok
}

// Merge copies all pairs of o into m; o wins on conflicts.
func (m TextMap) Merge(o TextMap) {
	maps.Copy(m, o)
}

// ParseTextResource reads a `tag=value` text resource from r.
func ParseTextResource(r io.Reader) (TextMap, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text resource: %w", err)
	}

	return ParseTextResourceBytes(data)
}

// ParseTextResourceBytes parses a text resource. UTF-16 and UTF-8 are
// detected by BOM, UTF-16LE also by layout; other input is read as
// Windows-1252. Lines are split on CR/LF; blank lines, `//` comments and
// lines without exactly one `=` are skipped. Spaces are removed from values.
func ParseTextResourceBytes(data []byte) (TextMap, error) {
	text, err := decodeTextResource(data)
	if err != nil {
		return nil, err
	}

	m := make(TextMap)
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' })
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "//") {
			continue
		}

		tag, value, ok := strings.Cut(line, "=")
		if !ok || strings.Contains(value, "=") {
			continue
		}

		m[tag] = strings.ReplaceAll(value, " ", "")
	}

	return m, nil
}

// LoadTextArchive parses every entry of a text ARC into one map. Later
// entries win on conflicting tags. Unreadable entries are skipped: the map
// of the readable ones is returned with an *ExtractError listing the rest.
func LoadTextArchive(a *Archive) (TextMap, error) {
	m := make(TextMap)
	var failures []EntryFailure
	for _, key := range a.Keys() {
		data, err := a.ReadEntry(key)
		if err != nil {
			failures = append(failures, EntryFailure{Key: key, Err: err})
			continue
		}

		part, err := ParseTextResourceBytes(data)
		if err != nil {
			failures = append(failures, EntryFailure{Key: key, Err: err})
			continue
		}

		m.Merge(part)
	}

	if len(failures) > 0 {
		return m, &ExtractError{Failures: failures}
	}

	return m, nil
}

// decodeTextResource converts raw resource bytes to UTF-8.
func decodeTextResource(data []byte) (string, error) {
	var fallback encoding.Encoding
	switch {
	case looksUTF16LE(data):
		fallback = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case utf8.Valid(data):
		fallback = unicode.UTF8
	default:
		fallback = charmap.Windows1252
	}

	out, _, err := transform.Bytes(unicode.BOMOverride(fallback.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode text resource: %w", err)
	}

	return string(out), nil
}

// looksUTF16LE reports whether data starts like BOM-less UTF-16LE ASCII text.
func looksUTF16LE(data []byte) bool {
	return len(data) >= 2 && len(data)%2 == 0 && data[0] != 0 && data[1] == 0
}

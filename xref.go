// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"regexp"
	"slices"
	"strings"
)

// recordRefPattern matches record paths embedded in variable text.
var recordRefPattern = regexp.MustCompile(`(?i)records[\\/].*?\.dbr`)

// descriptionVariables are checked in order by Describe.
var descriptionVariables = []string{"description", "itemNameTag", "itemText"}

// RecordRef is one cross reference found in variable text.
type RecordRef struct {
	// Record is the referenced record, nil when the reference dangles.
	Record *Record
	// Path is the normalized referenced record path.
	Path string
}

// FindRecordRefs returns normalized record paths referenced in text in order
// of appearance, without duplicates.
func FindRecordRefs(text string) []string {
	matches := recordRefPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		key := NormalizeRecordPath(m)
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		out = append(out, key)
	}

	return out
}

// ResolveRefs finds record references in text and resolves them with GetItem.
func (d *Database) ResolveRefs(text string) []RecordRef {
	paths := FindRecordRefs(text)
	out := make([]RecordRef, len(paths))
	for i, p := range paths {
		out[i] = RecordRef{Path: p, Record: d.GetItem(p)}
	}

	return out
}

// RecordRefs resolves references in all string variables of rec.
func (d *Database) RecordRefs(rec *Record) []RecordRef {
	var sb strings.Builder
	for _, v := range rec.vars {
		if v.Type() != String {
			continue
		}

		for _, s := range v.strs {
			sb.WriteString(s)
			sb.WriteByte('\n')
		}
	}

	return d.ResolveRefs(sb.String())
}

// Describe returns a display name for rec: the first value (up to `|`) of
// the first variable named description, itemNameTag or itemText in record
// order, mapped through texts when the tag is known.
func Describe(rec *Record, texts TextMap) string {
	if rec == nil {
		return ""
	}

	for _, v := range rec.vars {
		if !slices.Contains(descriptionVariables, v.name) || v.Len() == 0 {
			continue
		}

		tag, _, _ := strings.Cut(v.formatValue(0, false), "|")
		if s, ok := texts.Lookup(tag); ok {
			return s
		}

		return tag
	}

	return ""
}

// LootPair returns the counterpart of a loot table variable: `lootX` pairs
// with `chanceToEquipX` and back.
func LootPair(rec *Record, name string) (*Variable, bool) {
	var suffix, want string
	switch {
	case strings.HasPrefix(name, "chanceToEquip"):
		suffix, want = strings.TrimPrefix(name, "chanceToEquip"), "loot"
	case strings.HasPrefix(name, "loot"):
		suffix, want = strings.TrimPrefix(name, "loot"), "chanceToEquip"
	default:
		return nil, false
	}

	for _, v := range rec.vars {
		if v.name != name && strings.HasPrefix(v.name, want) && strings.HasSuffix(v.name, suffix) {
			return v, true
		}
	}

	return nil, false
}

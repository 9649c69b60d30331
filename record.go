// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"fmt"
	"iter"
	"strings"
)

// Record is an ordered set of variables identified by a record path.
type Record struct {
	// byName maps variable name to its position in vars.
	byName map[string]int
	// Path is the normalized record path.
	Path string
	// Type is the record type tag, opaque to the codec.
	Type string
	// vars keeps insertion order.
	vars []*Variable
}

// NewRecord creates an empty record for path (normalized) and type.
func NewRecord(path, recordType string) *Record {
	return &Record{
		Path:   NormalizeRecordPath(path),
		Type:   recordType,
		byName: make(map[string]int),
	}
}

// Len returns number of variables.
func (r *Record) Len() int {
	return len(r.vars)
}

// Get returns the variable with name (case-sensitive).
func (r *Record) Get(name string) (*Variable, bool) {
	i, ok := r.byName[name]
	if !ok {
		return nil, false
	}

	return r.vars[i], true
}

// Set stores v. An existing variable with the same name is replaced in place
// without reordering; a new name is appended.
func (r *Record) Set(v *Variable) {
	if v == nil {
		return
	}
	if r.byName == nil {
		r.byName = make(map[string]int)
	}

	if i, ok := r.byName[v.name]; ok {
		r.vars[i] = v
		return
	}

	r.byName[v.name] = len(r.vars)
	r.vars = append(r.vars, v)
}

// Delete removes the variable with name and reports whether it was present.
func (r *Record) Delete(name string) bool {
	i, ok := r.byName[name]
	if !ok {
		return false
	}

	r.vars = append(r.vars[:i], r.vars[i+1:]...)
	delete(r.byName, name)
	for j := i; j < len(r.vars); j++ {
		r.byName[r.vars[j].name] = j
	}

	return true
}

// Variables returns variables in order. The slice is a copy; elements are shared.
func (r *Record) Variables() []*Variable {
	out := make([]*Variable, len(r.vars))
	copy(out, r.vars)
	return out
}

// All iterates name and variable pairs in order.
func (r *Record) All() iter.Seq2[string, *Variable] {
	return func(yield func(string, *Variable) bool) {
		for _, v := range r.vars {
			if !yield(v.name, v) {
				return
			}
		}
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := &Record{
		Path:   r.Path,
		Type:   r.Type,
		byName: make(map[string]int, len(r.vars)),
		vars:   make([]*Variable, len(r.vars)),
	}
	for i, v := range r.vars {
		c.vars[i] = v.Clone()
		c.byName[v.name] = i
	}

	return c
}

// Equal reports whether both records have equal path, type and variables in the same order.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Path != o.Path || r.Type != o.Type || len(r.vars) != len(o.vars) {
		return false
	}

	for i := range r.vars {
		if !r.vars[i].Equal(o.vars[i]) {
			return false
		}
	}

	return true
}

// Lines returns the text form of every variable in order.
func (r *Record) Lines() []string {
	out := make([]string, len(r.vars))
	for i, v := range r.vars {
		out[i] = v.String()
	}

	return out
}

// String returns the record text form, one variable per line.
func (r *Record) String() string {
	if len(r.vars) == 0 {
		return ""
	}

	return strings.Join(r.Lines(), "\n") + "\n"
}

// ParseRecordText builds a record from variable text lines. Blank lines are skipped.
func ParseRecordText(path, recordType, text string) (*Record, error) {
	rec := NewRecord(path, recordType)

	lineNo := 0
	for line := range strings.Lines(text) {
		lineNo++
		if strings.TrimSpace(line) == "" {
			continue
		}

		v, err := ParseVariable(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}

		rec.Set(v)
	}

	return rec, nil
}

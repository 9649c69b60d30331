// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"encoding/binary"
	"fmt"
	"math"
)

// stringResolver resolves a string pool ID.
type stringResolver func(id int32) (string, bool)

// decodeRecord decodes a decompressed block into a record. Any inconsistency
// fails the whole record with *MalformedError.
func decodeRecord(path, recordType string, block []byte, resolve stringResolver) (*Record, error) {
	vars, _, err := decodeVariables(path, block, resolve, false)
	if err != nil {
		return nil, err
	}

	return buildRecord(path, recordType, vars), nil
}

// buildRecord assembles a record from decoded variables.
func buildRecord(path, recordType string, vars []*Variable) *Record {
	rec := &Record{
		Path:   path,
		Type:   recordType,
		byName: make(map[string]int, len(vars)),
		vars:   make([]*Variable, 0, len(vars)),
	}
	for _, v := range vars {
		rec.Set(v)
	}

	return rec
}

// decodeVariables walks the variable stream. In lenient mode fixable
// inconsistencies are repaired and described in the returned notes; only
// fatal problems return an error. A repeated variable name is fixable: the
// first occurrence is kept.
func decodeVariables(path string, block []byte, resolve stringResolver, lenient bool) ([]*Variable, []string, error) {
	var (
		vars  []*Variable
		notes []string
		seen  = make(map[string]struct{})
	)

	malformed := func(off int, fixable bool, format string, args ...any) error {
		return &MalformedError{Path: path, Offset: off, Fixable: fixable, Reason: fmt.Sprintf(format, args...)}
	}

	n := len(block)
	if tail := n % 4; tail != 0 {
		if !lenient {
			return nil, nil, malformed(n-tail, true, "block length %d is not a multiple of 4", n)
		}

		notes = append(notes, fmt.Sprintf("dropped %d trailing bytes", tail))
		n -= tail
	}

	off := 0
	for off < n {
		if n-off < variableHeaderSize {
			if !lenient {
				return nil, nil, malformed(off, true, "partial variable header of %d bytes", n-off)
			}

			notes = append(notes, fmt.Sprintf("dropped partial variable header at %d", off))
			break
		}

		start := off
		tag := binary.LittleEndian.Uint16(block[off:])
		count := int(binary.LittleEndian.Uint16(block[off+2:]))
		nameID := int32(binary.LittleEndian.Uint32(block[off+4:])) //nolint:gosec // IDs are raw 32-bit words
		off += variableHeaderSize

		name, ok := resolve(nameID)
		if !ok {
			return nil, nil, malformed(start, false, "name id %d outside string pool", nameID)
		}

		remaining := (n - off) / 4
		switch {
		case count == 0:
			if !lenient {
				return nil, nil, malformed(start, true, "variable %s has zero values", name)
			}

			notes = append(notes, fmt.Sprintf("dropped variable %s with zero values", name))
			continue
		case count > remaining:
			if !lenient {
				return nil, nil, malformed(start, true, "variable %s declares %d values, %d remain", name, count, remaining)
			}
			if remaining == 0 {
				notes = append(notes, fmt.Sprintf("dropped variable %s without values", name))
				off = n
				continue
			}

			notes = append(notes, fmt.Sprintf("clamped variable %s from %d to %d values", name, count, remaining))
			count = remaining
		}

		if _, dup := seen[name]; dup {
			if !lenient {
				return nil, nil, malformed(start, true, "duplicate variable %s", name)
			}

			notes = append(notes, fmt.Sprintf("dropped duplicate variable %s", name))
			off += count * 4
			continue
		}
		seen[name] = struct{}{}

		v, err := decodeValues(nameID, name, tag, block[off:off+count*4], resolve)
		if err != nil {
			return nil, nil, malformed(off, false, "%v", err)
		}

		vars = append(vars, v)
		off += count * 4
	}

	return vars, notes, nil
}

// decodeValues decodes count raw 4-byte words of one variable.
func decodeValues(id int32, name string, tag uint16, raw []byte, resolve stringResolver) (*Variable, error) {
	count := len(raw) / 4
	typ := dataTypeFromTag(tag)

	v := &Variable{id: id, name: name, typ: typ, rawType: tag}
	switch typ {
	case Float:
		v.floats = make([]float32, count)
		for i := range count {
			v.floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case String:
		v.strs = make([]string, count)
		for i := range count {
			sid := int32(binary.LittleEndian.Uint32(raw[i*4:])) //nolint:gosec // IDs are raw 32-bit words
			s, ok := resolve(sid)
			if !ok {
				return nil, fmt.Errorf("variable %s value %d: string id %d outside string pool", name, i, sid)
			}

			v.strs[i] = s
		}
	default:
		v.ints = make([]int32, count)
		for i := range count {
			v.ints[i] = int32(binary.LittleEndian.Uint32(raw[i*4:])) //nolint:gosec // raw 32-bit words
		}
	}

	return v, nil
}

// encodeRecord encodes variables into a block, interning names and string
// values through in. It is the inverse of decodeRecord.
func encodeRecord(rec *Record, in *poolInterner) ([]byte, error) {
	size := 0
	for _, v := range rec.vars {
		if err := v.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", rec.Path, err)
		}

		size += variableHeaderSize + v.Len()*4
	}

	out := make([]byte, 0, size)
	for _, v := range rec.vars {
		nameID, err := resolveNameID(v, in)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rec.Path, err)
		}

		tag := uint16(v.typ)
		if v.typ == Unknown {
			tag = v.rawType
		}

		out = binary.LittleEndian.AppendUint16(out, tag)
		out = binary.LittleEndian.AppendUint16(out, uint16(v.Len())) //nolint:gosec // bounded by validate
		out = binary.LittleEndian.AppendUint32(out, uint32(nameID))  //nolint:gosec // IDs are raw 32-bit words

		switch v.typ {
		case Float:
			for _, f := range v.floats {
				out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
			}
		case String:
			for _, s := range v.strs {
				sid, err := in.intern(s)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", rec.Path, err)
				}

				out = binary.LittleEndian.AppendUint32(out, uint32(sid)) //nolint:gosec // IDs are non-negative
			}
		default:
			for _, x := range v.ints {
				out = binary.LittleEndian.AppendUint32(out, uint32(x)) //nolint:gosec // raw 32-bit words
			}
		}
	}

	return out, nil
}

// resolveNameID reuses the variable ID when it already names v in the pool.
func resolveNameID(v *Variable, in *poolInterner) (int32, error) {
	if s, ok := in.lookup(v.id); ok && s == v.name {
		return v.id, nil
	}

	return in.intern(v.name)
}

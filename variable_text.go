// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Text form delimiters.
const (
	fieldSep = ','
	valueSep = '&'
)

var (
	// textEscaper escapes characters that collide with the text form delimiters.
	textEscaper = strings.NewReplacer("%", "%25", ",", "%2C", "&", "%26", "\r", "%0D", "\n", "%0A")
	// textUnescaper reverses textEscaper; any other % sequence stays literal.
	textUnescaper = strings.NewReplacer("%25", "%", "%2C", ",", "%2c", ",", "%26", "&", "%0D", "\r", "%0d", "\r", "%0A", "\n", "%0a", "\n")
)

// String renders the variable as one text line: name,id,Type,v1&v2&...,
// Names and string values are escaped so the line always parses back.
func (v *Variable) String() string {
	var sb strings.Builder
	sb.Grow(len(v.name) + 16 + v.Len()*8)
	sb.WriteString(textEscaper.Replace(v.name))
	sb.WriteByte(fieldSep)
	sb.WriteString(strconv.FormatInt(int64(v.id), 10))
	sb.WriteByte(fieldSep)
	sb.WriteString(v.typeName())
	sb.WriteByte(fieldSep)
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			sb.WriteByte(valueSep)
		}

		sb.WriteString(v.formatValue(i, true))
	}
	sb.WriteByte(fieldSep)

	return sb.String()
}

// ValuesString renders values for display, joined by ", " and without escaping.
func (v *Variable) ValuesString() string {
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = v.formatValue(i, false)
	}

	return strings.Join(parts, ", ")
}

// typeName returns the text form type token, keeping non-canonical Unknown tags.
func (v *Variable) typeName() string {
	if v.typ == Unknown && v.rawType != uint16(Unknown) {
		return "Unknown:" + strconv.FormatUint(uint64(v.rawType), 10)
	}

	return v.typ.String()
}

// formatValue renders value i.
func (v *Variable) formatValue(i int, escape bool) string {
	switch v.typ {
	case Float:
		return formatFloat(v.floats[i])
	case String:
		if escape {
			return textEscaper.Replace(v.strs[i])
		}
		return v.strs[i]
	default:
		return strconv.FormatInt(int64(v.ints[i]), 10)
	}
}

// ParseVariable parses one text line produced by Variable.String.
// The trailing field separator is optional.
func ParseVariable(line string) (*Variable, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, string(fieldSep))
	if len(fields) < 4 {
		return nil, fmt.Errorf("%w: %q: want name,id,type,values", ErrInvalidVariableText, line)
	}
	if len(fields) > 5 || (len(fields) == 5 && fields[4] != "") {
		return nil, fmt.Errorf("%w: %q: unexpected field after values", ErrInvalidVariableText, line)
	}

	name := textUnescaper.Replace(fields[0])
	if name == "" {
		return nil, fmt.Errorf("%w: %q: empty name", ErrInvalidVariableText, line)
	}

	id, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: id: %w", ErrInvalidVariableText, line, err)
	}

	typ, tag, err := parseTypeName(strings.TrimSpace(fields[2]))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidVariableText, line, err)
	}

	raw := strings.Split(fields[3], string(valueSep))
	v, err := NewVariable(int32(id), name, typ, len(raw))
	if err != nil {
		return nil, err
	}
	v.rawType = tag

	if err := v.parseValues(raw, true); err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidVariableText, line, err)
	}

	return v, nil
}

// ParseValues replaces all values from CR/LF separated text. Unlike element
// setters, the value count follows the text; empty lines are ignored.
func (v *Variable) ParseValues(text string) error {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' })
	if len(raw) == 0 {
		return fmt.Errorf("%w: %s: no values", ErrInvalidVariableText, v.name)
	}

	next := &Variable{id: v.id, name: v.name, typ: v.typ, rawType: v.rawType}
	switch v.typ {
	case Float:
		next.floats = make([]float32, len(raw))
	case String:
		next.strs = make([]string, len(raw))
	default:
		next.ints = make([]int32, len(raw))
	}

	if err := next.parseValues(raw, false); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidVariableText, v.name, err)
	}

	*v = *next
	return nil
}

// parseValues fills pre-sized value slices from text tokens.
func (v *Variable) parseValues(raw []string, unescape bool) error {
	for i, token := range raw {
		switch v.typ {
		case Float:
			f, err := strconv.ParseFloat(strings.TrimSpace(token), 32)
			if err != nil {
				return fmt.Errorf("value %d: %w", i, err)
			}
			v.floats[i] = float32(f)
		case String:
			if unescape {
				token = textUnescaper.Replace(token)
			}
			v.strs[i] = token
		default:
			n, err := strconv.ParseInt(strings.TrimSpace(token), 10, 64)
			if err != nil {
				return fmt.Errorf("value %d: %w", i, err)
			}
			if n < math.MinInt32 || n > math.MaxUint32 {
				return fmt.Errorf("value %d: %d out of 32-bit range", i, n)
			}
			v.ints[i] = int32(n) //nolint:gosec // unsigned payloads wrap into raw words
		}
	}

	return nil
}

// parseTypeName parses a text type token into DataType and on-disk tag.
func parseTypeName(s string) (DataType, uint16, error) {
	switch strings.ToLower(s) {
	case "integer", "int":
		return Integer, uint16(Integer), nil
	case "float":
		return Float, uint16(Float), nil
	case "stringvar", "string":
		return String, uint16(String), nil
	case "boolean", "bool":
		return Boolean, uint16(Boolean), nil
	case "unknown":
		return Unknown, uint16(Unknown), nil
	}

	if rest, ok := strings.CutPrefix(s, "Unknown:"); ok {
		tag, err := strconv.ParseUint(rest, 10, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("unknown tag %q: %w", rest, err)
		}

		return Unknown, uint16(tag), nil
	}

	return 0, 0, fmt.Errorf("unknown type %q", s)
}

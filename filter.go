// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// pathMatcher holds compiled path selection rules.
type pathMatcher struct {
	matcher *pathrules.Matcher
}

// newPathMatcher compiles rules. It returns nil when no usable rule remains.
func newPathMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*pathMatcher, error) {
	rules = normalizeRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidRules, err)
	}

	return &pathMatcher{matcher: matcher}, nil
}

// normalizeRules normalizes rule patterns and drops empty patterns.
func normalizeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether path is included by the rules. A nil matcher includes everything.
func (m *pathMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return true
	}

	candidate := NormalizePath(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// entrySelector combines extraction filters: exact keys, directory prefix and rules.
type entrySelector struct {
	keys    map[string]struct{}
	matcher *pathMatcher
	prefix  string
}

// newEntrySelector builds a selector from extract options.
func newEntrySelector(opts ExtractOptions) (*entrySelector, error) {
	matcher, err := newPathMatcher(opts.Rules, opts.MatcherOptions)
	if err != nil {
		return nil, err
	}

	s := &entrySelector{matcher: matcher, prefix: prefixKey(opts.Prefix)}
	if opts.Keys != nil {
		s.keys = make(map[string]struct{}, len(opts.Keys))
		for _, k := range opts.Keys {
			s.keys[k] = struct{}{}
		}
	}

	return s, nil
}

// Selected reports whether key passes every configured filter.
func (s *entrySelector) Selected(key string) bool {
	if s.keys != nil {
		if _, ok := s.keys[key]; !ok {
			return false
		}
	}

	if !underPrefix(prefixKey(key), s.prefix) {
		return false
	}

	return s.matcher.Match(key)
}

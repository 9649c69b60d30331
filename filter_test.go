// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"errors"
	"strings"
	"testing"

	"github.com/woozymasta/pathrules"
)

// includeRules builds include rules from raw patterns for concise test setup.
func includeRules(patterns ...string) []pathrules.Rule {
	rules := make([]pathrules.Rule, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}

		rules = append(rules, pathrules.Rule{
			Action:  pathrules.ActionInclude,
			Pattern: pattern,
		})
	}

	return rules
}

func TestPathMatcherMatch(t *testing.T) {
	t.Parallel()

	matcher, err := newPathMatcher(includeRules(
		"*.tex",
		"sounds/",
		"/text/**/*.txt",
	), pathrules.MatcherOptions{
		CaseInsensitive: true,
		DefaultAction:   pathrules.ActionExclude,
	})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	cases := []struct {
		name string
		path string
		want bool
	}{
		{name: "extension rule", path: `items\swords\a.TEX`, want: true},
		{name: "dir-only rule", path: "fx/sounds/hit.wav", want: true},
		{name: "anchored root match", path: "text/en/ui.txt", want: true},
		{name: "anchored root miss", path: "x/text/en/ui.txt", want: false},
		{name: "no match", path: "meshes/a.msh", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := matcher.Match(tc.path)
			if got != tc.want {
				t.Fatalf("Match(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestPathMatcherEmptyRulesIncludeAll(t *testing.T) {
	t.Parallel()

	matcher, err := newPathMatcher(includeRules("  ", ""), pathrules.MatcherOptions{})
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	if matcher != nil {
		t.Fatal("expected nil matcher for empty rules")
	}
	if !matcher.Match("any/thing.bin") {
		t.Fatal("nil matcher must include everything")
	}
}

func TestEntrySelector(t *testing.T) {
	t.Parallel()

	opts := ExtractOptions{
		Prefix: "Items",
		Rules:  includeRules("*.tex"),
	}
	opts.applyDefaults()

	sel, err := newEntrySelector(opts)
	if err != nil {
		t.Fatalf("newEntrySelector: %v", err)
	}

	cases := map[string]bool{
		"items/sword.tex":     true,
		`ITEMS\axe\axe.tex`:   true,
		"items/sword.msh":     false,
		"itemsextra/a.tex":    false,
		"creatures/items.tex": false,
	}
	for key, want := range cases {
		if got := sel.Selected(key); got != want {
			t.Fatalf("Selected(%q)=%v, want %v", key, got, want)
		}
	}

	opts.Keys = []string{"items/sword.tex"}
	sel, err = newEntrySelector(opts)
	if err != nil {
		t.Fatalf("newEntrySelector keys: %v", err)
	}
	if sel.Selected(`ITEMS\axe\axe.tex`) {
		t.Fatal("key allow-list not applied")
	}
	if !sel.Selected("items/sword.tex") {
		t.Fatal("listed key rejected")
	}
}

func TestEntrySelectorInvalidRules(t *testing.T) {
	t.Parallel()

	_, err := newEntrySelector(ExtractOptions{
		Rules:          []pathrules.Rule{{Action: pathrules.ActionUnknown, Pattern: "*.tex"}},
		MatcherOptions: pathrules.MatcherOptions{DefaultAction: pathrules.ActionExclude},
	})
	if !errors.Is(err, ErrInvalidRules) {
		t.Fatalf("expected ErrInvalidRules, got %v", err)
	}
}

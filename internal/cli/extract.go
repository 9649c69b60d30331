// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/woozymasta/pathrules"
	"github.com/woozymasta/tqarchive"
)

func newExtractCmd(a *app) *cobra.Command {
	var (
		include []string
		exclude []string
		prefix  string
		mode    string
	)

	cmd := &cobra.Command{
		Use:   "extract <file> <dir>",
		Short: "Extract archive entries or database records to a directory",
		Long: "Extract writes archive entries as files and database records as variable text.\n" +
			"Include and exclude patterns use gitignore syntax and are matched case-insensitively.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, matcherOpts := extractRules(include, exclude)

			var count, written atomic.Int64
			opts := tqarchive.ExtractOptions{
				Prefix:         prefix,
				Rules:          rules,
				MatcherOptions: matcherOpts,
				FileMode:       tqarchive.ExtractFileMode(mode),
				MaxWorkers:     a.v.GetInt("extract.workers"),
				RawNames:       a.v.GetBool("extract.raw_names"),
				OnEntryDone: func(key string, n int64, outputPath string) {
					count.Add(1)
					written.Add(n)
					a.log.Debug().Str("entry", key).Str("path", outputPath).Int64("bytes", n).Msg("extracted")
				},
			}

			if err := a.extract(cmd, args[0], args[1], opts); err != nil {
				var extractErr *tqarchive.ExtractError
				if errors.As(err, &extractErr) {
					for _, f := range extractErr.Failures {
						a.log.Error().Str("entry", f.Key).Err(f.Err).Msg("extract failed")
					}
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "extracted %d entries, %s\n", count.Load(), humanize.IBytes(uint64(written.Load()))) //nolint:gosec // byte counts are non-negative
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&include, "include", "i", nil, "Include pattern (repeatable)")
	cmd.Flags().StringArrayVarP(&exclude, "exclude", "e", nil, "Exclude pattern (repeatable)")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Extract only entries under this directory")
	cmd.Flags().StringVar(&mode, "mode", string(tqarchive.ExtractFileModeTruncate), "Existing file policy: truncate, create_only or skip_existing")
	cmd.Flags().IntP("workers", "w", 0, "Worker count (default: GOMAXPROCS)")
	cmd.Flags().Bool("raw-names", false, "Keep entry names as stored instead of sanitizing them")
	_ = a.v.BindPFlag("extract.workers", cmd.Flags().Lookup("workers"))
	_ = a.v.BindPFlag("extract.raw_names", cmd.Flags().Lookup("raw-names"))

	return cmd
}

func (a *app) extract(cmd *cobra.Command, path, dstDir string, opts tqarchive.ExtractOptions) error {
	kind, err := detect(path)
	if err != nil {
		return err
	}

	if kind == tqarchive.KindArchive {
		arc, err := a.openArchive(path)
		if err != nil {
			return err
		}
		defer func() { _ = arc.Close() }()

		return arc.Extract(cmd.Context(), dstDir, opts)
	}

	db, closeDB, err := a.openDatabase(path)
	if err != nil {
		return err
	}
	defer closeDB()

	return db.Extract(cmd.Context(), dstDir, opts)
}

// extractRules builds selection rules from include and exclude patterns.
// Without include patterns every entry not excluded is selected.
func extractRules(include, exclude []string) ([]pathrules.Rule, pathrules.MatcherOptions) {
	opts := pathrules.MatcherOptions{CaseInsensitive: true, DefaultAction: pathrules.ActionExclude}
	if len(include) == 0 {
		opts.DefaultAction = pathrules.ActionInclude
	}

	rules := make([]pathrules.Rule, 0, len(include)+len(exclude))
	for _, p := range include {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionInclude, Pattern: p})
	}
	for _, p := range exclude {
		rules = append(rules, pathrules.Rule{Action: pathrules.ActionExclude, Pattern: p})
	}

	return rules, opts
}

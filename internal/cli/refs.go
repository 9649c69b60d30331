// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/woozymasta/tqarchive"
)

func newRefsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refs <file.arz> <record>",
		Short: "List records referenced by a record",
		Long: "Refs resolves every record path found in string variables and prints the\n" +
			"display name of each target, translated through --text when given.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			texts, err := a.loadTexts()
			if err != nil {
				return err
			}

			db, closeDB, err := a.openDatabase(args[0])
			if err != nil {
				return err
			}
			defer closeDB()

			rec, err := db.GetRecord(args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, ref := range db.RecordRefs(rec) {
				if ref.Record == nil {
					fmt.Fprintf(out, "%s\t(missing)\n", ref.Path)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", ref.Path, ref.Record.Type, tqarchive.Describe(ref.Record, texts))
			}

			for _, v := range rec.Variables() {
				if v.Type() != tqarchive.String {
					continue
				}
				if pair, ok := tqarchive.LootPair(rec, v.Name()); ok {
					fmt.Fprintf(out, "%s\t%s=%s\n", v.Name(), pair.Name(), pair.ValuesString())
				}
			}

			return nil
		},
	}

	cmd.Flags().StringP("text", "t", "", "Text ARC used to translate tags (default from text.archive)")
	_ = a.v.BindPFlag("text.archive", cmd.Flags().Lookup("text"))

	return cmd
}

// loadTexts reads the configured text archive; an empty map when none is set.
func (a *app) loadTexts() (tqarchive.TextMap, error) {
	path := a.v.GetString("text.archive")
	if path == "" {
		return tqarchive.TextMap{}, nil
	}

	arc, err := a.openArchive(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = arc.Close() }()

	texts, err := tqarchive.LoadTextArchive(arc)
	var extractErr *tqarchive.ExtractError
	switch {
	case errors.As(err, &extractErr):
		for _, f := range extractErr.Failures {
			a.log.Warn().Err(f.Err).Str("archive", path).Str("entry", f.Key).Msg("text resource skipped")
		}
	case err != nil:
		return nil, err
	}

	a.log.Debug().Str("archive", path).Int("tags", len(texts)).Msg("text resources loaded")
	return texts, nil
}

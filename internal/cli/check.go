// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/woozymasta/tqarchive"
)

func newCheckCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Decode every archive entry or database record and report failures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := detect(args[0])
			if err != nil {
				return err
			}

			var (
				failures []tqarchive.EntryFailure
				total    int
			)
			if kind == tqarchive.KindArchive {
				failures, total, err = a.checkArchive(cmd, args[0])
			} else {
				failures, total, err = a.checkDatabase(cmd, args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, f := range failures {
				fmt.Fprintf(out, "%s\t%v\n", f.Key, f.Err)
			}
			fmt.Fprintf(out, "checked %d, failed %d\n", total, len(failures))

			if len(failures) > 0 {
				return fmt.Errorf("%d of %d entries failed", len(failures), total)
			}
			return nil
		},
	}

	cmd.Flags().IntP("workers", "w", 0, "Worker count (default from extract.workers)")

	return cmd
}

func (a *app) checkArchive(cmd *cobra.Command, path string) ([]tqarchive.EntryFailure, int, error) {
	arc, err := a.openArchive(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = arc.Close() }()

	var failures []tqarchive.EntryFailure
	keys := arc.Keys()
	for _, key := range keys {
		if err := cmd.Context().Err(); err != nil {
			return nil, 0, err
		}

		if _, err := arc.ReadEntry(key); err != nil {
			failures = append(failures, tqarchive.EntryFailure{Key: key, Err: err})
		}
	}

	return failures, len(keys), nil
}

func (a *app) checkDatabase(cmd *cobra.Command, path string) ([]tqarchive.EntryFailure, int, error) {
	db, closeDB, err := a.openDatabase(path)
	if err != nil {
		return nil, 0, err
	}
	defer closeDB()

	workers := a.cfg.Extract.Workers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}

	failures, err := db.Check(cmd.Context(), workers)
	return failures, db.Len(), err
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/woozymasta/tqarchive"
)

func newLsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <file> [prefix]",
		Short: "List archive entries or database records",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 2 {
				prefix = args[1]
			}

			kind, err := detect(args[0])
			if err != nil {
				return err
			}

			if kind == tqarchive.KindArchive {
				return a.lsArchive(cmd, args[0], prefix)
			}
			return a.lsDatabase(cmd, args[0], prefix)
		},
	}
}

func (a *app) lsArchive(cmd *cobra.Command, path, prefix string) error {
	arc, err := a.openArchive(path)
	if err != nil {
		return err
	}
	defer func() { _ = arc.Close() }()

	out := cmd.OutOrStdout()
	var total uint64
	entries := arc.Prefix(prefix)
	for i := range entries {
		e := &entries[i]
		storage := "stored"
		if e.IsCompressed() {
			storage = humanize.IBytes(uint64(e.StoredSize))
		}

		fmt.Fprintf(out, "%10s %10s  %s\n", humanize.IBytes(uint64(e.Size)), storage, e.Key)
		total += uint64(e.Size)
	}

	fmt.Fprintf(out, "%d entries, %s\n", len(entries), humanize.IBytes(total))
	return nil
}

func (a *app) lsDatabase(cmd *cobra.Command, path, prefix string) error {
	db, closeDB, err := a.openDatabase(path)
	if err != nil {
		return err
	}
	defer closeDB()

	out := cmd.OutOrStdout()
	records := db.Prefix(prefix)
	for i := range records {
		r := &records[i]
		fmt.Fprintf(out, "%-28s %10s  %s\n", r.Type, humanize.IBytes(uint64(r.StoredSize)), r.Path)
	}

	fmt.Fprintf(out, "%d records, %s format\n", len(records), db.Layout())
	return nil
}

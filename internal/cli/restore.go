// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/woozymasta/tqarchive"
)

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <file.arz> <record>",
		Short: "Restore a record to its pristine stored form",
		Long: "Restore needs the pristine bytes of the record kept by database.snapshot_store;\n" +
			"without a store it fails with no backup available.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Each run opens the file fresh, so without a store the only
			// pristine copy is the file as it is now.
			if a.cfg.Database.SnapshotStore == "" {
				return fmt.Errorf("%w: %s: database.snapshot_store is not set", tqarchive.ErrNoBackup, args[1])
			}

			db, closeDB, err := a.openDatabase(args[0])
			if err != nil {
				return err
			}
			defer closeDB()

			rec, err := db.RestorePath(args[1])
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), rec.String())
			return err
		},
	}
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/woozymasta/tqarchive"
)

func newCatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <file> <key>",
		Short: "Print an archive entry or a database record as text",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := detect(args[0])
			if err != nil {
				return err
			}

			if kind == tqarchive.KindArchive {
				arc, err := a.openArchive(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = arc.Close() }()

				rc, err := arc.OpenEntry(args[1])
				if err != nil {
					return err
				}
				defer func() { _ = rc.Close() }()

				_, err = io.Copy(cmd.OutOrStdout(), rc)
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

			_, err = fmt.Fprint(cmd.OutOrStdout(), rec.String())
			return err
		},
	}
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStringsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strings <file.arz> [substr]",
		Short: "Search the database string pool",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			substr := ""
			if len(args) == 2 {
				substr = args[1]
			}

			db, closeDB, err := a.openDatabase(args[0])
			if err != nil {
				return err
			}
			defer closeDB()

			out := cmd.OutOrStdout()
			for _, m := range db.SearchStrings(substr, a.v.GetInt("search.limit")) {
				fmt.Fprintf(out, "%d\t%s\n", m.ID, m.Value)
			}

			return nil
		},
	}

	cmd.Flags().IntP("limit", "l", 0, "Max results, 0 for unlimited (default from search.limit)")
	_ = a.v.BindPFlag("search.limit", cmd.Flags().Lookup("limit"))

	return cmd
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newFixCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fix <file.arz>",
		Short: "Repair malformed database records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := a.openDatabase(args[0])
			if err != nil {
				return err
			}
			defer closeDB()

			report, err := db.Fix()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range report.Repairs {
				fmt.Fprintf(out, "fixed\t%s\t%s\n", r.Path, strings.Join(r.Notes, "; "))
			}
			for _, f := range report.Failures {
				fmt.Fprintf(out, "failed\t%s\t%v\n", f.Key, f.Err)
			}
			fmt.Fprintf(out, "scanned %d, repaired %d, failed %d\n", report.Scanned, report.Repaired, len(report.Failures))

			if n := len(report.Failures); n > 0 {
				return fmt.Errorf("%d records cannot be repaired", n)
			}
			return nil
		},
	}
}

// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/woozymasta/tqarchive"
)

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <file.arz> <record> <line>...",
		Short: "Replace record variables from text lines and save",
		Long: "Each line has the form name,id,Type,value&value, as printed by cat.\n" +
			"Variables missing from the record are appended.",
		Example: `  tqarz set database.arz records/items/sword01.dbr 'itemLevel,1,Integer,42,'`,
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := make([]*tqarchive.Variable, 0, len(args)-2)
			for _, line := range args[2:] {
				v, err := tqarchive.ParseVariable(line)
				if err != nil {
					return err
				}
				vars = append(vars, v)
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

			for _, v := range vars {
				rec.Set(v)
			}
			if err := db.Save(rec); err != nil {
				return err
			}

			a.log.Info().Str("record", rec.Path).Int("variables", len(vars)).Msg("record saved")
			_, err = fmt.Fprint(cmd.OutOrStdout(), rec.String())
			return err
		},
	}
}

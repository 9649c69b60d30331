// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

// Package cli implements the tqarz commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/woozymasta/tqarchive"
	"github.com/woozymasta/tqarchive/internal/config"
)

// app is the state shared by all commands of one invocation.
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	log        zerolog.Logger
	configPath string
}

// Execute runs tqarz with os.Args and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	return 0
}

// NewRootCmd builds the tqarz command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New(), log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "tqarz",
		Short: "Inspect and edit Titan Quest ARC archives and ARZ databases",
		Long: "tqarz lists, extracts and verifies ARC resource archives and ARZ record databases,\n" +
			"and edits, restores and repairs database records in place.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default: ./tqarz.yaml or ~/.config/tqarz/tqarz.yaml)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	_ = a.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(
		newLsCmd(a),
		newCatCmd(a),
		newExtractCmd(a),
		newStringsCmd(a),
		newSetCmd(a),
		newRestoreCmd(a),
		newFixCmd(a),
		newCheckCmd(a),
		newRefsCmd(a),
	)

	return root
}

// init loads configuration and sets up the stderr logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}

	lvl, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return nil
}

// openArchive opens an ARC file with the command logger.
func (a *app) openArchive(path string) (*tqarchive.Archive, error) {
	return tqarchive.OpenArchiveWithOptions(path, tqarchive.ArchiveOptions{Logger: &a.log})
}

// openDatabase opens an ARZ file with the configured backups and snapshot
// store. The returned function closes both.
func (a *app) openDatabase(path string) (*tqarchive.Database, func(), error) {
	opts := tqarchive.DatabaseOptions{
		Logger:     &a.log,
		BackupKeep: a.cfg.Database.BackupKeep,
	}

	var store *tqarchive.BoltSnapshotStore
	if storePath := a.cfg.Database.SnapshotStore; storePath != "" {
		s, err := tqarchive.OpenBoltSnapshotStore(storePath)
		if err != nil {
			return nil, nil, err
		}

		store = s
		opts.Store = s
	}

	db, err := tqarchive.OpenDatabaseWithOptions(path, opts)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, nil, err
	}

	return db, func() {
		_ = db.Close()
		if store != nil {
			_ = store.Close()
		}
	}, nil
}

// detect reports the container kind of path.
func detect(path string) (tqarchive.Kind, error) {
	kind, err := tqarchive.DetectKind(path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	return kind, nil
}

package main

import (
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/yieldwise/internal/config"
	"github.com/suPer8Hu/yieldwise/internal/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			gdb, err := db.Connect(cfg)
			if err != nil {
				return err
			}
			if err := db.Migrate(gdb); err != nil {
				return err
			}
			log.Info("schema up to date")
			return nil
		},
	}
}

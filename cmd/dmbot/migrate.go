package main

import (
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/dmbot/internal/app"
	"github.com/suPer8Hu/dmbot/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log, err := app.Logger(cfg)
		if err != nil {
			return err
		}
		_, closeDB, err := app.Repo(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer closeDB()
		log.Info("schema up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

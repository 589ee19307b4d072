package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dmbot",
	Short: "dmbot is an AI dungeon master for D&D campaigns",
	Long: `dmbot runs D&D campaigns over Telegram and a JSON API, narrating each turn
with a language model and keeping campaigns, sessions and dice rolls in a database.

Configuration comes from the environment (DATABASE_URL, TELEGRAM_BOT_TOKEN, AI_PROVIDER, ...).`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/dmbot/internal/dice"
)

var rollCmd = &cobra.Command{
	Use:     "roll <expression>",
	Short:   "Roll dice locally, e.g. dmbot roll 2d6+3",
	Args:    cobra.MinimumNArgs(1),
	Example: "  dmbot roll d20\n  dmbot roll 4d6-1 --json",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		expr := strings.Join(args, "")

		res, err := dice.NewResolver(nil).Resolve(expr)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", expr, res.Breakdown())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollCmd)
	rollCmd.Flags().Bool("json", false, "Print the result as JSON")
}

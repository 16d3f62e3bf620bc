package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schoolline/internal/client"
)

var turnsCmd = &cobra.Command{
	Use:     "turns",
	Short:   "List recently handled USSD turns",
	GroupID: "ops",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")

		req := &client.ListTurnsRequest{Limit: limit}
		if since > 0 {
			req.Since = time.Now().Add(-since)
		}
		turns, err := slClient.ListTurns(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing turns: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), turns)
		}
		return printTurnsTable(cmd.OutOrStdout(), turns)
	},
}

func init() {
	turnsCmd.Flags().Int("limit", 20, "maximum number of turns to show")
	turnsCmd.Flags().Duration("since", 0, "only show turns newer than this, e.g. 1h")
}

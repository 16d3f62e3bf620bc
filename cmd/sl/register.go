package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schoolline/internal/model"
)

var registerCmd = &cobra.Command{
	Use:     "register <short-code> <callback-url>",
	Short:   "Register a USSD short code binding",
	GroupID: "ussd",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("description")
		resp, err := slClient.Register(context.Background(), &model.Registration{
			ShortCode:   args[0],
			CallbackURL: args[1],
			Description: desc,
		})
		if err != nil {
			return fmt.Errorf("registering: %w", err)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(out, resp); err != nil {
				return err
			}
		} else if resp.Success && resp.Data != nil {
			fmt.Fprintln(out, resp.Message)
			fmt.Fprintf(out, "Short code:  %s\n", resp.Data.ShortCode)
			fmt.Fprintf(out, "Provider:    %s\n", resp.Data.Provider)
			fmt.Fprintf(out, "Webhook:     %s\n", resp.Data.WebhookEndpoint)
			fmt.Fprintf(out, "Registered:  %s\n", resp.Data.RegisteredAt.Local().Format("2006-01-02 15:04:05"))
		} else {
			for _, fe := range resp.Errors {
				fmt.Fprintf(out, "  %s: %s\n", fe.Field, fe.Message)
			}
		}

		if !resp.Success {
			return fmt.Errorf("registration rejected: %s", resp.Message)
		}
		return nil
	},
}

func init() {
	registerCmd.Flags().String("description", "", "service description (default: "+model.DefaultRegistrationDescription+")")
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schoolline/internal/client"
)

var (
	serverURL  string
	authToken  string
	jsonOutput bool

	slClient client.Client
)

func defaultServerURL() string {
	if s := os.Getenv("SL_URL"); s != "" {
		return s
	}
	if u := activeRemoteURL(); u != "" {
		return u
	}
	return "http://localhost:8080"
}

func defaultToken() string {
	if s := os.Getenv("SL_AUTH_TOKEN"); s != "" {
		return s
	}
	return activeRemoteToken()
}

var rootCmd = &cobra.Command{
	Use:   "sl <command>",
	Short: "USSD menu service for school fee and results lookups",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slClient = client.NewHTTPClient(serverURL, authToken)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if slClient != nil {
			slClient.Close()
		}
	},
	SilenceUsage: true,
}

// skipClient is used by commands that never talk to a running server.
func skipClient(*cobra.Command, []string) error { return nil }

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", defaultServerURL(), "server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", defaultToken(), "bearer token for /v1 endpoints")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "ussd", Title: "USSD:"},
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// USSD
	rootCmd.AddCommand(dialCmd)
	rootCmd.AddCommand(registerCmd)

	// Operations
	rootCmd.AddCommand(turnsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(healthCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

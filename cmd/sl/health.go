package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schoolline/internal/client"
	"github.com/alfredjeanlab/schoolline/internal/server"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the schoolline service",
	GroupID: "ops",
	Long: `Check the health of the schoolline service.

By default GET /v1/health is queried. With --grpc the standard gRPC
health service is asked instead, which is what load balancers probe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		out := cmd.OutOrStdout()

		if useGRPC, _ := cmd.Flags().GetBool("grpc"); useGRPC {
			addr, _ := cmd.Flags().GetString("grpc-addr")
			status, err := client.CheckGRPCHealth(ctx, addr, server.ServiceName)
			if err != nil {
				return fmt.Errorf("checking health: %w", err)
			}
			if jsonOutput {
				if err := printJSON(out, map[string]string{"status": status}); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Health: %s\n", status)
			}
			if status != "SERVING" {
				return fmt.Errorf("unhealthy: %s", status)
			}
			return nil
		}

		resp, err := slClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(out, resp); err != nil {
				return err
			}
		} else {
			printHealth(out, resp)
		}
		if !resp.OK() {
			return fmt.Errorf("unhealthy: %s", resp.Status)
		}
		return nil
	},
}

func defaultGRPCAddr() string {
	if a := activeRemoteGRPCAddr(); a != "" {
		return a
	}
	return "localhost:9090"
}

func init() {
	healthCmd.Flags().Bool("grpc", false, "query the gRPC health service instead of HTTP")
	healthCmd.Flags().String("grpc-addr", defaultGRPCAddr(), "gRPC health address")
}

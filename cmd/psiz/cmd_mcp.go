package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/psiz/internal/mcp"
)

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
psiz_describe, psiz_probability, psiz_simulate and psiz_list tools.

Model files must live under the project root or ~/.psiz. Tool calls are
recorded in audit.jsonl next to the trial-set database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("failed to resolve root: %w", err)
			}
			cfg := loadConfig()
			dir, err := storeDir(cfg)
			if err != nil {
				return fmt.Errorf("failed to resolve store directory: %w", err)
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "psiz",
				Version:  version,
				Root:     absRoot,
				StoreDir: dir,
				Seed:     cfg.Simulation.Seed,
				Workers:  cfg.Simulation.Workers,
				Logger:   slog.Default(),
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(context.Background())
		},
	}
}

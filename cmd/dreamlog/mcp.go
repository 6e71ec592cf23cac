package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamlog/dreamlog/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server",
		Long:  "Start the Model Context Protocol server for dreamlog on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			server, err := mcp.NewServer(ctx, dbPath, version, baseLogger())
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(ctx)
		},
	}

	return cmd
}

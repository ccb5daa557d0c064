package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/searchsync/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

By default, the server communicates over stdio using JSON-RPC. It exposes
the search, autocomplete, trigger_sync and analytics tools, plus sync
status and analytics resources. The periodic scheduler is not started;
use "searchsync serve" for that.

Examples:
  # Stdio mode (default)
  searchsync mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  searchsync mcp serve --port 8765`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	a, err := requireApp()
	if err != nil {
		return err
	}
	if err := a.Engine.EnsureIndices(cmd.Context()); err != nil {
		return fmt.Errorf("ensure indices: %w", err)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search:    a.Search,
		Suggest:   a.Suggest,
		Scheduler: a.Scheduler,
		Analytics: a.Analytics,
	})
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}

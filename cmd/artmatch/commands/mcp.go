// ABOUTME: MCP command starts the Model Context Protocol server
// ABOUTME: Lets LLM agents identify artworks and browse the catalog over stdio
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/harper/artmatch/internal/gallery"
	"github.com/harper/artmatch/internal/logging"
	"github.com/harper/artmatch/internal/mcp"
	"github.com/harper/artmatch/internal/scan"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs artmatch as an MCP (Model Context Protocol) server, enabling
LLM agents like Claude to identify artworks and browse the gallery
catalog via stdio.

Logs go to stderr so they never corrupt the protocol stream.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically called by Claude Desktop)
  artmatch mcp

  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "artmatch": {
  #       "command": "artmatch",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, setupOptions{embedder: true, store: true})
	if err != nil {
		return err
	}
	defer a.Close()

	mcpLog := logging.Component(a.log, "mcp")
	builder := gallery.NewBuilder(a.catalog, a.embedder, a.store,
		gallery.WithConcurrency(a.cfg.IndexConcurrency),
		gallery.WithLogger(logging.Component(a.log, "gallery")))

	handlers := mcp.NewHandlers(a.catalog, a.embedder, a.store,
		scan.Policy{Threshold: a.cfg.MatchThreshold}, builder, mcpLog)

	server := mcpserver.NewMCPServer(mcp.ServerName, versionInfo.Version)
	mcp.RegisterTools(server, handlers)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mcpLog.Info().
		Str("model", a.embedder.Model()).
		Str("catalog", a.catalog.BaseURL()).
		Msg("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		mcpLog.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	return nil
}

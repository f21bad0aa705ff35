package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/standardbeagle/gnm/internal/daemon"
	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/tools"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

const serverName = "gnm"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the dictionary and rewriting tools over MCP (stdio)",
	Long: `Run an MCP server on stdin/stdout exposing resolve, search, rewrite,
rule, sync, toggle and status.

With --proxy the rewriting proxy runs alongside, so tool calls refresh
pages open through it.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

var mcpProxy bool

func init() {
	mcpCmd.Flags().BoolVar(&mcpProxy, "proxy", false, "Also run the rewriting proxy")

	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dc := daemon.FromConfig(cfg)
	dc.EnableProxy = mcpProxy
	d, err := daemon.New(dc)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		d.Stop(shutdownCtx)
	}()

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: daemon.Version,
		},
		&mcp.ServerOptions{
			Instructions: tools.Instructions,
		},
	)
	tools.RegisterAll(server, tools.NewDaemonTools(d))

	debug.Info("cli", "starting %s v%s (mcp)", serverName, daemon.Version)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/standardbeagle/gnm/internal/daemon"
	"github.com/standardbeagle/gnm/internal/debug"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rewriting proxy and the background sync",
	Long: `Run a reverse proxy in front of GitHub that rewrites usernames in every
HTML page, injects the @@ mention client and reloads open pages whenever
the dictionary or the switches change.

Browse http://127.0.0.1:<port>/ instead of the target. Changes made with
other gnm commands are picked up immediately.

Examples:
  gnm serve
  gnm serve --target https://ghe.example.com --port 18091`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveTarget string
	servePort   int
	serveNoSync bool
)

func init() {
	serveCmd.Flags().StringVar(&serveTarget, "target", "", "Upstream URL (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoSync, "no-sync", false, "Don't run the periodic remote sync")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveTarget != "" {
		cfg.Proxy.Target = serveTarget
	}
	if servePort != 0 {
		cfg.Proxy.Port = servePort
	}

	dc := daemon.FromConfig(cfg)
	dc.EnableProxy = true
	dc.EnableSync = !serveNoSync

	d, err := daemon.New(dc)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := d.Start(ctx); err != nil {
		return err
	}
	info := d.Info()
	fmt.Fprintf(cmd.OutOrStdout(), "gnm %s proxying %s on http://%s (%d records)\n",
		daemon.Version, cfg.Proxy.Target, d.Proxy().ListenAddr, info.Records)

	<-ctx.Done()
	debug.Info("cli", "shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return d.Stop(shutdownCtx)
}

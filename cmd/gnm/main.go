// Command gnm maps GitHub usernames to "username(nickname)" display names.
// It rewrites saved pages, serves a rewriting proxy in front of GitHub,
// manages the local dictionary and exposes all of it over MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/standardbeagle/gnm/internal/config"
	"github.com/standardbeagle/gnm/internal/daemon"
	"github.com/standardbeagle/gnm/internal/debug"
	"github.com/standardbeagle/gnm/internal/proxy"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gnm",
	Short: "GitHub name mapper",
	Long: `gnm shows GitHub usernames as "username(nickname)".

The dictionary is built from a remote developer list and local rules.
Pages can be rewritten one-shot (gnm rewrite) or live through a local
reverse proxy in front of GitHub (gnm serve), which also provides the
@@ mention autocomplete.

Configuration is read from .gnm.kdl in the current directory or a parent.
A .env file in the current directory is loaded first.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		debug.Close()
	},
}

var (
	configPath string
	storeDir   string
	debugFlag  bool
	logFile    string
	jsonOutput bool

	cfg *config.Config
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Config file (default: search for .gnm.kdl)")
	pf.StringVar(&storeDir, "store", "", "Settings store directory (overrides config)")
	pf.BoolVar(&debugFlag, "debug", false, "Verbose logging to stderr")
	pf.StringVar(&logFile, "log-file", "", "Also write the debug log to this file under the user cache dir (gnm/logs)")
	pf.BoolVar(&jsonOutput, "json", false, "JSON output (default when stdout is not a terminal)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads .env and the config and configures logging.
func setup(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	var err error
	if configPath != "" {
		cfg, err = config.LoadConfigFile(configPath)
	} else {
		cfg, err = config.LoadConfig(".")
	}
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)
	if storeDir != "" {
		cfg.Store.Dir = storeDir
	}

	if debugFlag || cfg.Debug {
		debug.Enable()
	}
	if logFile != "" {
		if err := debug.SetLogFile(logFile); err != nil {
			return err
		}
		debug.Enable()
	}
	return nil
}

func skipSetup(cmd *cobra.Command, args []string) error { return nil }

// openDaemon opens the store for a one-shot command. Nothing is started.
func openDaemon() (*daemon.Daemon, error) {
	dc := daemon.FromConfig(cfg)
	dc.EnableSync = false
	dc.EnableProxy = false
	return daemon.New(dc)
}

// notifyServer asks a running gnm serve to reread the store so open pages
// pick up a change made by this process. It is best-effort.
func notifyServer() {
	client := &http.Client{Timeout: time.Second}
	url := fmt.Sprintf("http://%s%s", cfg.ProxyAddr(), proxy.PathRefresh)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return
	}
	resp, err := client.Do(req)
	if err != nil {
		debug.Log("cli", "no running server at %s", cfg.ProxyAddr())
		return
	}
	resp.Body.Close()
	debug.Log("cli", "notified server at %s: %s", cfg.ProxyAddr(), resp.Status)
}

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the remote developer list now",
	Long: `Fetch the remote developer list and replace the synced developers.

Without --url the stored URL is used. A new --url is stored once it has
synced successfully.

Examples:
  gnm sync
  gnm sync --url https://example.com/developers.json
  gnm sync --auto-update=false`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var (
	syncURL     string
	syncTimeout time.Duration
)

func init() {
	syncCmd.Flags().StringVar(&syncURL, "url", "", "Remote list URL (default: stored URL)")
	syncCmd.Flags().Bool("auto-update", true, "Enable the periodic background sync")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("auto-update") {
		auto, _ := cmd.Flags().GetBool("auto-update")
		if err := d.SetSync(d.Store().Settings().JSONURL, auto); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Auto update: %v\n", auto)
		if syncURL == "" && d.Store().Settings().JSONURL == "" {
			return nil
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), syncTimeout)
	defer cancel()

	res, err := d.Sync(ctx, syncURL)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	notifyServer()

	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d developers from %s\n", res.Count, res.URL)
	return nil
}

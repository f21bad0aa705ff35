package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show switch state, dictionary size and sync settings",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func runStatus(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	info := d.Info()
	st := d.Store().Settings()
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), info)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Store:       %s\n", info.StorePath)
	fmt.Fprintf(w, "Enabled:     %s\n", onOff(info.Enabled))
	fmt.Fprintf(w, "Features:    replace=%s highlight=%s avatar-highlight=%s mention=%s\n",
		onOff(st.Features.Replace), onOff(st.Features.Highlight), onOff(st.Features.AvatarHighlight), onOff(st.Features.Mention))
	fmt.Fprintf(w, "Records:     %d (%d synced, %d local rules)\n", info.Records, len(st.Developers), info.LocalRules)
	url := info.JSONURL
	if url == "" {
		url = "(not set)"
	}
	fmt.Fprintf(w, "Remote list: %s (auto update %s)\n", url, onOff(st.AutoUpdate))
	if !info.LastUpdate.IsZero() {
		fmt.Fprintf(w, "Last sync:   %s (%s ago)\n", info.LastUpdate.Local().Format(time.DateTime), time.Since(info.LastUpdate).Round(time.Minute))
	}
	fmt.Fprintf(w, "Proxy:       http://%s -> %s\n", cfg.ProxyAddr(), cfg.Proxy.Target)
	return nil
}

package main

import (
	"fmt"

	"github.com/standardbeagle/gnm/internal/daemon"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s v%s", serverName, daemon.Version)
		if daemon.GitCommit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " (%s)", daemon.GitCommit)
		}
		if daemon.BuildTime != "" {
			fmt.Fprintf(cmd.OutOrStdout(), " built %s", daemon.BuildTime)
		}
		fmt.Fprintln(cmd.OutOrStdout())
	},
}

func init() {
	versionCmd.PersistentPreRunE = skipSetup
	rootCmd.AddCommand(versionCmd)
}

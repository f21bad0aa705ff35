package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite [file]",
	Short: "Rewrite a saved GitHub page",
	Long: `Rewrite an HTML document with the current dictionary and feature flags.

Reads the file, or stdin when no file is given, and writes the rewritten
document to stdout or --output. Scan statistics go to stderr.

Examples:
  gnm rewrite pull.html > pull.gnm.html
  curl -s https://github.com/org/repo/pull/1 | gnm rewrite
  gnm rewrite --restore pull.gnm.html`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRewrite,
}

var (
	rewriteRestore bool
	rewriteOutput  string
	rewriteQuiet   bool
)

func init() {
	rewriteCmd.Flags().BoolVar(&rewriteRestore, "restore", false, "Rewrite, then restore the original names")
	rewriteCmd.Flags().StringVarP(&rewriteOutput, "output", "o", "", "Write to this file instead of stdout")
	rewriteCmd.Flags().BoolVarP(&rewriteQuiet, "quiet", "q", false, "Don't print statistics")

	rootCmd.AddCommand(rewriteCmd)
}

func runRewrite(cmd *cobra.Command, args []string) error {
	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	out, st, err := d.Rewrite(body, rewriteRestore)
	if err != nil {
		return err
	}

	if rewriteOutput != "" {
		if err := os.WriteFile(rewriteOutput, out, 0644); err != nil {
			return err
		}
	} else if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return err
	}

	if !rewriteQuiet {
		fmt.Fprintf(cmd.ErrOrStderr(), "elements: %d  mentions: %d  avatars: %d  restored: %d\n",
			st.Elements, st.Mentions, st.Avatars, st.Restored)
	}
	return nil
}

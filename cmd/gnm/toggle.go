package main

import (
	"fmt"
	"strings"

	"github.com/standardbeagle/gnm/internal/store"

	"github.com/spf13/cobra"
)

var toggleCmd = &cobra.Command{
	Use:       "toggle <on|off> [feature]",
	Short:     "Turn the mapper or a single feature on or off",
	ValidArgs: []string{"on", "off"},
	Long: `Turn the master switch, or one feature, on or off.

Features: replace, highlight, avatar-highlight, mention.

Turning the master switch off restores every rewritten name on pages
open through gnm serve.

Examples:
  gnm toggle off
  gnm toggle on
  gnm toggle off highlight`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runToggle,
}

func init() {
	rootCmd.AddCommand(toggleCmd)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func featureField(f *store.Features, name string) (*bool, error) {
	switch strings.ToLower(name) {
	case "replace":
		return &f.Replace, nil
	case "highlight":
		return &f.Highlight, nil
	case "avatar-highlight", "avatar_highlight", "avatar":
		return &f.AvatarHighlight, nil
	case "mention":
		return &f.Mention, nil
	}
	return nil, fmt.Errorf("unknown feature %q (replace, highlight, avatar-highlight, mention)", name)
}

func runToggle(cmd *cobra.Command, args []string) error {
	on, err := parseOnOff(args[0])
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if err := d.SetEnabled(on); err != nil {
			return err
		}
		notifyServer()
		fmt.Fprintf(cmd.OutOrStdout(), "gnm %s\n", args[0])
		return nil
	}

	f := d.Store().Settings().Features
	field, err := featureField(&f, args[1])
	if err != nil {
		return err
	}
	*field = on
	if err := d.SetFeatures(f); err != nil {
		return err
	}
	notifyServer()
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", args[1], args[0])
	return nil
}

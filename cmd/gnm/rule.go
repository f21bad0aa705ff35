package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/standardbeagle/gnm/internal/dictionary"
	"github.com/standardbeagle/gnm/internal/remote"

	"github.com/spf13/cobra"
)

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage local rules",
	Long: `Manage local rules. Local rules are applied after the synced list, so a
local rule wins when both define the same username.

Examples:
  gnm rule list
  gnm rule add octocat Oc --domain oc.d
  gnm rule update 0 --nick Cat
  gnm rule remove 0
  gnm rule export > rules.json
  gnm rule import rules.json`,
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List local rules",
	Args:  cobra.NoArgs,
	RunE:  runRuleList,
}

var ruleAddCmd = &cobra.Command{
	Use:   "add <username> <nickname>",
	Short: "Add a local rule",
	Args:  cobra.ExactArgs(2),
	RunE:  runRuleAdd,
}

var ruleUpdateCmd = &cobra.Command{
	Use:   "update <index>",
	Short: "Change fields of a local rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleUpdate,
}

var ruleRemoveCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Delete a local rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleRemove,
}

var ruleImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Append rules from a JSON file (or stdin)",
	Long: `Append rules from a JSON file, or stdin when no file is given.

Accepts an array of rules, or an object carrying localRules, rules,
developers or data.list. Entries without a username and nickname are
skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRuleImport,
}

var ruleExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print local rules as importable JSON",
	Args:  cobra.NoArgs,
	RunE:  runRuleExport,
}

var (
	ruleDomain    string
	ruleGithubAcc string
	ruleName      string
	ruleNick      string
)

func init() {
	ruleAddCmd.Flags().StringVar(&ruleDomain, "domain", "", "Domain account")
	ruleAddCmd.Flags().StringVar(&ruleGithubAcc, "email", "", "Contact address")

	ruleUpdateCmd.Flags().StringVar(&ruleName, "username", "", "New username")
	ruleUpdateCmd.Flags().StringVar(&ruleNick, "nick", "", "New nickname")
	ruleUpdateCmd.Flags().StringVar(&ruleDomain, "domain", "", "New domain account")
	ruleUpdateCmd.Flags().StringVar(&ruleGithubAcc, "email", "", "New contact address")

	ruleCmd.AddCommand(ruleListCmd)
	ruleCmd.AddCommand(ruleAddCmd)
	ruleCmd.AddCommand(ruleUpdateCmd)
	ruleCmd.AddCommand(ruleRemoveCmd)
	ruleCmd.AddCommand(ruleImportCmd)
	ruleCmd.AddCommand(ruleExportCmd)

	rootCmd.AddCommand(ruleCmd)
}

func runRuleList(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	rules := d.Store().LocalRules()
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), rules)
	}
	if len(rules) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No local rules")
		return nil
	}
	t := newTable("#", "USERNAME", "NICKNAME", "DOMAIN", "ADDED")
	for i, r := range rules {
		t.add(strconv.Itoa(i), r.GithubName, r.Nick, r.Domain, r.CreatedAt.Local().Format(time.DateOnly))
	}
	t.write(cmd.OutOrStdout())
	return nil
}

func runRuleAdd(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	rule, err := d.AddRule(dictionary.RawEntry{
		GithubName: args[0],
		Nick:       args[1],
		Domain:     ruleDomain,
		GithubAcc:  ruleGithubAcc,
	})
	if err != nil {
		return err
	}
	notifyServer()
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s(%s)\n", rule.GithubName, rule.Nick)
	return nil
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid rule index %q", s)
	}
	return i, nil
}

func runRuleUpdate(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	patch := dictionary.RawEntry{
		GithubName: ruleName,
		Nick:       ruleNick,
		Domain:     ruleDomain,
		GithubAcc:  ruleGithubAcc,
	}
	if patch == (dictionary.RawEntry{}) {
		return fmt.Errorf("nothing to update: pass --username, --nick, --domain or --email")
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	rule, err := d.UpdateRule(index, patch)
	if err != nil {
		return err
	}
	notifyServer()
	fmt.Fprintf(cmd.OutOrStdout(), "Updated %d: %s(%s)\n", index, rule.GithubName, rule.Nick)
	return nil
}

func runRuleRemove(cmd *cobra.Command, args []string) error {
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	if err := d.RemoveRule(index); err != nil {
		return err
	}
	notifyServer()
	fmt.Fprintf(cmd.OutOrStdout(), "Removed rule %d\n", index)
	return nil
}

func runRuleImport(cmd *cobra.Command, args []string) error {
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
		return err
	}
	entries, err := remote.ExtractRules(body)
	if err != nil {
		return fmt.Errorf("invalid import file: %w", err)
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	n, err := d.ImportRules(entries)
	if err != nil {
		return err
	}
	if n > 0 {
		notifyServer()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d rules\n", n, len(entries))
	return nil
}

func runRuleExport(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{
		"localRules": d.Store().ExportLocalRules(),
	})
}

package main

import (
	"fmt"

	"github.com/standardbeagle/gnm/internal/dictionary"

	"github.com/spf13/cobra"
)

var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Query the dictionary",
	Long: `Query the dictionary built from the synced list and local rules.

Examples:
  gnm dict list
  gnm dict search oc
  gnm dict resolve octocat hubot`,
}

var dictListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every record",
	Args:  cobra.NoArgs,
	RunE:  runDictList,
}

var dictSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search like the @@ mention popup",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDictSearch,
}

var dictResolveCmd = &cobra.Command{
	Use:   "resolve <username>...",
	Short: "Resolve usernames to display names",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDictResolve,
}

func init() {
	dictCmd.AddCommand(dictListCmd)
	dictCmd.AddCommand(dictSearchCmd)
	dictCmd.AddCommand(dictResolveCmd)

	rootCmd.AddCommand(dictCmd)
}

func runDictList(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	return printRecords(cmd, d.Snapshot().Dictionary.Records())
}

func runDictSearch(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	return printRecords(cmd, d.Search(query))
}

func runDictResolve(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	var found []dictionary.Record
	missing := 0
	for _, id := range args {
		rec, ok := d.Resolve(id)
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: not found\n", id)
			missing++
			continue
		}
		found = append(found, rec)
	}
	if err := printRecords(cmd, found); err != nil {
		return err
	}
	if missing > 0 {
		return fmt.Errorf("%d of %d not found", missing, len(args))
	}
	return nil
}

func printRecords(cmd *cobra.Command, recs []dictionary.Record) error {
	if recs == nil {
		recs = []dictionary.Record{}
	}
	if wantJSON() {
		return printJSON(cmd.OutOrStdout(), recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records")
		return nil
	}
	t := newTable("USERNAME", "NICKNAME", "DOMAIN", "DISPLAY")
	for _, r := range recs {
		t.add(r.Identifier, r.Nickname, r.DomainAccount, r.DisplayName)
	}
	t.write(cmd.OutOrStdout())
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regaudit/internal/corpus"
)

var loadCmd = &cobra.Command{
	Use:   "load [corpus-file]",
	Short: "Load or refresh the requirement corpus into the index",
	Long: `Reads the corpus file (corpus.path from the config when omitted), embeds
new and changed clauses, deletes clauses no longer present and commits the
changes to the index in one step. Unchanged clauses are not re-embedded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().String("format", "", "corpus format: clauses or mapping (default corpus.format)")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	path := appConfig.Corpus.Path
	if len(args) == 1 {
		path = args[0]
	}
	formatName, _ := cmd.Flags().GetString("format")
	if formatName == "" {
		formatName = appConfig.Corpus.Format
	}
	format, err := corpus.ParseFormat(formatName)
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), func(a *app) error {
		stats, err := a.svc.LoadCorpus(cmd.Context(), path, format)
		if err != nil {
			return fmt.Errorf("loading corpus %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted=%d updated=%d deleted=%d unchanged=%d embedded=%d\n",
			stats.Inserted, stats.Updated, stats.Deleted, stats.Unchanged, stats.Embedded)
		return nil
	})
}

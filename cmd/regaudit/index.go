package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect or reset the requirement index",
}

var indexStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show clause counts, dimension and metric of the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			st, err := a.svc.IndexStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(st); err != nil {
				return err
			}
			return enc.Close()
		})
	},
}

var indexResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every clause and forget the vector dimension",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to reset without --yes")
		}
		return withApp(cmd.Context(), func(a *app) error {
			return a.svc.ResetIndex(cmd.Context())
		})
	},
}

func init() {
	indexResetCmd.Flags().Bool("yes", false, "confirm the reset")
	indexCmd.AddCommand(indexStatsCmd, indexResetCmd)
	rootCmd.AddCommand(indexCmd)
}

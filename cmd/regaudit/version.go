package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the regaudit version",
	Args:  cobra.NoArgs,
	// no config needed to print the version
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "regaudit %s\n", version)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"regaudit/internal/report"
	"regaudit/internal/tui"
)

var auditCmd = &cobra.Command{
	Use:   "audit FILE...",
	Short: "Audit .txt and .md documents against the loaded corpus",
	Long: `Segments the given documents, matches every segment against the
requirement index and prints the compliance report. Glob patterns are
expanded; files other than .txt and .md are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().String("format", "", "report format: json, yaml, markdown or html (default report.format)")
	auditCmd.Flags().StringP("output", "o", "", "write the report to this file instead of stdout")
	auditCmd.Flags().Bool("tui", false, "browse the report interactively")
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")
	interactive, _ := cmd.Flags().GetBool("tui")
	if formatName == "" {
		formatName = appConfig.Report.Format
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	return withApp(cmd.Context(), func(a *app) error {
		if a.index.Len() == 0 {
			return fmt.Errorf("the requirement index is empty\nRun `regaudit load` first")
		}
		audit, err := a.svc.AuditFiles(cmd.Context(), args)
		if err != nil {
			return err
		}
		if output != "" {
			if err := report.WriteFile(output, audit.Report, format); err != nil {
				return err
			}
		}
		if interactive {
			_, err := tea.NewProgram(tui.New(audit), tea.WithAltScreen()).Run()
			return err
		}
		if output == "" {
			return report.Render(cmd.OutOrStdout(), audit.Report, format)
		}
		return nil
	})
}

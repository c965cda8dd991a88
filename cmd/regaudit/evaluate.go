package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"regaudit/internal/evaluation"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Compare audit scores with auditor ground truth",
	Long: `Audits every case listed under evaluation.cases and computes the mean
absolute error between the report's 0-5 scores and the ground-truth CSV,
per case and weighted by the number of compared requirements.`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringP("output", "o", "", "metrics file (default evaluation.metrics_output)")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = appConfig.Evaluation.MetricsOutput
	}
	if len(appConfig.Evaluation.Cases) == 0 {
		return fmt.Errorf("no evaluation.cases configured")
	}
	return withApp(cmd.Context(), func(a *app) error {
		summary, err := evaluation.NewEvaluator(a.svc, nil).Run(cmd.Context(), appConfig.Evaluation.Cases)
		if err != nil {
			return err
		}
		if err := evaluation.WriteMetrics(out, summary); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cases=%d pairs=%d weighted_mae=%.4f metrics=%s\n",
			summary.TotalCases, summary.TotalPairs, summary.WeightedMAE, out)
		return nil
	})
}

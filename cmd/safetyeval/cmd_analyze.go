package main

import (
	"fmt"

	"companion-safety/internal/analysis"
	"companion-safety/internal/classification"
	"companion-safety/internal/report"
	"companion-safety/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	analyzeResults         string
	analyzeClassifications string
	analyzeSummary         string
)

// analyzeCmd joins a results batch with the manual classifications
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Summarize classified results by category, model and demographic variation",
	Long: `Loads a results document (the most recent one when --results is not given),
joins it with the manual classification CSV and prints the category, model and
fairness summary. The category and model tables are also exported as CSV.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeResults, "results", "r", "", "Results JSON file (default: most recent)")
	analyzeCmd.Flags().StringVar(&analyzeClassifications, "classifications", "", "Classification CSV (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeSummary, "summary", "", "Summary CSV output path (default from config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path, err := store.ResolveResults(analyzeResults, cfg.Analysis.ResultsDir)
	if err != nil {
		return fmt.Errorf("%w; run 'safetyeval run' first", err)
	}
	if analyzeResults == "" {
		fmt.Fprintf(out, "Using most recent results: %s\n", path)
	}

	results, err := store.LoadResults(path)
	if err != nil {
		return err
	}

	classPath := cfg.Analysis.ClassificationsPath
	if analyzeClassifications != "" {
		classPath = analyzeClassifications
	}
	set, err := classification.Load(classPath, logger)
	if err != nil {
		return err
	}

	a := analysis.NewAnalyzer(results, set)
	report.NewPrinter(out).Summary(a)

	// exported even when nothing is classified: totals with 0.0 percentages
	summaryPath := cfg.Analysis.SummaryPath
	if analyzeSummary != "" {
		summaryPath = analyzeSummary
	}
	if err := analysis.ExportSummaryFile(summaryPath, a.ByCategory(), a.ByModel()); err != nil {
		return err
	}
	logger.Info("Summary exported", zap.String("path", summaryPath))
	fmt.Fprintf(out, "\nExported summary to: %s\n", summaryPath)
	return nil
}

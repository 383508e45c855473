package main

import (
	"companion-safety/internal/classification"
	"companion-safety/internal/findings"
	"companion-safety/internal/report"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var findingsClassifications string

// findingsCmd reports how often classified responses self-identify as AI
var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Measure AI self-identification across classified responses",
	RunE:  runFindings,
}

func init() {
	findingsCmd.Flags().StringVar(&findingsClassifications, "classifications", "", "Classification CSV (default from config)")
}

func runFindings(cmd *cobra.Command, args []string) error {
	path := cfg.Analysis.ClassificationsPath
	if findingsClassifications != "" {
		path = findingsClassifications
	}

	set, err := classification.Load(path, logger)
	if err != nil {
		return err
	}
	logger.Debug("Classifications loaded", zap.Int("rows", set.Len()))

	report.NewPrinter(cmd.OutOrStdout()).Findings(findings.Analyze(set.AllRows(), findings.DefaultDetector()))
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"companion-safety/internal/anthropic"
	"companion-safety/internal/config"
	"companion-safety/internal/llm"
	"companion-safety/internal/models"
	"companion-safety/internal/openai"
	"companion-safety/internal/repository"
	"companion-safety/internal/scenario"
	"companion-safety/internal/service"
	"companion-safety/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runModels    []string
	runCategory  string
	runLimit     int
	runOutput    string
	runScenarios string
)

// runCmd sends every selected scenario to every model
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scenario batch against the configured models",
	Long: `Loads the scenario file, sends each scenario to each model one call at a
time with a fixed pause between calls, and writes every result (including
failed calls as error records) to one JSON document.

Models starting with "gpt" go to OpenAI, models starting with "claude" go to
Anthropic. Any other model id is recorded as an error.

Example:
  safetyeval run --models gpt-5.2,claude-sonnet-4-5-20250929 --category romance --limit 5`,
	RunE: runEvaluation,
}

func init() {
	runCmd.Flags().StringSliceVar(&runModels, "models", nil, "Model ids to evaluate (default from config)")
	runCmd.Flags().StringVar(&runCategory, "category", "", "Only run scenarios of this category")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "Only run the first N scenarios (0 = all)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "Results file name inside the output directory")
	runCmd.Flags().StringVar(&runScenarios, "scenarios", "", "Scenario CSV path (default from config)")
}

// buildRegistry registers a provider for each vendor that has credentials
func buildRegistry(cfg *config.Config, logger *zap.Logger) *llm.Registry {
	registry := llm.NewRegistry(logger)

	if cfg.OpenAI.APIKey != "" {
		client, err := openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("OpenAI provider unavailable", zap.Error(err))
		} else {
			registry.Register("gpt", llm.ProviderOpenAI, client)
		}
	} else {
		logger.Warn("OPENAI_API_KEY not set, gpt models will be recorded as errors")
	}

	if cfg.Anthropic.APIKey != "" {
		client, err := anthropic.NewClient(anthropic.Config{
			APIKey:  cfg.Anthropic.APIKey,
			BaseURL: cfg.Anthropic.BaseURL,
			Timeout: cfg.Anthropic.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("Anthropic provider unavailable", zap.Error(err))
		} else {
			registry.Register("claude", llm.ProviderAnthropic, client)
		}
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, claude models will be recorded as errors")
	}

	return registry
}

func runEvaluation(cmd *cobra.Command, args []string) error {
	scenariosPath := cfg.Runner.ScenariosPath
	if runScenarios != "" {
		scenariosPath = runScenarios
	}
	modelIDs := cfg.Runner.Models
	if len(runModels) > 0 {
		modelIDs = runModels
	}

	scenarios, err := scenario.Load(scenariosPath)
	if err != nil {
		return err
	}
	selected := service.Select(scenarios, service.Options{Category: runCategory, Limit: runLimit})
	logger.Info("Scenarios selected",
		zap.Int("loaded", len(scenarios)),
		zap.Int("selected", len(selected)),
		zap.Strings("models", modelIDs))

	registry := buildRegistry(cfg, logger)
	defer registry.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	runner := service.NewRunner(registry, cfg.Runner.Pause, logger)
	results, runErr := runner.RunBatch(ctx, selected, modelIDs)
	finishedAt := time.Now()

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		logger.Warn("Evaluation interrupted, saving partial results", zap.Int("results", len(results)))
	}

	path, err := store.WriteResults(cfg.Runner.OutputDir, runOutput, results, startedAt)
	if err != nil {
		return err
	}

	failed := service.CountErrors(results)
	if err := archiveRun(&models.Run{
		StartedAt:   startedAt,
		FinishedAt:  &finishedAt,
		ResultsPath: path,
		Models:      modelIDs,
		Total:       len(results),
		Failed:      failed,
	}, results); err != nil {
		logger.Error("Failed to archive run", zap.Error(err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nResults saved to: %s\n", path)
	fmt.Fprintf(out, "Total evaluations: %d\n", len(results))
	fmt.Fprintf(out, "Errors: %d\n", failed)
	fmt.Fprintln(out, "\nNext step: classify the responses, then run 'safetyeval analyze'")

	if runErr != nil {
		return fmt.Errorf("evaluation interrupted: %w", runErr)
	}
	return nil
}

// archiveRun stores the run when a database path is configured
func archiveRun(run *models.Run, results []models.EvaluationResult) error {
	if cfg.Database.Path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	repo, err := repository.NewRunRepository(cfg.Database.Path, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	return repo.SaveRun(run, results)
}

package service

import (
	"context"
	"time"

	"companion-safety/internal/llm"
	"companion-safety/internal/models"
	"companion-safety/internal/scenario"

	"go.uber.org/zap"
)

// Completer is the capability the runner needs from the provider registry
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Options narrows the scenario set before batching
type Options struct {
	Category string
	Limit    int
}

// Runner sends scenarios to models one call at a time
type Runner struct {
	completer Completer
	pause     time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewRunner creates a runner that waits pause between consecutive calls
func NewRunner(completer Completer, pause time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		completer: completer,
		pause:     pause,
		now:       time.Now,
		logger:    logger,
	}
}

// RunSingle sends one scenario to one model
func (r *Runner) RunSingle(ctx context.Context, s models.Scenario, model string) (models.EvaluationResult, error) {
	req := llm.NewRequest(model, s.Prompt, s.RelationshipContext)

	response, err := r.completer.Complete(ctx, req)
	if err != nil {
		return models.EvaluationResult{}, err
	}

	return models.NewResult(s, model, response, r.now()), nil
}

// Select applies the category filter, then the limit
func Select(scenarios []models.Scenario, opts Options) []models.Scenario {
	return scenario.Limit(scenario.FilterCategory(scenarios, opts.Category), opts.Limit)
}

// RunBatch evaluates every scenario against every model in scenario-major
// order. A failed pair becomes an error record and the batch continues.
// Cancellation stops the batch between calls and returns what was collected.
func (r *Runner) RunBatch(ctx context.Context, scenarios []models.Scenario, modelIDs []string) ([]models.EvaluationResult, error) {
	total := len(scenarios) * len(modelIDs)
	results := make([]models.EvaluationResult, 0, total)

	r.logger.Info("Starting evaluation batch",
		zap.Int("scenarios", len(scenarios)),
		zap.Strings("models", modelIDs),
		zap.Int("total_tests", total))

	n := 0
	for _, s := range scenarios {
		for _, model := range modelIDs {
			if n > 0 {
				if err := r.wait(ctx); err != nil {
					r.logger.Warn("Batch cancelled",
						zap.Int("completed", n),
						zap.Int("total_tests", total))
					return results, err
				}
			}
			n++

			r.logger.Info("Running test",
				zap.Int("test", n),
				zap.Int("total_tests", total),
				zap.String("scenario_id", s.ScenarioID),
				zap.String("model", model))

			result, err := r.RunSingle(ctx, s, model)
			if err != nil {
				r.logger.Error("Test failed",
					zap.String("scenario_id", s.ScenarioID),
					zap.String("model", model),
					zap.Error(err))
				results = append(results, models.NewErrorResult(s.ScenarioID, model, err, r.now()))
				continue
			}

			results = append(results, result)
		}
	}

	r.logger.Info("Batch completed",
		zap.Int("total", len(results)),
		zap.Int("failed", CountErrors(results)))

	return results, nil
}

func (r *Runner) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.pause <= 0 {
		return nil
	}
	timer := time.NewTimer(r.pause)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CountErrors returns the number of error records
func CountErrors(results []models.EvaluationResult) int {
	n := 0
	for _, res := range results {
		if res.IsError() {
			n++
		}
	}
	return n
}

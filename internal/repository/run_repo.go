package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"companion-safety/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

// RunRepository archives evaluation runs and their results
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunRepository opens (or creates) the archive at dbPath
func NewRunRepository(dbPath string, logger *zap.Logger) (*RunRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	repo := &RunRepository{
		db:     db,
		logger: logger,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("Run repository initialized", zap.String("db_path", dbPath))

	return repo, nil
}

func (r *RunRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		results_path TEXT,
		models TEXT NOT NULL,
		total INTEGER NOT NULL,
		failed INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		scenario_id TEXT NOT NULL,
		category TEXT,
		subcategory TEXT,
		demographic_variation TEXT,
		relationship_context TEXT,
		prompt TEXT,
		model TEXT NOT NULL,
		response TEXT,
		timestamp TEXT NOT NULL,
		expected_safe_behavior TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_results_run_id ON results(run_id);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveRun stores a run and its results in one transaction.
// An empty run.ID is filled with a new UUID.
func (r *RunRepository) SaveRun(run *models.Run, results []models.EvaluationResult) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO runs (id, started_at, finished_at, results_path, models, total, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, finishedAt, run.ResultsPath, strings.Join(run.Models, ","), run.Total, run.Failed)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO results (
			run_id, position, scenario_id, category, subcategory, demographic_variation,
			relationship_context, prompt, model, response, timestamp, expected_safe_behavior, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range results {
		_, err := stmt.Exec(
			run.ID,
			i,
			res.ScenarioID,
			res.Category,
			res.Subcategory,
			res.DemographicVariation,
			res.RelationshipContext,
			res.Prompt,
			res.Model,
			res.Response,
			res.Timestamp,
			res.ExpectedSafeBehavior,
			res.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to save result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	r.logger.Info("Run archived",
		zap.String("run_id", run.ID),
		zap.Int("results", len(results)),
	)
	return nil
}

const runColumns = `id, started_at, finished_at, results_path, models, total, failed`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	run := &models.Run{}
	var finishedAt sql.NullTime
	var resultsPath sql.NullString
	var modelList string

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&finishedAt,
		&resultsPath,
		&modelList,
		&run.Total,
		&run.Failed,
	)
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	run.ResultsPath = resultsPath.String
	run.Models = []string{}
	if modelList != "" {
		run.Models = strings.Split(modelList, ",")
	}
	return run, nil
}

// ListRuns returns all runs, newest first
func (r *RunRepository) ListRuns() ([]*models.Run, error) {
	rows, err := r.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []*models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			r.logger.Error("Failed to scan run", zap.Error(err))
			continue
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(runID string) (*models.Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRunResults returns a run's results in their original batch order
func (r *RunRepository) GetRunResults(runID string) ([]models.EvaluationResult, error) {
	if _, err := r.GetRun(runID); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT scenario_id, category, subcategory, demographic_variation, relationship_context,
		       prompt, model, response, timestamp, expected_safe_behavior, error
		FROM results
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := []models.EvaluationResult{}
	for rows.Next() {
		var res models.EvaluationResult
		var category, subcategory, demographic, relationship, prompt, response, expected, errText sql.NullString
		err := rows.Scan(
			&res.ScenarioID,
			&category,
			&subcategory,
			&demographic,
			&relationship,
			&prompt,
			&res.Model,
			&response,
			&res.Timestamp,
			&expected,
			&errText,
		)
		if err != nil {
			r.logger.Error("Failed to scan result", zap.Error(err))
			continue
		}
		res.Category = category.String
		res.Subcategory = subcategory.String
		res.DemographicVariation = demographic.String
		res.RelationshipContext = relationship.String
		res.Prompt = prompt.String
		res.Response = response.String
		res.ExpectedSafeBehavior = expected.String
		res.Error = errText.String
		results = append(results, res)
	}

	return results, rows.Err()
}

// Close closes the database connection
func (r *RunRepository) Close() error {
	return r.db.Close()
}

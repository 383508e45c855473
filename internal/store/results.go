// Package store writes and reads batch result documents.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"companion-safety/internal/models"
)

// ErrNoResults is returned when a directory holds no result documents
var ErrNoResults = errors.New("no results files found")

const filePattern = "evaluation_results_*.json"

// DefaultFilename names a batch document after its capture time
func DefaultFilename(at time.Time) string {
	return fmt.Sprintf("evaluation_results_%s.json", at.Format("20060102_150405"))
}

// WriteResults dumps the whole batch as one JSON array and returns the path.
// An empty filename falls back to DefaultFilename.
func WriteResults(dir, filename string, results []models.EvaluationResult, at time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if filename == "" {
		filename = DefaultFilename(at)
	}
	if results == nil {
		results = []models.EvaluationResult{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	return path, nil
}

// LoadResults reads a batch document
func LoadResults(path string) ([]models.EvaluationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var results []models.EvaluationResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return results, nil
}

// LatestResults returns the most recently modified batch document in dir
func LatestResults(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePattern))
	if err != nil {
		return "", err
	}

	var (
		latest   string
		latestAt time.Time
	)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestAt) {
			latest, latestAt = m, info.ModTime()
		}
	}

	if latest == "" {
		return "", fmt.Errorf("%w in %s", ErrNoResults, dir)
	}
	return latest, nil
}

// ResolveResults returns explicit when set, otherwise the latest document in dir
func ResolveResults(explicit, dir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return LatestResults(dir)
}

// Package classification loads the manually labelled response table.
package classification

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"companion-safety/internal/models"
	"companion-safety/internal/scenario"

	"go.uber.org/zap"
)

// RequiredColumns are needed to join rows with results
var RequiredColumns = []string{"scenario_id", "model", "classification"}

// Set is the classification table indexed by (scenario_id, model)
type Set struct {
	rows  []models.Classification
	all   []models.Classification
	index map[models.ResultKey]int
}

// NewSet builds a set; a later row for the same key replaces the earlier one
func NewSet(rows []models.Classification) *Set {
	s := &Set{index: make(map[models.ResultKey]int, len(rows)), all: rows}
	for _, row := range rows {
		if i, ok := s.index[row.Key()]; ok {
			s.rows[i] = row
			continue
		}
		s.index[row.Key()] = len(s.rows)
		s.rows = append(s.rows, row)
	}
	return s
}

// Lookup returns the verdict for a result key
func (s *Set) Lookup(key models.ResultKey) (models.Verdict, bool) {
	i, ok := s.index[key]
	if !ok {
		return "", false
	}
	return s.rows[i].Verdict, true
}

// Rows returns one row per key, in file order
func (s *Set) Rows() []models.Classification {
	return s.rows
}

// AllRows returns every valid row as read, duplicates included
func (s *Set) AllRows() []models.Classification {
	return s.all
}

// Len returns the number of classified keys
func (s *Set) Len() int {
	return len(s.rows)
}

// Load reads the classification table. A missing file is not an error:
// it yields an empty set and a warning.
func Load(path string, logger *zap.Logger) (*Set, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Classification file not found, run manual classification first",
			zap.String("path", path))
		return NewSet(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open classification file: %w", err)
	}
	defer file.Close()

	set, err := Read(file, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Read parses a header-bearing classification table. Rows with an
// unrecognised classification value are skipped with a warning.
func Read(r io.Reader, logger *zap.Logger) (*Set, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return NewSet(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index, err := scenario.IndexHeader(header, RequiredColumns)
	if err != nil {
		return nil, err
	}

	var rows []models.Classification
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", line, err)
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		verdict, err := models.ParseVerdict(field("classification"))
		if err != nil {
			logger.Warn("Skipping classification row",
				zap.Int("line", line),
				zap.String("scenario_id", field("scenario_id")),
				zap.Error(err))
			continue
		}

		rows = append(rows, models.Classification{
			ScenarioID:           field("scenario_id"),
			Category:             field("category"),
			Subcategory:          field("subcategory"),
			DemographicVariation: field("demographic_variation"),
			RelationshipContext:  field("relationship_context"),
			Prompt:               field("prompt"),
			Model:                field("model"),
			Response:             field("response"),
			Timestamp:            field("timestamp"),
			ExpectedSafeBehavior: field("expected_safe_behavior"),
			Verdict:              verdict,
			Notes:                field("notes"),
		})
	}

	return NewSet(rows), nil
}

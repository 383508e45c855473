// Package scenario reads the test scenario table.
package scenario

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"companion-safety/internal/models"
)

// ErrMissingColumn is returned when the header lacks a required column
var ErrMissingColumn = errors.New("missing required column")

// RequiredColumns must all appear in the header row
var RequiredColumns = []string{
	"scenario_id",
	"category",
	"subcategory",
	"demographic_variation",
	"prompt",
	"expected_safe_behavior",
}

const relationshipColumn = "relationship_context"

// Load reads scenarios from a CSV file in file order
func Load(path string) ([]models.Scenario, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario file: %w", err)
	}
	defer file.Close()

	scenarios, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// Read parses a header-bearing scenario table. Values are kept verbatim.
func Read(r io.Reader) ([]models.Scenario, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index, err := IndexHeader(header, RequiredColumns)
	if err != nil {
		return nil, err
	}

	var scenarios []models.Scenario
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(scenarios)+2, err)
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}

		scenarios = append(scenarios, models.Scenario{
			ScenarioID:           field("scenario_id"),
			Category:             field("category"),
			Subcategory:          field("subcategory"),
			DemographicVariation: field("demographic_variation"),
			RelationshipContext:  field(relationshipColumn),
			Prompt:               field("prompt"),
			ExpectedSafeBehavior: field("expected_safe_behavior"),
		})
	}

	return scenarios, nil
}

// IndexHeader maps column names to positions and checks the required ones
func IndexHeader(header, required []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = trimBOM(name)
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return index, nil
}

func trimBOM(s string) string {
	const bom = "\ufeff"
	if len(s) >= len(bom) && s[:len(bom)] == bom {
		return s[len(bom):]
	}
	return s
}

// FilterCategory keeps the scenarios of one category. An empty category keeps all.
func FilterCategory(scenarios []models.Scenario, category string) []models.Scenario {
	if category == "" {
		return scenarios
	}
	var out []models.Scenario
	for _, s := range scenarios {
		if s.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// Limit truncates to the first n scenarios; n <= 0 means no limit
func Limit(scenarios []models.Scenario, n int) []models.Scenario {
	if n <= 0 || n >= len(scenarios) {
		return scenarios
	}
	return scenarios[:n]
}

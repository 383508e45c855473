package models

import (
	"fmt"
	"strings"
	"time"
)

// Verdict is the human-assigned safety rating of one response
type Verdict string

const (
	VerdictSafe       Verdict = "SAFE"
	VerdictConcerning Verdict = "CONCERNING"
	VerdictUnsafe     Verdict = "UNSAFE"
)

// Verdicts lists the ratings in report order
var Verdicts = []Verdict{VerdictSafe, VerdictConcerning, VerdictUnsafe}

// ParseVerdict matches a classification value case-insensitively
func ParseVerdict(s string) (Verdict, error) {
	v := Verdict(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case VerdictSafe, VerdictConcerning, VerdictUnsafe:
		return v, nil
	}
	return "", fmt.Errorf("invalid classification %q", s)
}

// Scenario is one test case loaded from the scenario file
type Scenario struct {
	ScenarioID           string `json:"scenario_id"`
	Category             string `json:"category"`
	Subcategory          string `json:"subcategory"`
	DemographicVariation string `json:"demographic_variation"`
	RelationshipContext  string `json:"relationship_context,omitempty"`
	Prompt               string `json:"prompt"`
	ExpectedSafeBehavior string `json:"expected_safe_behavior"`
}

// EvaluationResult is the outcome of sending one scenario to one model.
// Failed calls carry only ScenarioID, Model, Error and Timestamp.
type EvaluationResult struct {
	ScenarioID           string `json:"scenario_id"`
	Category             string `json:"category,omitempty"`
	Subcategory          string `json:"subcategory,omitempty"`
	DemographicVariation string `json:"demographic_variation,omitempty"`
	RelationshipContext  string `json:"relationship_context,omitempty"`
	Prompt               string `json:"prompt,omitempty"`
	Model                string `json:"model"`
	Response             string `json:"response,omitempty"`
	Timestamp            string `json:"timestamp"`
	ExpectedSafeBehavior string `json:"expected_safe_behavior,omitempty"`
	Error                string `json:"error,omitempty"`
}

// IsError reports whether the record describes a failed call
func (r EvaluationResult) IsError() bool {
	return r.Error != ""
}

// NewResult builds a success record for a scenario/model pair
func NewResult(s Scenario, model, response string, at time.Time) EvaluationResult {
	return EvaluationResult{
		ScenarioID:           s.ScenarioID,
		Category:             s.Category,
		Subcategory:          s.Subcategory,
		DemographicVariation: s.DemographicVariation,
		RelationshipContext:  s.RelationshipContext,
		Prompt:               s.Prompt,
		Model:                model,
		Response:             response,
		Timestamp:            FormatTimestamp(at),
		ExpectedSafeBehavior: s.ExpectedSafeBehavior,
	}
}

// NewErrorResult builds an error record for a scenario/model pair
func NewErrorResult(scenarioID, model string, err error, at time.Time) EvaluationResult {
	return EvaluationResult{
		ScenarioID: scenarioID,
		Model:      model,
		Error:      err.Error(),
		Timestamp:  FormatTimestamp(at),
	}
}

// FormatTimestamp renders capture times in local ISO-8601 with microseconds
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05.000000")
}

// ResultKey identifies a response for the classification join
type ResultKey struct {
	ScenarioID string
	Model      string
}

// Key returns the join key of a result
func (r EvaluationResult) Key() ResultKey {
	return ResultKey{ScenarioID: r.ScenarioID, Model: r.Model}
}

// Classification is one row of the manual classification table
type Classification struct {
	ScenarioID           string  `json:"scenario_id"`
	Category             string  `json:"category"`
	Subcategory          string  `json:"subcategory"`
	DemographicVariation string  `json:"demographic_variation"`
	RelationshipContext  string  `json:"relationship_context,omitempty"`
	Prompt               string  `json:"prompt"`
	Model                string  `json:"model"`
	Response             string  `json:"response"`
	Timestamp            string  `json:"timestamp"`
	ExpectedSafeBehavior string  `json:"expected_safe_behavior"`
	Verdict              Verdict `json:"classification"`
	Notes                string  `json:"notes,omitempty"`
}

// Key returns the join key of a classification row
func (c Classification) Key() ResultKey {
	return ResultKey{ScenarioID: c.ScenarioID, Model: c.Model}
}

// Run describes one archived batch
type Run struct {
	ID          string     `json:"id" db:"id"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	ResultsPath string     `json:"results_path" db:"results_path"`
	Models      []string   `json:"models" db:"models"`
	Total       int        `json:"total" db:"total"`
	Failed      int        `json:"failed" db:"failed"`
}

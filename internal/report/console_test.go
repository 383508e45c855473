package report

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"companion-safety/internal/analysis"
	"companion-safety/internal/classification"
	"companion-safety/internal/findings"
	"companion-safety/internal/models"
)

var at = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func result(id, category, demographic, model string) models.EvaluationResult {
	return models.NewResult(models.Scenario{
		ScenarioID:           id,
		Category:             category,
		DemographicVariation: demographic,
	}, model, "response", at)
}

func newTestPrinter(buf *bytes.Buffer) *Printer {
	return NewPrinterWithStyles(buf, PlainStyles())
}

func TestSummary_NoClassifications(t *testing.T) {
	var buf bytes.Buffer
	a := analysis.NewAnalyzer([]models.EvaluationResult{result("S1", "romance", "", "gpt-x")}, nil)

	newTestPrinter(&buf).Summary(a)

	out := buf.String()
	assert.Contains(t, out, "Total tests conducted: 1")
	assert.Contains(t, out, "Manually classified: 0")
	assert.Contains(t, out, "No classifications found.")
	assert.NotContains(t, out, "RESULTS BY CATEGORY")
}

func TestSummary_Sections(t *testing.T) {
	var buf bytes.Buffer
	var results []models.EvaluationResult
	var labels []models.Classification
	for i := 0; i < 7; i++ {
		a := fmt.Sprintf("S%d_A", i)
		b := fmt.Sprintf("S%d_B", i)
		results = append(results, result(a, "self_harm", "A", "gpt-x"), result(b, "self_harm", "B", "gpt-x"))
		labels = append(labels,
			models.Classification{ScenarioID: a, Model: "gpt-x", Verdict: models.VerdictSafe},
			models.Classification{ScenarioID: b, Model: "gpt-x", Verdict: models.VerdictUnsafe},
		)
	}
	a := analysis.NewAnalyzer(results, classification.NewSet(labels))

	newTestPrinter(&buf).Summary(a)

	out := buf.String()
	assert.Contains(t, out, "Self Harm:")
	assert.Contains(t, out, "  Total tests: 14")
	assert.Contains(t, out, "  Safe: 7 (50.0%)")
	assert.Contains(t, out, "  Unsafe: 7 (50.0%)")
	assert.Contains(t, out, "Found 7 scenarios with demographic disparities:")
	assert.Equal(t, MaxFairnessShown, strings.Count(out, "  Scenario S"))
	assert.Contains(t, out, "    B (gpt-x): UNSAFE")
}

func TestFindings_Output(t *testing.T) {
	var buf bytes.Buffer
	rows := []models.Classification{
		{ScenarioID: "S1", Category: "romance", Model: "claude-sonnet-4-5-20250929", Verdict: models.VerdictSafe, Response: "I'm an AI."},
		{ScenarioID: "S2", Category: "romance", Model: "gpt-5.2", Verdict: models.VerdictUnsafe, Response: "I love you too"},
	}

	newTestPrinter(&buf).Findings(findings.Analyze(rows, findings.DefaultDetector()))

	out := buf.String()
	assert.Contains(t, out, "Claude Sonnet 4.5")
	assert.Contains(t, out, "GPT-5.2")
	assert.Contains(t, out, "S2 (gpt-5.2) - NO AI ID")
	assert.Contains(t, out, "Overall AI Identification Rate: 1/2 (50.0%)")
	assert.Contains(t, out, "Unsafe responses LESS likely to include AI identification (0.0% vs 100.0%)")
	assert.Contains(t, out, "I'?m an AI")
}

func TestDisplayModel(t *testing.T) {
	assert.Equal(t, "custom-model", DisplayModel("custom-model"))
	assert.Equal(t, "Self Harm", NewPrinter(&bytes.Buffer{}).CategoryTitle("self_harm"))
}

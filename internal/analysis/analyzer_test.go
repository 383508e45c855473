package analysis

import (
	"bytes"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"companion-safety/internal/classification"
	"companion-safety/internal/models"
)

var at = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func result(id, category, demographic, model string) models.EvaluationResult {
	return models.NewResult(models.Scenario{
		ScenarioID:           id,
		Category:             category,
		DemographicVariation: demographic,
		Prompt:               "prompt " + id,
	}, model, "response", at)
}

func label(id, model string, v models.Verdict) models.Classification {
	return models.Classification{ScenarioID: id, Model: model, Verdict: v}
}

func fixture() *Analyzer {
	results := []models.EvaluationResult{
		result("S1", "romance", "A", "gpt-x"),
		result("S1", "romance", "A", "claude-x"),
		result("S2", "romance", "B", "gpt-x"),
		result("S3", "self_harm", "A", "gpt-x"),
		result("S3", "self_harm", "A", "claude-x"), // unclassified
		models.NewErrorResult("S2", "claude-x", errors.New("boom"), at),
	}
	set := classification.NewSet([]models.Classification{
		label("S1", "gpt-x", models.VerdictSafe),
		label("S1", "claude-x", models.VerdictUnsafe),
		label("S2", "gpt-x", models.VerdictConcerning),
		label("S3", "gpt-x", models.VerdictSafe),
		label("S2", "claude-x", models.VerdictUnsafe), // belongs to the error record
	})
	return NewAnalyzer(results, set)
}

func TestByModel_SumEqualsNonErrorResults(t *testing.T) {
	a := fixture()
	assert.Equal(t, 5, a.TotalTests())
	assert.Equal(t, a.TotalTests(), a.ByModel().Sum().Total)
	assert.Equal(t, a.TotalTests(), a.ByCategory().Sum().Total)
}

func TestByCategory_CountsUnclassifiedInTotal(t *testing.T) {
	stats := fixture().ByCategory()

	require.Contains(t, stats, "self_harm")
	assert.Equal(t, Bucket{Total: 2, Safe: 1}, *stats["self_harm"])
	assert.Equal(t, Bucket{Total: 3, Safe: 1, Concerning: 1, Unsafe: 1}, *stats["romance"])
}

func TestClassifiedByCategory_ExcludesUnclassified(t *testing.T) {
	stats := fixture().ClassifiedByCategory()

	assert.Equal(t, Bucket{Total: 1, Safe: 1}, *stats["self_harm"])
	assert.Equal(t, Bucket{Total: 3, Safe: 1, Concerning: 1, Unsafe: 1}, *stats["romance"])

	byModel := fixture().ClassifiedByModel()
	assert.Equal(t, Bucket{Total: 1, Unsafe: 1}, *byModel["claude-x"])
	assert.Equal(t, 4, byModel.Sum().Total)
}

func TestByModel_ErrorRecordsSkipped(t *testing.T) {
	stats := fixture().ByModel()
	assert.Equal(t, Bucket{Total: 3, Safe: 2, Concerning: 1}, *stats["gpt-x"])
	assert.Equal(t, Bucket{Total: 2, Unsafe: 1}, *stats["claude-x"])
}

func TestNoClassifications(t *testing.T) {
	a := NewAnalyzer([]models.EvaluationResult{result("S1", "romance", "A", "gpt-x")}, nil)
	assert.Equal(t, 0, a.ClassifiedCount())
	assert.Equal(t, Bucket{Total: 1}, *a.ByCategory()["romance"])
	assert.Empty(t, a.ClassifiedByCategory())
	assert.Empty(t, a.Fairness())
}

func TestFairness_FlagsDisparity(t *testing.T) {
	results := []models.EvaluationResult{
		result("S1_A", "romance", "A", "gpt-x"),
		result("S1_B", "romance", "B", "gpt-x"),
		result("S2_A", "romance", "A", "gpt-x"),
		result("S2_B", "romance", "B", "gpt-x"),
	}
	set := classification.NewSet([]models.Classification{
		label("S1_A", "gpt-x", models.VerdictSafe),
		label("S1_B", "gpt-x", models.VerdictUnsafe),
		label("S2_A", "gpt-x", models.VerdictSafe),
		label("S2_B", "gpt-x", models.VerdictSafe),
	})

	issues := NewAnalyzer(results, set).Fairness()
	require.Len(t, issues, 1)
	assert.Equal(t, "S1", issues[0].ScenarioID)
	assert.Equal(t, []Variation{
		{ScenarioID: "S1_A", Demographic: "A", Model: "gpt-x", Verdict: models.VerdictSafe},
		{ScenarioID: "S1_B", Demographic: "B", Model: "gpt-x", Verdict: models.VerdictUnsafe},
	}, issues[0].Variations)
}

func TestFairness_FlagsCrossModelDisparity(t *testing.T) {
	results := []models.EvaluationResult{
		result("S1_A", "romance", "A", "gpt-x"),
		result("S1_B", "romance", "B", "claude-x"),
	}
	set := classification.NewSet([]models.Classification{
		label("S1_A", "gpt-x", models.VerdictSafe),
		label("S1_B", "claude-x", models.VerdictUnsafe),
	})
	a := NewAnalyzer(results, set)

	issues := a.Fairness()
	require.Len(t, issues, 1)
	assert.Equal(t, "S1", issues[0].ScenarioID)
	assert.Equal(t, []Variation{
		{ScenarioID: "S1_A", Demographic: "A", Model: "gpt-x", Verdict: models.VerdictSafe},
		{ScenarioID: "S1_B", Demographic: "B", Model: "claude-x", Verdict: models.VerdictUnsafe},
	}, issues[0].Variations)

	// no single model rated two variants
	assert.Empty(t, a.ModelFairness())
}

func TestFairness_LaterResultWinsPerDemographic(t *testing.T) {
	results := []models.EvaluationResult{
		result("S1_A", "romance", "A", "gpt-x"),
		result("S1_B", "romance", "B", "gpt-x"),
		result("S1_B", "romance", "B", "claude-x"),
	}
	set := classification.NewSet([]models.Classification{
		label("S1_A", "gpt-x", models.VerdictSafe),
		label("S1_B", "gpt-x", models.VerdictUnsafe),
		label("S1_B", "claude-x", models.VerdictSafe),
	})
	a := NewAnalyzer(results, set)

	assert.Empty(t, a.Fairness())
	require.Len(t, a.ModelFairness(), 1)
	assert.Len(t, a.ModelFairness()[0].Variations, 3)
}

func TestModelFairness_FlagsSameModelDisparity(t *testing.T) {
	results := []models.EvaluationResult{
		result("S1_A", "romance", "A", "gpt-x"),
		result("S1_B", "romance", "B", "gpt-x"),
	}
	set := classification.NewSet([]models.Classification{
		label("S1_A", "gpt-x", models.VerdictSafe),
		label("S1_B", "gpt-x", models.VerdictConcerning),
	})
	a := NewAnalyzer(results, set)

	assert.Len(t, a.Fairness(), 1)
	assert.Len(t, a.ModelFairness(), 1)
}

func TestFairness_NeedsTwoClassifiedVariants(t *testing.T) {
	results := []models.EvaluationResult{
		result("S1_A", "romance", "A", "gpt-x"),
		result("S1_B", "romance", "B", "gpt-x"),
	}
	set := classification.NewSet([]models.Classification{
		label("S1_A", "gpt-x", models.VerdictUnsafe),
	})
	assert.Empty(t, NewAnalyzer(results, set).Fairness())
}

func TestFairness_ModelDifferenceIsNotDemographic(t *testing.T) {
	results := []models.EvaluationResult{
		result("S1_A", "romance", "A", "gpt-x"),
		result("S1_A", "romance", "A", "claude-x"),
	}
	set := classification.NewSet([]models.Classification{
		label("S1_A", "gpt-x", models.VerdictSafe),
		label("S1_A", "claude-x", models.VerdictUnsafe),
	})
	assert.Empty(t, NewAnalyzer(results, set).Fairness())
	assert.Empty(t, NewAnalyzer(results, set).ModelFairness())
}

func TestBaseScenarioID(t *testing.T) {
	assert.Equal(t, "ED01", BaseScenarioID(result("ED01_female", "c", "female", "m")))
	assert.Equal(t, "ED01", BaseScenarioID(result("ED01", "c", "female", "m")))
	assert.Equal(t, "A", BaseScenarioID(result("A", "c", "", "m")))
}

func TestPercent_ZeroTotal(t *testing.T) {
	assert.Equal(t, 0.0, Percent(0, 0))
	assert.Equal(t, 0.0, Percent(3, 0))
	assert.InDelta(t, 33.333, Percent(1, 3), 0.001)
	assert.Equal(t, "33.3", FormatPercent(Percent(1, 3)))
	assert.Equal(t, "66.7", FormatPercent(Percent(2, 3)))
	assert.Equal(t, "0.0", FormatPercent((&Bucket{}).SafePercent()))
}

func TestExportSummary_Layout(t *testing.T) {
	a := fixture()
	var buf bytes.Buffer
	require.NoError(t, ExportSummary(&buf, a.ByCategory(), a.ByModel()))

	want := "Category Analysis\n" +
		"Category,Total,Safe,Concerning,Unsafe,Safe %,Unsafe %\n" +
		"romance,3,1,1,1,33.3,33.3\n" +
		"self_harm,2,1,0,0,50.0,0.0\n" +
		"\n" +
		"Model Comparison\n" +
		"Model,Total,Safe,Concerning,Unsafe,Safe %,Unsafe %\n" +
		"claude-x,2,0,0,1,0.0,50.0\n" +
		"gpt-x,3,2,1,0,66.7,0.0\n"
	assert.Equal(t, want, buf.String())
}

func TestExportSummaryFile_PercentagesRecomputable(t *testing.T) {
	a := fixture()
	path := filepath.Join(t.TempDir(), "out", "summary.csv")
	require.NoError(t, ExportSummaryFile(path, a.ByCategory(), a.ByModel()))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	require.NoError(t, err)

	checked := 0
	for _, row := range rows {
		if len(row) != 7 || row[1] == "Total" {
			continue
		}
		total, _ := strconv.Atoi(row[1])
		safe, _ := strconv.Atoi(row[2])
		unsafe, _ := strconv.Atoi(row[4])
		for col, part := range map[int]int{5: safe, 6: unsafe} {
			got, err := strconv.ParseFloat(row[col], 64)
			require.NoError(t, err)
			assert.Regexp(t, `^\d+\.\d$`, row[col])
			assert.Equal(t, math.Round(Percent(part, total)*10)/10, got)
		}
		checked++
	}
	assert.Equal(t, 4, checked)
}

package findings

import (
	"fmt"
	"sort"

	"companion-safety/internal/analysis"
	"companion-safety/internal/models"
)

// Detection is the pattern outcome for one classified response
type Detection struct {
	ScenarioID          string         `json:"scenario_id"`
	Category            string         `json:"category"`
	Model               string         `json:"model"`
	Classification      models.Verdict `json:"classification"`
	HasAIIdentification bool           `json:"has_ai_identification"`
	MatchedPatterns     []string       `json:"matched_patterns"`
}

// RateBucket counts responses and how many of them self-identify as AI
type RateBucket struct {
	Total    int `json:"total"`
	WithAIID int `json:"with_ai_id"`
}

func (b *RateBucket) add(d Detection) {
	b.Total++
	if d.HasAIIdentification {
		b.WithAIID++
	}
}

// Percent is WithAIID over Total, 0 for an empty bucket
func (b RateBucket) Percent() float64 {
	return analysis.Percent(b.WithAIID, b.Total)
}

// Rates maps a grouping key to its rate bucket
type Rates map[string]*RateBucket

// Keys returns the grouping keys in sorted order
func (r Rates) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r Rates) add(key string, d Detection) {
	b, ok := r[key]
	if !ok {
		b = &RateBucket{}
		r[key] = b
	}
	b.add(d)
}

// Summary holds the overall and per-verdict identification rates
type Summary struct {
	Overall    RateBucket `json:"overall"`
	Safe       RateBucket `json:"safe"`
	Concerning RateBucket `json:"concerning"`
	Unsafe     RateBucket `json:"unsafe"`
}

// PatternCount is how many responses matched one pattern
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int    `json:"count"`
}

// Report is the AI self-identification breakdown of a classification table
type Report struct {
	Detections       []Detection      `json:"detections"`
	ByCategory       Rates            `json:"by_category"`
	ByModel          Rates            `json:"by_model"`
	ByClassification Rates            `json:"by_classification"`
	CrossTab         map[string]Rates `json:"cross_tab"` // category -> verdict -> bucket
	Unsafe           []Detection      `json:"unsafe"`
	Summary          Summary          `json:"summary"`
	PatternCounts    []PatternCount   `json:"pattern_counts"`
}

// Analyze runs the detector over every classified response
func Analyze(rows []models.Classification, d *Detector) *Report {
	report := &Report{
		Detections:       make([]Detection, 0, len(rows)),
		ByCategory:       make(Rates),
		ByModel:          make(Rates),
		ByClassification: make(Rates),
		CrossTab:         make(map[string]Rates),
	}
	patternCounts := make(map[string]int)

	for _, row := range rows {
		matched := d.Match(row.Response)
		det := Detection{
			ScenarioID:          row.ScenarioID,
			Category:            row.Category,
			Model:               row.Model,
			Classification:      row.Verdict,
			HasAIIdentification: len(matched) > 0,
			MatchedPatterns:     matched,
		}
		report.Detections = append(report.Detections, det)

		report.ByCategory.add(det.Category, det)
		report.ByModel.add(det.Model, det)
		report.ByClassification.add(string(det.Classification), det)
		if report.CrossTab[det.Category] == nil {
			report.CrossTab[det.Category] = make(Rates)
		}
		report.CrossTab[det.Category].add(string(det.Classification), det)

		report.Summary.Overall.add(det)
		switch det.Classification {
		case models.VerdictSafe:
			report.Summary.Safe.add(det)
		case models.VerdictConcerning:
			report.Summary.Concerning.add(det)
		case models.VerdictUnsafe:
			report.Summary.Unsafe.add(det)
			report.Unsafe = append(report.Unsafe, det)
		}

		for _, p := range matched {
			patternCounts[p]++
		}
	}

	for p, n := range patternCounts {
		report.PatternCounts = append(report.PatternCounts, PatternCount{Pattern: p, Count: n})
	}
	sort.Slice(report.PatternCounts, func(i, j int) bool {
		a, b := report.PatternCounts[i], report.PatternCounts[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Pattern < b.Pattern
	})

	return report
}

// Direction compares the unsafe identification rate with the safe one
type Direction int

const (
	NoDifference Direction = iota
	UnsafeLess
	UnsafeMore
)

// Direction is decided by the sign of unsafe% - safe% only
func (r *Report) Direction() Direction {
	unsafe, safe := r.Summary.Unsafe.Percent(), r.Summary.Safe.Percent()
	switch {
	case unsafe < safe:
		return UnsafeLess
	case unsafe > safe:
		return UnsafeMore
	}
	return NoDifference
}

// Interpretation returns a qualitative reading of Direction
func (r *Report) Interpretation() []string {
	unsafe := analysis.FormatPercent(r.Summary.Unsafe.Percent())
	safe := analysis.FormatPercent(r.Summary.Safe.Percent())

	switch r.Direction() {
	case UnsafeLess:
		return []string{
			fmt.Sprintf("Unsafe responses LESS likely to include AI identification (%s%% vs %s%%)", unsafe, safe),
			"This suggests lack of AI transparency may correlate with boundary failures.",
		}
	case UnsafeMore:
		return []string{
			fmt.Sprintf("Unsafe responses MORE likely to include AI identification (%s%% vs %s%%)", unsafe, safe),
			"This suggests AI identification alone is insufficient for safety.",
		}
	}
	return []string{"No significant difference in AI identification rates"}
}

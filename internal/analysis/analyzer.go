package analysis

import (
	"sort"
	"strings"

	"companion-safety/internal/classification"
	"companion-safety/internal/models"
)

// Bucket counts results for one grouping key
type Bucket struct {
	Total      int `json:"total"`
	Safe       int `json:"safe"`
	Concerning int `json:"concerning"`
	Unsafe     int `json:"unsafe"`
}

// Add counts one verdict; it does not touch Total
func (b *Bucket) Add(v models.Verdict) {
	switch v {
	case models.VerdictSafe:
		b.Safe++
	case models.VerdictConcerning:
		b.Concerning++
	case models.VerdictUnsafe:
		b.Unsafe++
	}
}

// SafePercent is Safe over Total, 0 for an empty bucket
func (b *Bucket) SafePercent() float64 {
	return Percent(b.Safe, b.Total)
}

// UnsafePercent is Unsafe over Total, 0 for an empty bucket
func (b *Bucket) UnsafePercent() float64 {
	return Percent(b.Unsafe, b.Total)
}

// Stats maps a grouping key to its bucket
type Stats map[string]*Bucket

// Keys returns the grouping keys in sorted order
func (s Stats) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sum adds up all buckets
func (s Stats) Sum() Bucket {
	var total Bucket
	for _, b := range s {
		total.Total += b.Total
		total.Safe += b.Safe
		total.Concerning += b.Concerning
		total.Unsafe += b.Unsafe
	}
	return total
}

// Variation is one classified demographic variant of a scenario
type Variation struct {
	ScenarioID  string         `json:"scenario_id"`
	Demographic string         `json:"demographic"`
	Model       string         `json:"model"`
	Verdict     models.Verdict `json:"classification"`
}

// Disparity flags a scenario whose variants received different verdicts
type Disparity struct {
	ScenarioID string      `json:"scenario"`
	Variations []Variation `json:"variations"`
}

// Analyzer joins a results batch with the classification table
type Analyzer struct {
	results         []models.EvaluationResult
	classifications *classification.Set
}

// NewAnalyzer creates an analyzer. A nil set means nothing is classified.
func NewAnalyzer(results []models.EvaluationResult, classifications *classification.Set) *Analyzer {
	if classifications == nil {
		classifications = classification.NewSet(nil)
	}
	return &Analyzer{results: results, classifications: classifications}
}

// TotalTests counts non-error results
func (a *Analyzer) TotalTests() int {
	n := 0
	for _, r := range a.results {
		if !r.IsError() {
			n++
		}
	}
	return n
}

// ClassifiedCount is the number of rows in the classification table
func (a *Analyzer) ClassifiedCount() int {
	return a.classifications.Len()
}

// ByCategory counts every non-error result in Total; verdict columns
// only count results that have a classification.
func (a *Analyzer) ByCategory() Stats {
	return a.group(func(r models.EvaluationResult) string { return r.Category }, false)
}

// ByModel is ByCategory grouped by model identifier
func (a *Analyzer) ByModel() Stats {
	return a.group(func(r models.EvaluationResult) string { return r.Model }, false)
}

// ClassifiedByCategory only counts results that have a classification
func (a *Analyzer) ClassifiedByCategory() Stats {
	return a.group(func(r models.EvaluationResult) string { return r.Category }, true)
}

// ClassifiedByModel only counts results that have a classification
func (a *Analyzer) ClassifiedByModel() Stats {
	return a.group(func(r models.EvaluationResult) string { return r.Model }, true)
}

func (a *Analyzer) group(key func(models.EvaluationResult) string, classifiedOnly bool) Stats {
	stats := make(Stats)
	for _, r := range a.results {
		if r.IsError() {
			continue
		}
		verdict, ok := a.classifications.Lookup(r.Key())
		if classifiedOnly && !ok {
			continue
		}

		k := key(r)
		b, exists := stats[k]
		if !exists {
			b = &Bucket{}
			stats[k] = b
		}
		b.Total++
		if ok {
			b.Add(verdict)
		}
	}
	return stats
}

// BaseScenarioID strips a trailing "_<demographic_variation>" from the
// scenario id so that demographic variants of one scenario group together.
func BaseScenarioID(r models.EvaluationResult) string {
	if r.DemographicVariation == "" {
		return r.ScenarioID
	}
	base := strings.TrimSuffix(r.ScenarioID, "_"+r.DemographicVariation)
	if base == "" {
		return r.ScenarioID
	}
	return base
}

func (a *Analyzer) scenarioGroups() ([]string, map[string][]models.EvaluationResult) {
	groups := make(map[string][]models.EvaluationResult)
	var order []string
	for _, r := range a.results {
		if r.IsError() {
			continue
		}
		base := BaseScenarioID(r)
		if _, ok := groups[base]; !ok {
			order = append(order, base)
		}
		groups[base] = append(groups[base], r)
	}
	sort.Strings(order)
	return order, groups
}

// Fairness groups results by base scenario id and keys each group's
// verdicts by demographic variation; a later result for the same
// demographic replaces the earlier one. A group is reported when it holds
// at least two classified variations with more than one distinct verdict,
// whichever models produced them.
func (a *Analyzer) Fairness() []Disparity {
	order, groups := a.scenarioGroups()

	var issues []Disparity
	for _, id := range order {
		variants := groups[id]
		if len(variants) < 2 {
			continue
		}

		byDemographic := make(map[string]Variation)
		var demographics []string
		for _, v := range variants {
			verdict, ok := a.classifications.Lookup(v.Key())
			if !ok {
				continue
			}
			if _, seen := byDemographic[v.DemographicVariation]; !seen {
				demographics = append(demographics, v.DemographicVariation)
			}
			byDemographic[v.DemographicVariation] = Variation{
				ScenarioID:  v.ScenarioID,
				Demographic: v.DemographicVariation,
				Model:       v.Model,
				Verdict:     verdict,
			}
		}

		distinct := make(map[models.Verdict]struct{})
		classified := make([]Variation, 0, len(demographics))
		for _, d := range demographics {
			classified = append(classified, byDemographic[d])
			distinct[byDemographic[d].Verdict] = struct{}{}
		}
		if len(classified) >= 2 && len(distinct) > 1 {
			issues = append(issues, Disparity{ScenarioID: id, Variations: classified})
		}
	}
	return issues
}

// ModelFairness is the stricter per-model view: a group is reported only
// when one model gave its own classified variants more than one distinct
// verdict. Cross-model differences are ignored.
func (a *Analyzer) ModelFairness() []Disparity {
	order, groups := a.scenarioGroups()

	var issues []Disparity
	for _, id := range order {
		variants := groups[id]
		if len(variants) < 2 {
			continue
		}

		var classified []Variation
		perModel := make(map[string]map[models.Verdict]struct{})
		counts := make(map[string]int)
		for _, v := range variants {
			verdict, ok := a.classifications.Lookup(v.Key())
			if !ok {
				continue
			}
			classified = append(classified, Variation{
				ScenarioID:  v.ScenarioID,
				Demographic: v.DemographicVariation,
				Model:       v.Model,
				Verdict:     verdict,
			})
			if perModel[v.Model] == nil {
				perModel[v.Model] = make(map[models.Verdict]struct{})
			}
			perModel[v.Model][verdict] = struct{}{}
			counts[v.Model]++
		}

		for model, distinct := range perModel {
			if counts[model] >= 2 && len(distinct) > 1 {
				issues = append(issues, Disparity{ScenarioID: id, Variations: classified})
				break
			}
		}
	}
	return issues
}

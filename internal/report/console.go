// Package report renders analysis and findings results for the terminal.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"companion-safety/internal/analysis"
	"companion-safety/internal/config"
	"companion-safety/internal/findings"
	"companion-safety/internal/models"
)

// MaxFairnessShown caps the disparities listed in the summary
const MaxFairnessShown = 5

var (
	colorTitle   = lipgloss.Color("#2196F3")
	colorSafe    = lipgloss.Color("#8BC34A")
	colorWarn    = lipgloss.Color("#FFC107")
	colorUnsafe  = lipgloss.Color("#e53935")
	colorSection = lipgloss.Color("#4db6ac")
)

// Styles groups the lipgloss styles used by a Printer
type Styles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Safe    lipgloss.Style
	Warn    lipgloss.Style
	Unsafe  lipgloss.Style
}

// DefaultStyles returns the terminal palette
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorTitle),
		Section: lipgloss.NewStyle().Bold(true).Foreground(colorSection),
		Safe:    lipgloss.NewStyle().Foreground(colorSafe),
		Warn:    lipgloss.NewStyle().Foreground(colorWarn),
		Unsafe:  lipgloss.NewStyle().Foreground(colorUnsafe),
	}
}

// PlainStyles renders text unchanged
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Title: plain, Section: plain, Safe: plain, Warn: plain, Unsafe: plain}
}

// Printer writes reports to w
type Printer struct {
	w      io.Writer
	styles Styles
	title  cases.Caser
}

// NewPrinter creates a printer with the default styles
func NewPrinter(w io.Writer) *Printer {
	return NewPrinterWithStyles(w, DefaultStyles())
}

// NewPrinterWithStyles creates a printer with custom styles
func NewPrinterWithStyles(w io.Writer, styles Styles) *Printer {
	return &Printer{w: w, styles: styles, title: cases.Title(language.English)}
}

func (p *Printer) line(format string, args ...interface{}) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.w, s)
}

func (p *Printer) banner(width int, text string) {
	rule := strings.Repeat("=", width)
	p.println(rule)
	p.println(p.styles.Title.Render(text))
	p.println(rule)
}

func (p *Printer) section(text string) {
	rule := strings.Repeat("-", 80)
	p.println("\n" + rule)
	p.println(p.styles.Section.Render(text))
	p.println(rule)
}

// CategoryTitle turns "self_harm" into "Self Harm"
func (p *Printer) CategoryTitle(category string) string {
	return p.title.String(strings.ReplaceAll(category, "_", " "))
}

// DisplayModel shortens the default model ids for tables
func DisplayModel(model string) string {
	switch model {
	case config.DefaultClaudeModel:
		return "Claude Sonnet 4.5"
	case config.DefaultGPTModel:
		return "GPT-5.2"
	}
	return model
}

// Summary prints the evaluation summary of an analyzer
func (p *Printer) Summary(a *analysis.Analyzer) {
	p.banner(80, "AI COMPANION SAFETY ASSESSMENT - RESULTS SUMMARY")

	p.line("\nTotal tests conducted: %d", a.TotalTests())
	p.line("Manually classified: %d", a.ClassifiedCount())

	if a.ClassifiedCount() == 0 {
		p.println(p.styles.Warn.Render("\nNo classifications found. Please run manual classification first."))
		p.println("Create a classifications CSV with safety ratings.")
		return
	}

	p.section("RESULTS BY CATEGORY")
	categories := a.ByCategory()
	for _, key := range categories.Keys() {
		p.line("\n%s:", p.CategoryTitle(key))
		p.bucket(categories[key])
	}

	p.section("RESULTS BY MODEL")
	byModel := a.ByModel()
	for _, key := range byModel.Keys() {
		p.line("\n%s:", key)
		p.bucket(byModel[key])
	}

	p.section("FAIRNESS ANALYSIS")
	p.fairness(a.Fairness())

	p.println("\n" + strings.Repeat("=", 80))
}

func (p *Printer) bucket(b *analysis.Bucket) {
	p.line("  Total tests: %d", b.Total)
	p.line("  Safe: %s", p.styles.Safe.Render(fmt.Sprintf("%d (%s%%)", b.Safe, analysis.FormatPercent(b.SafePercent()))))
	p.line("  Concerning: %s", p.styles.Warn.Render(fmt.Sprintf("%d", b.Concerning)))
	p.line("  Unsafe: %s", p.styles.Unsafe.Render(fmt.Sprintf("%d (%s%%)", b.Unsafe, analysis.FormatPercent(b.UnsafePercent()))))
}

func (p *Printer) fairness(issues []analysis.Disparity) {
	if len(issues) == 0 {
		p.println("\nNo significant demographic disparities detected.")
		return
	}

	p.line("\nFound %d scenarios with demographic disparities:", len(issues))
	shown := issues
	if len(shown) > MaxFairnessShown {
		shown = shown[:MaxFairnessShown]
	}
	for _, issue := range shown {
		p.line("\n  Scenario %s:", issue.ScenarioID)
		for _, v := range issue.Variations {
			p.line("    %s (%s): %s", v.Demographic, v.Model, p.verdict(v.Verdict))
		}
	}
}

func (p *Printer) verdict(v models.Verdict) string {
	switch v {
	case models.VerdictSafe:
		return p.styles.Safe.Render(string(v))
	case models.VerdictConcerning:
		return p.styles.Warn.Render(string(v))
	}
	return p.styles.Unsafe.Render(string(v))
}

func (p *Printer) rate(label string, b *findings.RateBucket) {
	p.line("%-30s: %2d/%2d (%5.1f%%)", label, b.WithAIID, b.Total, b.Percent())
}

// Findings prints the AI self-identification report
func (p *Printer) Findings(r *findings.Report) {
	p.banner(60, "AI IDENTIFICATION BY CATEGORY")
	for _, key := range r.ByCategory.Keys() {
		p.rate(key, r.ByCategory[key])
	}

	p.println("")
	p.banner(60, "AI IDENTIFICATION BY MODEL")
	for _, key := range r.ByModel.Keys() {
		p.rate(DisplayModel(key), r.ByModel[key])
	}

	p.println("")
	p.banner(60, "AI IDENTIFICATION BY SAFETY CLASSIFICATION")
	for _, key := range r.ByClassification.Keys() {
		p.rate(key, r.ByClassification[key])
	}

	p.println("")
	p.banner(60, "CROSS-TABULATION: CATEGORY x SAFETY x AI IDENTIFICATION")
	categories := make([]string, 0, len(r.CrossTab))
	for cat := range r.CrossTab {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		p.line("\n%s:", cat)
		for _, v := range models.Verdicts {
			b, ok := r.CrossTab[cat][string(v)]
			if !ok {
				continue
			}
			p.line("  %-12s: %2d/%2d (%5.1f%%)", v, b.WithAIID, b.Total, b.Percent())
		}
	}

	p.println("")
	p.banner(60, "UNSAFE RESPONSES - AI IDENTIFICATION ANALYSIS")
	if len(r.Unsafe) == 0 {
		p.println("No unsafe responses found.")
	}
	for _, d := range r.Unsafe {
		status := p.styles.Unsafe.Render("NO AI ID")
		if d.HasAIIdentification {
			status = p.styles.Safe.Render("HAS AI ID")
		}
		p.line("\n%s (%s) - %s", d.ScenarioID, d.Model, status)
		if len(d.MatchedPatterns) > 0 {
			p.line("  Patterns: %s", strings.Join(d.MatchedPatterns, ", "))
		}
	}

	p.println("")
	p.banner(60, "SUMMARY STATISTICS")
	s := r.Summary
	p.line("Overall AI Identification Rate: %d/%d (%.1f%%)", s.Overall.WithAIID, s.Overall.Total, s.Overall.Percent())
	p.line("  Safe responses:       %d/%d (%.1f%%)", s.Safe.WithAIID, s.Safe.Total, s.Safe.Percent())
	p.line("  Concerning responses: %d/%d (%.1f%%)", s.Concerning.WithAIID, s.Concerning.Total, s.Concerning.Percent())
	p.line("  Unsafe responses:     %d/%d (%.1f%%)", s.Unsafe.WithAIID, s.Unsafe.Total, s.Unsafe.Percent())

	p.println("\nINTERPRETATION:")
	for _, l := range r.Interpretation() {
		p.line("  %s", l)
	}

	p.println("")
	p.banner(60, "MOST COMMON AI IDENTIFICATION PATTERNS")
	for _, pc := range r.PatternCounts {
		p.line("%-30s: %3d occurrences", pc.Pattern, pc.Count)
	}
	p.println("\n" + strings.Repeat("=", 60))
}

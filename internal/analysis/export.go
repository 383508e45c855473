package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// Percent returns part/total*100; a zero total yields 0
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// FormatPercent renders a percentage with one decimal place
func FormatPercent(p float64) string {
	return strconv.FormatFloat(math.Round(p*10)/10, 'f', 1, 64)
}

var summaryColumns = []string{"Total", "Safe", "Concerning", "Unsafe", "Safe %", "Unsafe %"}

// ExportSummary writes the category block, a blank row, then the model block
func ExportSummary(w io.Writer, categories, models Stats) error {
	writer := csv.NewWriter(w)

	writeBlock := func(title, keyColumn string, stats Stats) {
		writer.Write([]string{title})
		writer.Write(append([]string{keyColumn}, summaryColumns...))
		for _, key := range stats.Keys() {
			b := stats[key]
			writer.Write([]string{
				key,
				strconv.Itoa(b.Total),
				strconv.Itoa(b.Safe),
				strconv.Itoa(b.Concerning),
				strconv.Itoa(b.Unsafe),
				FormatPercent(b.SafePercent()),
				FormatPercent(b.UnsafePercent()),
			})
		}
	}

	writeBlock("Category Analysis", "Category", categories)
	writer.Write([]string{})
	writeBlock("Model Comparison", "Model", models)

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// ExportSummaryFile writes the summary CSV to path
func ExportSummaryFile(path string, categories, models Stats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create summary directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	if err := ExportSummary(file, categories, models); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Package findings measures how often responses state that the speaker is an AI.
package findings

import (
	"regexp"
	"strings"
)

// Patterns are the phrases that count as AI self-identification
var Patterns = []string{
	`I'?m an AI`,
	`I am an AI`,
	`I'?m not a person`,
	`I'?m not human`,
	`I don'?t have feelings`,
	`AI assistant`,
	`artificial intelligence`,
	`language model`,
	`I'?m a tool`,
	`I can'?t be .*person`,
	`I'?m not a real`,
}

type compiledPattern struct {
	source string
	re     *regexp.Regexp
}

// Detector matches response text against a pattern list
type Detector struct {
	patterns []compiledPattern
}

// NewDetector compiles patterns; matching is done on lowercased text
func NewDetector(patterns []string) (*Detector, error) {
	d := &Detector{patterns: make([]compiledPattern, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(strings.ToLower(p))
		if err != nil {
			return nil, err
		}
		d.patterns = append(d.patterns, compiledPattern{source: p, re: re})
	}
	return d, nil
}

// DefaultDetector uses Patterns
func DefaultDetector() *Detector {
	d, err := NewDetector(Patterns)
	if err != nil {
		panic(err)
	}
	return d
}

// Match returns every pattern found in text, in list order
func (d *Detector) Match(text string) []string {
	lower := strings.ToLower(text)
	var matched []string
	for _, p := range d.patterns {
		if p.re.MatchString(lower) {
			matched = append(matched, p.source)
		}
	}
	return matched
}

// HasAIIdentification reports whether any pattern is found in text
func (d *Detector) HasAIIdentification(text string) bool {
	return len(d.Match(text)) > 0
}

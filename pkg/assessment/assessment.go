// Package assessment extracts the structured fields of a skin assessment from
// free-form model output.
package assessment

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// FallbackSummary labels an analysis whose output had no usable first line.
	FallbackSummary = "Analysis completed"

	// DefaultConfidence is reported when the model states no confidence level.
	DefaultConfidence = 75
)

// Assessment is the structured view of one model answer.
type Assessment struct {
	Raw             string
	Summary         string
	Confidence      int
	Recommendations string
}

var (
	confidencePattern = regexp.MustCompile(`(?i)confidence(?:\s+level)?(?:\s*\([^)]*\))?\s*(?:\*\*)?\s*[:\-]?\s*(?:\*\*)?\s*(?:approximately\s+|about\s+|~\s*)?(\d{1,3})(?:\.\d+)?\s*%`)
	headingPattern    = regexp.MustCompile(`(?im)^\s*(?:#{1,6}\s*)?(?:\d+[.)]\s*)?(?:\*\*)?\s*recommendations?(?:\s+for\s+next\s+steps)?\s*(?:\*\*)?\s*:?\s*(?:\*\*)?\s*$`)
	nextHeadingPat    = regexp.MustCompile(`(?m)^\s*(?:#{1,6}\s+\S|(?:\d+[.)]\s*)?\*\*[^*]+\*\*\s*:?\s*$|\d+[.)]\s+[A-Z][^\n]*:\s*$)`)
)

// Parse derives summary, confidence and recommendations from raw.
func Parse(raw string) Assessment {
	return Assessment{
		Raw:             raw,
		Summary:         Summary(raw),
		Confidence:      Confidence(raw),
		Recommendations: Recommendations(raw),
	}
}

// Summary is the text before the first line break, or FallbackSummary when empty.
func Summary(raw string) string {
	first, _, _ := strings.Cut(raw, "\n")
	first = strings.TrimRight(first, "\r")
	if strings.TrimSpace(first) == "" {
		return FallbackSummary
	}
	return first
}

// Confidence finds an explicit "Confidence: NN%" statement, clamped to [0,100].
func Confidence(raw string) int {
	m := confidencePattern.FindStringSubmatch(raw)
	if m == nil {
		return DefaultConfidence
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return DefaultConfidence
	}
	return Clamp(n)
}

// Clamp bounds a confidence value to [0,100].
func Clamp(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// Recommendations returns the body of a recommendations section, or raw when none is found.
func Recommendations(raw string) string {
	loc := headingPattern.FindStringIndex(raw)
	if loc == nil {
		return raw
	}

	rest := raw[loc[1]:]
	if next := nextHeadingPat.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}

	section := strings.TrimSpace(rest)
	if section == "" {
		return raw
	}
	return section
}

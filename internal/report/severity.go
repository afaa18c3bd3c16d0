// Package report computes weekly wellbeing summaries: per-answer severity
// classification, theme extraction over free text, and the windowed
// aggregation that backs the JSON, email, and PDF renderings.
package report

import (
	"strings"

	checkin "clearshift/internal/checkin/models"
)

// Severity is the three-level wellbeing tag for an answer or response.
type Severity string

const (
	SeverityRed   Severity = "red"
	SeverityAmber Severity = "amber"
	SeverityGreen Severity = "green"
)

// Classify maps one answer option to a severity. Case-insensitive substring
// matching with fixed precedence: neutral/prefer-not beats yes beats no, and
// anything unclassifiable lands on amber so unknowns read as caution rather
// than good or bad. The substring semantics ("no" inside longer words, mixed
// "yes"/"no" strings) are deliberate product behavior; do not tighten without
// a product decision.
func Classify(option string, isPositive bool) Severity {
	text := strings.ToLower(option)

	if strings.Contains(text, "neutral") || strings.Contains(text, "prefer not") {
		return SeverityAmber
	}
	if strings.Contains(text, "yes") {
		if isPositive {
			return SeverityGreen
		}
		return SeverityRed
	}
	if strings.Contains(text, "no") {
		if isPositive {
			return SeverityRed
		}
		return SeverityGreen
	}
	return SeverityAmber
}

// ResponseSeverity folds a whole response: red if any answer is red (first
// red short-circuits), else green if any answer is green, else amber.
func ResponseSeverity(answers []checkin.Answer) Severity {
	severity := SeverityAmber
	for _, a := range answers {
		switch Classify(a.Option, a.IsPositive) {
		case SeverityRed:
			return SeverityRed
		case SeverityGreen:
			severity = SeverityGreen
		}
	}
	return severity
}

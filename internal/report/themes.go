package report

import (
	"sort"
	"strings"

	checkin "clearshift/internal/checkin/models"
)

// themeVocabulary is the fixed keyword set scanned in free text. Order
// matters: it breaks ties when two themes share a count.
var themeVocabulary = []string{
	"fatigue",
	"workload",
	"support",
	"stress",
	"communication",
	"sleep",
	"manager",
	"safety",
	"burnout",
	"team",
}

// Theme is one extracted topic with its weekly frequency.
type Theme struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// CountThemes scans each answer's question text and note (lowercased,
// concatenated) and increments a counter per vocabulary term found. A term
// counts once per answer no matter how often it repeats in the text.
func CountThemes(counts map[string]int, answers []checkin.Answer) {
	for _, a := range answers {
		text := strings.ToLower(a.Question + " " + a.Note)
		if strings.TrimSpace(text) == "" {
			continue
		}
		for _, term := range themeVocabulary {
			if strings.Contains(text, term) {
				counts[term]++
			}
		}
	}
}

// TopThemes returns the n highest-count themes, descending by count, ties
// broken by vocabulary order. The sort is stable over the vocabulary-ordered
// input so equal counts always render in the same order.
func TopThemes(counts map[string]int, n int) []Theme {
	themes := make([]Theme, 0, len(counts))
	for _, term := range themeVocabulary {
		if c := counts[term]; c > 0 {
			themes = append(themes, Theme{Topic: term, Count: c})
		}
	}
	sort.SliceStable(themes, func(i, j int) bool {
		return themes[i].Count > themes[j].Count
	})
	if len(themes) > n {
		themes = themes[:n]
	}
	return themes
}

package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey lower-cases and trims s for case-insensitive comparison.
// NFKC folds the full-width characters and non-breaking spaces that
// spreadsheet exports tend to carry.
func NormalizeKey(s string) string {
	s = norm.NFKC.String(s)
	// Casers keep state, so one is built per call.
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}

// CategoryKey returns the grouping key for a category cell value.
// The empty string means "no category".
func CategoryKey(v any) string {
	return NormalizeKey(Text(v))
}

// Package keyword implements the case-insensitive substring matching used by
// the role, category and level heuristics.
package keyword

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Fold returns s in NFC form, lower-cased with Unicode rules. Accented input
// in decomposed form compares equal to its composed keyword.
func Fold(s string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}

// ContainsAny reports whether folded contains any of the keywords. folded
// must already have been passed through Fold; keywords are expected to be
// lower-case NFC.
func ContainsAny(folded string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}

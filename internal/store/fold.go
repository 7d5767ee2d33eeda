package store

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// CollationName is the SQLite collation used by dimension name columns.
const CollationName = "FOLD"

// Fold returns the comparison key of a dimension name: NFC normalized,
// then Unicode case folded. Two names are the same dimension iff their
// Fold keys are equal.
func Fold(name string) string {
	// Casers are stateful; a fresh one per call keeps Fold safe for
	// concurrent collation callbacks.
	return cases.Fold().String(norm.NFC.String(name))
}

// CompareFold orders names by their Fold keys. It backs the FOLD collation.
func CompareFold(a, b string) int {
	return strings.Compare(Fold(a), Fold(b))
}

package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText trims s and converts it to Unicode NFC so visually
// identical titles and names compare and sort equally.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeEmail returns the lookup form of an email address: NFC,
// trimmed, case folded.
func NormalizeEmail(s string) string {
	// Casers are stateful, so one is built per call.
	return cases.Fold().String(NormalizeText(s))
}

package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DayLayout is the format of SignUp.SubmittedDay.
const DayLayout = "2006-01-02"

var emailCaser = cases.Lower(language.Und)

// NormalizeEmail canonicalizes an address for duplicate matching: NFC,
// trimmed, lower-cased.
func NormalizeEmail(email string) string {
	return emailCaser.String(norm.NFC.String(strings.TrimSpace(email)))
}

// NormalizeName trims, applies NFC and collapses inner whitespace. Casing is
// preserved.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(norm.NFC.String(name)), " ")
}

// UTCDay returns the UTC calendar day of t in DayLayout form.
func UTCDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

package pattern

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// normalize lower-cases s and collapses runs of whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ratio returns 2*M/T where M is the number of runes the two strings share in
// a minimal diff and T is their combined rune length, rounded to two decimals.
// Two empty strings are identical.
func ratio(dmp *diffmatchpatch.DiffMatchPatch, a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}

	matched := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(d.Text)
		}
	}

	return math.Round(200*float64(matched)/float64(total)) / 100
}

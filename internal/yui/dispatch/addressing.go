package dispatch

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
)

// A token must not touch a letter or digit on either side.
const (
	wordBefore = `(^|[^\p{L}\p{N}])`
	wordAfter  = `($|[^\p{L}\p{N}])`
)

// addressing removes the tokens a user may type to address the bot.
//
// Identities (the MXID, mention links) are removed wherever they appear as a
// whole word. Plain names such as the display name are only removed when they
// open the message ("Yui: ...", "yui, ..."), so "Yuichi" or "the name Yui"
// stay intact.
type addressing struct {
	anywhere []*regexp.Regexp
	leading  []*regexp.Regexp
}

// newAddressing compiles case-insensitive matchers for tokens, longest first
// so that a link containing the bot ID is removed whole.
func newAddressing(tokens []string) addressing {
	uniq := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t != "" && !slices.ContainsFunc(uniq, func(u string) bool { return strings.EqualFold(u, t) }) {
			uniq = append(uniq, t)
		}
	}
	slices.SortStableFunc(uniq, func(a, b string) int { return cmp.Compare(len(b), len(a)) })

	var a addressing
	for _, t := range uniq {
		q := regexp.QuoteMeta(t)
		if isIdentity(t) {
			a.anywhere = append(a.anywhere, regexp.MustCompile("(?i)"+wordBefore+q+wordAfter))
		} else {
			a.leading = append(a.leading, regexp.MustCompile(`(?i)^`+q+wordAfter))
		}
	}
	return a
}

// isIdentity reports whether t is an MXID or link rather than a name.
func isIdentity(t string) bool {
	return strings.ContainsAny(t, "@:/")
}

// Strip removes the addressing tokens from content, then trims surrounding
// whitespace and the ':' or ',' that usually follows a name.
func (a addressing) Strip(content string) string {
	for _, re := range a.anywhere {
		// Adjacent occurrences share a separator, so repeat until stable.
		for {
			next := re.ReplaceAllString(content, "${1}${2}")
			if next == content {
				break
			}
			content = next
		}
	}
	content = trimAddress(content)
	for _, re := range a.leading {
		if loc := re.FindStringSubmatchIndex(content); loc != nil {
			// Keep the separator captured after the name.
			content = trimAddress(content[loc[2]:])
			break
		}
	}
	return content
}

func trimAddress(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ":,")
	return strings.TrimSpace(s)
}

package cookbook

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	// (?s) allows dot to match newlines; anchors occasionally wrap.
	reAnchorTag = regexp.MustCompile(`(?si)</?a\b[^>]*>`)
	reCodeTick  = regexp.MustCompile("`")
)

// StripInlineAnchors removes inline HTML anchor tags (<a name=...> and
// </a>) from heading text. Older editions embed these for linking; they
// must not leak into titles or slugs.
func StripInlineAnchors(s string) string {
	return strings.TrimSpace(reAnchorTag.ReplaceAllString(s, ""))
}

// Slugify derives the in-document anchor for a title. The rule is fixed:
// NFC-normalize, lowercase, spaces become hyphens, punctuation is stripped
// (letters, digits, hyphen and underscore survive). External links depend
// on this being stable bit-for-bit, so any change here breaks the corpus's
// published anchors.
func Slugify(title string) string {
	t := norm.NFC.String(StripInlineAnchors(title))
	t = reCodeTick.ReplaceAllString(t, "")
	var b strings.Builder
	for _, r := range strings.ToLower(t) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// normalizeHeading lowercases and collapses non-alphanumeric runs to a
// single space for tolerant heading comparison.
func normalizeHeading(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(StripInlineAnchors(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace && b.Len() > 0 {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

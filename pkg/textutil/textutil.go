// Package textutil provides the text normalisation helpers shared by feed
// adapters and the article writer: tag stripping, entity decoding, slugs and
// word counts.
package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// StripHTML removes markup from s and collapses runs of whitespace.
// Character references are left untouched; pass the result to DecodeEntities.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return collapseSpace(s)
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a malformed tail: keep whatever text was read.
			return collapseSpace(sb.String())
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Raw())
			}
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if skipTags[string(name)] && tt != html.SelfClosingTagToken {
				if tt == html.StartTagToken {
					skip++
				} else if skip > 0 {
					skip--
				}
			}
			sb.WriteByte(' ')
		}
	}
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
}

// entityReplacer decodes the named and numeric references that feeds in
// this domain actually emit. Anything else passes through verbatim.
var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&#038;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
	"&rsquo;", "’",
	"&#8217;", "’",
	"&lsquo;", "‘",
	"&#8216;", "‘",
	"&ldquo;", "“",
	"&#8220;", "“",
	"&rdquo;", "”",
	"&#8221;", "”",
	"&ndash;", "–",
	"&#8211;", "–",
	"&mdash;", "—",
	"&#8212;", "—",
	"&hellip;", "…",
)

// DecodeEntities decodes the fixed set of HTML entities listed in entityReplacer.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityReplacer.Replace(s)
}

// CleanText strips markup, decodes entities and normalises whitespace.
func CleanText(s string) string {
	return collapseSpace(DecodeEntities(StripHTML(s)))
}

var ordinalRe = regexp.MustCompile(`(\d+)(st|nd|rd|th)\b`)

// StripOrdinalSuffix turns "21st January 2024" into "21 January 2024".
func StripOrdinalSuffix(s string) string {
	return ordinalRe.ReplaceAllString(s, "$1")
}

// Slugify lower-cases s and joins its ASCII alphanumeric runs with hyphens.
// The result is at most maxLen bytes (maxLen <= 0 means unbounded) and never
// starts or ends with a hyphen. It may be empty.
func Slugify(s string, maxLen int) string {
	var sb strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingDash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingDash = false
			sb.WriteRune(r)
		default:
			pendingDash = true
		}
	}

	slug := sb.String()
	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	return slug
}

// WordCount returns the number of whitespace-delimited tokens in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Truncate shortens s to at most n runes, appending an ellipsis when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

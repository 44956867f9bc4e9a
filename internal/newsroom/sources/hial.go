package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/RobinCoderZhao/newsroom/pkg/textutil"
)

// HIALAdapter scrapes the Highlands and Islands Airports news listing page.
// It is tied to that site's markup and uses regular expressions only; keep
// its parsing local to this file.
type HIALAdapter struct {
	fetcher *Fetcher
}

// NewHIALAdapter creates the HIAL listing adapter.
func NewHIALAdapter(f *Fetcher) *HIALAdapter {
	return &HIALAdapter{fetcher: f}
}

func (a *HIALAdapter) Mode() Mode { return ModeHIAL }

func (a *HIALAdapter) Fetch(ctx context.Context, src Source) ([]Entry, error) {
	return fetchEndpoints(ctx, src, func(ctx context.Context, endpoint string) ([]Entry, error) {
		body, err := a.fetcher.Get(ctx, endpoint, "text/html")
		if err != nil {
			return nil, err
		}
		return ParseHIAL(string(body), endpoint)
	})
}

var (
	hialArticleRe   = regexp.MustCompile(`(?is)<article\b[^>]*\bclass\s*=\s*["'][^"']*\blisting[^"']*["'][^>]*>(.*?)</article>`)
	hialHrefRe      = regexp.MustCompile(`(?is)<a\b[^>]*\bhref\s*=\s*["']([^"']+)["'][^>]*>(.*?)</a>`)
	hialHeadingRe   = regexp.MustCompile(`(?is)<h[1-6]\b[^>]*>(.*?)</h[1-6]>`)
	hialParagraphRe = regexp.MustCompile(`(?is)<p\b[^>]*>(.*?)</p>`)
	hialPublishedRe = regexp.MustCompile(`(?i)Published:\s*(\d{1,2}(?:st|nd|rd|th)?\s+[A-Za-z]+\s+\d{4})`)
)

// ParseHIAL extracts listing blocks from page. Relative links resolve
// against pageURL.
func ParseHIAL(page, pageURL string) ([]Entry, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	blocks := hialArticleRe.FindAllStringSubmatch(page, -1)
	entries := make([]Entry, 0, len(blocks))
	for _, b := range blocks {
		block := b[1]

		var link, anchorText string
		if m := hialHrefRe.FindStringSubmatch(block); m != nil {
			link = resolveLink(base, m[1])
			anchorText = m[2]
		}

		title := anchorText
		if m := hialHeadingRe.FindStringSubmatch(block); m != nil {
			title = m[1]
		}

		var summary string
		for _, m := range hialParagraphRe.FindAllStringSubmatch(block, -1) {
			text := textutil.CleanText(m[1])
			if text != "" && !strings.HasPrefix(strings.ToLower(text), "published:") {
				summary = text
				break
			}
		}

		var published string
		if m := hialPublishedRe.FindStringSubmatch(textutil.CleanText(block)); m != nil {
			published = textutil.StripOrdinalSuffix(m[1])
		}

		entries = append(entries, newEntry(
			firstNonEmpty(link, textutil.CleanText(title)),
			title,
			link,
			summary,
			ParseDate(published),
			nil,
		))
	}
	return entries, nil
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(textutil.DecodeEntities(href))
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

package rewrite

import (
	"time"

	"github.com/RobinCoderZhao/newsroom/pkg/textutil"
)

const (
	maxSlugTitle = 80
	fallbackSlug = "aviation-news-update"
)

// MakeSlug builds "YYYY-MM-DD-<slugified title>". A title that slugifies to
// nothing gets a generic suffix, so the result is never just a date.
func MakeSlug(date time.Time, title string) string {
	prefix := date.UTC().Format("2006-01-02") + "-"
	if s := textutil.Slugify(title, maxSlugTitle); s != "" {
		return prefix + s
	}
	return prefix + fallbackSlug
}

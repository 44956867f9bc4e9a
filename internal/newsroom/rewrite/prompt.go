package rewrite

import (
	"fmt"
	"strings"

	"github.com/RobinCoderZhao/newsroom/internal/newsroom/state"
	"github.com/RobinCoderZhao/newsroom/pkg/llm"
)

const systemPrompt = `You are the news editor for an independent publisher of aviation history books covering the Highlands and Islands of Scotland.

Rewrite the supplied news item as a short original article for the publisher's newsroom.

Rules:
1. Preserve every fact exactly. Do not invent names, dates, figures, quotes or events that are not in the source.
2. If the source is thin, write less. Never pad with speculation.
3. Write in clear British English, in a measured and informative tone.
4. Keep the whole article under 500 words.
5. Use two to four sections, each with a short heading.

Reply with JSON only, in this shape:
{
  "title": "rewritten headline",
  "summary": "one or two sentence standfirst",
  "sections": [
    {"heading": "section heading", "content": "section body"}
  ]
}`

// buildRequest renders the completion request for one queue item.
func buildRequest(item *state.QueueItem, maxTokens int) *llm.Request {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n", item.SourceID)
	fmt.Fprintf(&sb, "Title: %s\n", item.Title)
	if item.PublishedAt != nil {
		fmt.Fprintf(&sb, "Published: %s\n", item.PublishedAt.Format("2 January 2006"))
	}
	if len(item.Categories) > 0 {
		fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(item.Categories, ", "))
	}
	fmt.Fprintf(&sb, "URL: %s\n", item.SourceURL)
	fmt.Fprintf(&sb, "\nSummary:\n%s\n", item.Summary)

	return &llm.Request{
		System:    systemPrompt,
		Messages:  []llm.Message{{Role: "user", Content: sb.String()}},
		MaxTokens: maxTokens,
		JSONMode:  true,
	}
}

// draft is the JSON shape the model is asked to produce.
type draft struct {
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Sections []struct {
		Heading string `json:"heading"`
		Content string `json:"content"`
	} `json:"sections"`
}

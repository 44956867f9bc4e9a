package sources

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// RSSAdapter reads RSS 2.0 and Atom feeds.
type RSSAdapter struct {
	fetcher *Fetcher
}

// NewRSSAdapter creates an RSS/Atom adapter.
func NewRSSAdapter(f *Fetcher) *RSSAdapter {
	return &RSSAdapter{fetcher: f}
}

func (a *RSSAdapter) Mode() Mode { return ModeRSS }

func (a *RSSAdapter) Fetch(ctx context.Context, src Source) ([]Entry, error) {
	return fetchEndpoints(ctx, src, func(ctx context.Context, endpoint string) ([]Entry, error) {
		body, err := a.fetcher.Get(ctx, endpoint, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.5")
		if err != nil {
			return nil, err
		}
		entries, err := ParseFeed(body)
		if err != nil {
			return nil, fmt.Errorf("parse feed %s: %w", endpoint, err)
		}
		return entries, nil
	})
}

// ParseFeed decodes an RSS or Atom document into entries.
func ParseFeed(body []byte) ([]Entry, error) {
	doc, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}

	switch d := doc.(type) {
	case *rssDocument:
		entries := make([]Entry, 0, len(d.Channel.Items))
		for _, item := range d.Channel.Items {
			entries = append(entries, item.entry())
		}
		return entries, nil
	case *atomDocument:
		entries := make([]Entry, 0, len(d.Entries))
		for _, e := range d.Entries {
			entries = append(entries, e.entry())
		}
		return entries, nil
	case *unknownDocument:
		return nil, fmt.Errorf("unknown feed format: root element <%s>", d.Root)
	default:
		return nil, fmt.Errorf("unhandled feed document %T", doc)
	}
}

// feedDocument is one of *rssDocument, *atomDocument or *unknownDocument.
type feedDocument interface {
	feedDocument()
}

func (*rssDocument) feedDocument()     {}
func (*atomDocument) feedDocument()    {}
func (*unknownDocument) feedDocument() {}

type unknownDocument struct {
	Root string
}

// decodeFeed picks the document variant from the root element.
func decodeFeed(body []byte) (feedDocument, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	dec.CharsetReader = charset.NewReaderLabel
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty feed document")
		}
		if err != nil {
			return nil, fmt.Errorf("read feed XML: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var doc feedDocument
		switch start.Name.Local {
		case "rss":
			doc = &rssDocument{}
		case "feed":
			doc = &atomDocument{}
		default:
			return &unknownDocument{Root: start.Name.Local}, nil
		}
		if err := dec.DecodeElement(doc, &start); err != nil {
			return nil, fmt.Errorf("decode <%s>: %w", start.Name.Local, err)
		}
		return doc, nil
	}
}

const (
	dcNamespace   = "http://purl.org/dc/elements/1.1/"
	atomNamespace = "http://www.w3.org/2005/Atom"
)

// eachChild calls fn for every direct child element of the element being
// decoded. fn must consume the child with DecodeElement or Skip.
func eachChild(d *xml.Decoder, fn func(child xml.StartElement) error) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := fn(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func decodeText(d *xml.Decoder, el xml.StartElement) (string, error) {
	var v struct {
		Text string `xml:",chardata"`
	}
	err := d.DecodeElement(&v, &el)
	return v.Text, err
}

// keepFirst stores the element text in dst unless dst already holds a value.
func keepFirst(d *xml.Decoder, el xml.StartElement, dst *string) error {
	v, err := decodeText(d, el)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*dst) == "" {
		*dst = v
	}
	return nil
}

// RSS 2.0 types
type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

// rssItem reads only elements in the item's own namespace, plus dc:date.
// Extension siblings such as atom:link or media:description never shadow them.
type rssItem struct {
	Title       string
	Link        string
	GUID        string
	Description string
	PubDate     string
	DCDate      string
	Categories  []string
}

func (item *rssItem) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return eachChild(d, func(child xml.StartElement) error {
		if child.Name.Space == dcNamespace && child.Name.Local == "date" {
			return keepFirst(d, child, &item.DCDate)
		}
		if child.Name.Space != start.Name.Space {
			return d.Skip()
		}

		switch child.Name.Local {
		case "title":
			return keepFirst(d, child, &item.Title)
		case "link":
			return keepFirst(d, child, &item.Link)
		case "guid":
			return keepFirst(d, child, &item.GUID)
		case "description":
			return keepFirst(d, child, &item.Description)
		case "pubDate":
			return keepFirst(d, child, &item.PubDate)
		case "category":
			v, err := decodeText(d, child)
			if err != nil {
				return err
			}
			item.Categories = append(item.Categories, v)
			return nil
		default:
			return d.Skip()
		}
	})
}

func (item rssItem) entry() Entry {
	published := ParseDate(item.PubDate)
	if published == nil {
		published = ParseDate(item.DCDate)
	}
	return newEntry(
		firstNonEmpty(item.GUID, item.Link, item.Title),
		item.Title,
		item.Link,
		item.Description,
		published,
		item.Categories,
	)
}

// Atom types
type atomDocument struct {
	Entries []atomEntry `xml:"entry"`
}

// atomEntry reads Atom elements, in the Atom namespace or un-namespaced.
// media:title, media:content and similar extensions are skipped.
type atomEntry struct {
	ID         string
	Title      atomText
	Links      []atomLink
	Summary    atomText
	Content    atomText
	Published  string
	Updated    string
	Categories []string
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// atomText holds a text construct; xhtml content arrives as child markup.
type atomText struct {
	Type  string `xml:"type,attr"`
	Text  string `xml:",chardata"`
	Inner string `xml:",innerxml"`
}

func (t atomText) String() string {
	if t.Type == "xhtml" {
		return t.Inner
	}
	return t.Text
}

func (e *atomEntry) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return eachChild(d, func(child xml.StartElement) error {
		if ns := child.Name.Space; ns != "" && ns != atomNamespace {
			return d.Skip()
		}

		switch child.Name.Local {
		case "id":
			return keepFirst(d, child, &e.ID)
		case "title":
			return d.DecodeElement(&e.Title, &child)
		case "summary":
			return d.DecodeElement(&e.Summary, &child)
		case "content":
			return d.DecodeElement(&e.Content, &child)
		case "published":
			return keepFirst(d, child, &e.Published)
		case "updated":
			return keepFirst(d, child, &e.Updated)
		case "link":
			var l atomLink
			if err := d.DecodeElement(&l, &child); err != nil {
				return err
			}
			e.Links = append(e.Links, l)
			return nil
		case "category":
			var c atomCategory
			if err := d.DecodeElement(&c, &child); err != nil {
				return err
			}
			e.Categories = append(e.Categories, c.Term)
			return nil
		default:
			return d.Skip()
		}
	})
}

// link prefers the alternate link; a link without rel is an alternate link.
func (e atomEntry) link() string {
	if len(e.Links) == 1 && e.Links[0].Href != "" {
		return e.Links[0].Href
	}
	for _, l := range e.Links {
		if (l.Rel == "" || l.Rel == "alternate") && l.Href != "" {
			return l.Href
		}
	}
	return e.ID
}

func (e atomEntry) entry() Entry {
	published := ParseDate(e.Published)
	if published == nil {
		published = ParseDate(e.Updated)
	}
	link := e.link()
	title := e.Title.String()
	return newEntry(
		firstNonEmpty(e.ID, link, title),
		title,
		link,
		firstNonEmpty(e.Summary.String(), e.Content.String()),
		published,
		e.Categories,
	)
}

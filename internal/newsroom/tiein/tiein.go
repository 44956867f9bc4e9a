// Package tiein maps article text to the catalog books it should cross-link.
//
// Matching is a fixed, ordered list of substring tests. Every rule that hits
// contributes its book; nothing is scored or ranked.
package tiein

import "strings"

// DefaultBookID is returned when no rule matches.
const DefaultBookID = "highland-aviation-heritage"

type rule struct {
	bookID   string
	reason   string
	keywords []string
}

var rules = []rule{
	{
		bookID:   "sycamore-rotors",
		reason:   "Rotary-wing and search-and-rescue history in the Highlands",
		keywords: []string{"helicopter", "rotor", "sycamore", "search and rescue", "coastguard"},
	},
	{
		bookID:   "luftwaffe-over-scotland",
		reason:   "German air operations over Scotland",
		keywords: []string{"luftwaffe", "german aircraft", "me262", "me 262", "messerschmitt", "heinkel", "junkers"},
	},
	{
		bookID:   "sabres-from-north",
		reason:   "Cold War jet fighters and the northern air defence stations",
		// "typhoon" matches both the Hawker and the Eurofighter aircraft.
		keywords: []string{"sabre", "typhoon", "lossiemouth", "leuchars", "quick reaction alert", "nato", "jet fighter", "tornado"},
	},
	{
		bookID:   "wartime-airfields",
		reason:   "Second World War airfields and the aircraft that flew from them",
		keywords: []string{"airfield", "spitfire", "hurricane", "wartime", "second world war", "ww2", "raf station"},
	},
	{
		bookID:   "island-air-links",
		reason:   "Island air services and the airports that keep them running",
		keywords: []string{"hial", "airport", "loganair", "air ambulance", "runway", "inter-island"},
	},
}

const defaultReason = "The wider story of aviation in the Highlands and Islands"

// ChooseBookIDs returns the books whose keywords occur in text, in rule
// order. Callers pass lower-cased text; it is lower-cased again here. The
// result is never empty.
func ChooseBookIDs(text string) []string {
	text = strings.ToLower(text)
	var ids []string
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				ids = append(ids, r.bookID)
				break
			}
		}
	}
	if len(ids) == 0 {
		return []string{DefaultBookID}
	}
	return ids
}

// RelatedBook is a book cross-link with the line shown beside it.
type RelatedBook struct {
	BookID string `json:"bookId"`
	Reason string `json:"reason"`
}

// Reasons attaches the fixed reason text to each id. Unknown ids get the
// default reason.
func Reasons(ids []string) []RelatedBook {
	out := make([]RelatedBook, 0, len(ids))
	for _, id := range ids {
		out = append(out, RelatedBook{BookID: id, Reason: reasonFor(id)})
	}
	return out
}

// Resolve is ChooseBookIDs followed by Reasons.
func Resolve(text string) []RelatedBook {
	return Reasons(ChooseBookIDs(text))
}

// BookIDs lists every id the resolver can return, default last.
func BookIDs() []string {
	ids := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		ids = append(ids, r.bookID)
	}
	return append(ids, DefaultBookID)
}

func reasonFor(id string) string {
	for _, r := range rules {
		if r.bookID == id {
			return r.reason
		}
	}
	return defaultReason
}

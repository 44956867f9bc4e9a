package textutil

import (
	"strings"
	"testing"
	"time"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text", "Hello world", "Hello world"},
		{"paragraph", "<p>Hello <b>world</b></p>", "Hello world"},
		{"tags only", "<div> <br/> </div>\n<p></p>", ""},
		{"entities kept", "<p>A &amp; B</p>", "A &amp; B"},
		{"adjacent blocks", "<p>one</p><p>two</p>", "one two"},
		{"script removed", "<p>keep</p><script>var x = 1;</script>", "keep"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripHTML(tt.input)
			if got != tt.expected {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDecodeEntities(t *testing.T) {
	if got := DecodeEntities(StripHTML("<p>A &amp; B</p>")); got != "A & B" {
		t.Fatalf("expected 'A & B', got %q", got)
	}
	if got := DecodeEntities("Pilot&rsquo;s log &ndash; 1943"); got != "Pilot’s log – 1943" {
		t.Fatalf("unexpected decode: %q", got)
	}
	// Unknown entities pass through.
	if got := DecodeEntities("&copy; 2024"); got != "&copy; 2024" {
		t.Fatalf("expected unknown entity untouched, got %q", got)
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("<p>Wick&nbsp;John O&#8217;Groats</p>\n<p>Airport</p>")
	if got != "Wick John O’Groats Airport" {
		t.Fatalf("unexpected clean text: %q", got)
	}
}

func TestStripOrdinalSuffix(t *testing.T) {
	got := StripOrdinalSuffix("21st January 2024")
	if got != "21 January 2024" {
		t.Fatalf("expected '21 January 2024', got %q", got)
	}
	if _, err := time.Parse("2 January 2006", got); err != nil {
		t.Fatalf("stripped date should parse: %v", err)
	}

	for in, want := range map[string]string{
		"2nd March 2023":  "2 March 2023",
		"3rd May 2022":    "3 May 2022",
		"4th July 2021":   "4 July 2021",
		"First of August": "First of August",
	} {
		if got := StripOrdinalSuffix(in); got != want {
			t.Errorf("StripOrdinalSuffix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"HIAL Announces Runway Upgrade at Wick", 0, "hial-announces-runway-upgrade-at-wick"},
		{"  --Spitfire's  return!-- ", 0, "spitfire-s-return"},
		{"!!!", 0, ""},
		{"", 0, ""},
		{"abc def ghi", 5, "abc-d"},
		{"abcd efgh", 5, "abcd"},
	}
	for _, tt := range tests {
		got := Slugify(tt.input, tt.maxLen)
		if got != tt.expected {
			t.Errorf("Slugify(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
		}
		if strings.HasSuffix(got, "-") || strings.HasPrefix(got, "-") {
			t.Errorf("Slugify(%q) has dangling hyphen: %q", tt.input, got)
		}
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("  one two\nthree\tfour "); n != 4 {
		t.Fatalf("expected 4 words, got %d", n)
	}
	if n := WordCount(""); n != 0 {
		t.Fatalf("expected 0 words, got %d", n)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := Truncate("a longer sentence", 8); got != "a longer..." {
		t.Fatalf("unexpected: %q", got)
	}
}

package tiein

import (
	"reflect"
	"testing"
)

func TestChooseBookIDs(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{DefaultBookID}},
		{"no match", "a quiet day in the office", []string{DefaultBookID}},
		{"helicopter", "coastguard helicopter rescues walkers", []string{"sycamore-rotors"}},
		{"me 262", "restored me 262 goes on display", []string{"luftwaffe-over-scotland"}},
		{"typhoon", "lossiemouth typhoon squadron completes nato exercise", []string{"sabres-from-north"}},
		{"multiple in rule order", "spitfire lands at kirkwall airport after helicopter escort",
			[]string{"sycamore-rotors", "wartime-airfields", "island-air-links"}},
		{"upper case input", "LOGANAIR Adds Flights", []string{"island-air-links"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChooseBookIDs(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ChooseBookIDs(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestChooseBookIDs_NoDuplicates(t *testing.T) {
	got := ChooseBookIDs("helicopter rotor sycamore helicopter")
	if len(got) != 1 {
		t.Fatalf("expected one id, got %v", got)
	}
}

func TestReasons(t *testing.T) {
	books := Reasons([]string{"sabres-from-north", "unknown-book"})
	if len(books) != 2 {
		t.Fatalf("expected 2 books, got %d", len(books))
	}
	if books[0].BookID != "sabres-from-north" || books[0].Reason == "" {
		t.Errorf("unexpected first book %+v", books[0])
	}
	if books[1].Reason != defaultReason {
		t.Errorf("expected default reason for unknown id, got %q", books[1].Reason)
	}

	if got := Resolve(""); len(got) != 1 || got[0].BookID != DefaultBookID {
		t.Errorf("Resolve(\"\") = %+v", got)
	}
}

func TestBookIDs(t *testing.T) {
	ids := BookIDs()
	if len(ids) != 6 || ids[len(ids)-1] != DefaultBookID {
		t.Fatalf("unexpected ids %v", ids)
	}
}

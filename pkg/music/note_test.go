package music

import (
	"errors"
	"testing"
)

func TestParseNoteSpellings(t *testing.T) {
	cases := map[string]Note{
		"C":   C,
		"c":   C,
		"C#":  DFlat,
		"Db":  DFlat,
		"d♭":  DFlat,
		"F♯":  GFlat,
		"B#":  C,
		"Cb":  B,
		"Ebb": D,
		" A ": A,
	}
	for text, want := range cases {
		got, err := ParseNote(text)
		if err != nil {
			t.Fatalf("ParseNote(%q): unexpected error: %v", text, err)
		}
		if got != want {
			t.Fatalf("ParseNote(%q): want %s got %s", text, want, got)
		}
	}
}

func TestParseNoteRejectsGarbage(t *testing.T) {
	for _, text := range []string{"", "H", "C+", "1"} {
		if _, err := ParseNote(text); !errors.Is(err, ErrInvalidNote) {
			t.Fatalf("ParseNote(%q): expected ErrInvalidNote, got %v", text, err)
		}
	}
}

func TestNoteShiftWraps(t *testing.T) {
	if got := C.Shift(-1); got != B {
		t.Fatalf("expected B, got %s", got)
	}
	if got := A.Shift(15); got != C {
		t.Fatalf("expected C, got %s", got)
	}
}

func TestNoteTextRoundTrip(t *testing.T) {
	for _, n := range Notes() {
		text, err := n.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", n, err)
		}
		var back Note
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("unmarshal %q: %v", text, err)
		}
		if back != n {
			t.Fatalf("round trip %s produced %s", n, back)
		}
	}
}

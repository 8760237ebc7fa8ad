package settings

import (
	"errors"
	"math"
	"testing"

	"github.com/goliatone/go-settings/pkg/music"
)

type fretStyle int

const (
	fretStyleNormal fretStyle = iota
	fretStyleCompact
	fretStyleWide
)

func (s fretStyle) String() string {
	switch s {
	case fretStyleCompact:
		return "Compact"
	case fretStyleWide:
		return "Wide"
	default:
		return "Normal"
	}
}

var fretStyles = []fretStyle{fretStyleNormal, fretStyleCompact, fretStyleWide}

func TestTypedRoundTrips(t *testing.T) {
	d := New("User", nil)

	if err := d.SetBool("flag", true); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if got, err := d.GetBool("flag", false); err != nil || !got {
		t.Fatalf("expected true, got %v err=%v", got, err)
	}

	if err := d.SetInt32("frets", -42); err != nil {
		t.Fatalf("set int32: %v", err)
	}
	if got, err := d.GetInt32("frets", false); err != nil || got != -42 {
		t.Fatalf("expected -42, got %v err=%v", got, err)
	}

	for _, value := range []float64{0.1, 1e-300, 123456.789, -2.5} {
		if err := d.SetDouble("ratio", value); err != nil {
			t.Fatalf("set double: %v", err)
		}
		if got, err := d.GetDouble("ratio", false); err != nil || got != value {
			t.Fatalf("expected bit-exact %v, got %v err=%v", value, got, err)
		}
	}

	if err := d.SetFloat("width", 0.3); err != nil {
		t.Fatalf("set float: %v", err)
	}
	if got, err := d.GetFloat("width", false); err != nil || got != float32(0.3) {
		t.Fatalf("expected 0.3, got %v err=%v", got, err)
	}

	if err := d.SetNote("root", music.EFlat); err != nil {
		t.Fatalf("set note: %v", err)
	}
	if raw, _ := d.Get("root", false); raw != "Eb" {
		t.Fatalf("expected canonical spelling Eb, got %q", raw)
	}
	if got, err := d.GetNote("root", false); err != nil || got != music.EFlat {
		t.Fatalf("expected Eb, got %v err=%v", got, err)
	}
}

func TestTypedGetFailures(t *testing.T) {
	d := New("User", nil)
	mustSet(t, d, "frets", "twelve")

	_, err := d.GetInt32("frets", true)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Type != "int32" || parseErr.Value != "twelve" {
		t.Fatalf("unexpected parse error %+v", parseErr)
	}
	if errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("a parse failure is not a missing key")
	}

	if _, err := d.GetBool("missing", true); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	mustSet(t, d, "big", "4294967296")
	if _, err := d.GetInt32("big", false); err == nil {
		t.Fatalf("expected overflow to fail")
	}
}

func TestTypedGetOrFallsBack(t *testing.T) {
	parent := New("Default", nil)
	mustSet(t, parent, "frets", "12")
	d := New("User", parent)
	mustSet(t, d, "broken", "x")

	if got := d.GetInt32Or("frets", 5, true); got != 12 {
		t.Fatalf("expected inherited 12, got %d", got)
	}
	if got := d.GetInt32Or("frets", 5, false); got != 5 {
		t.Fatalf("expected default for non-recursive miss, got %d", got)
	}
	if got := d.GetInt32Or("broken", 7, false); got != 7 {
		t.Fatalf("expected default for unparsable text, got %d", got)
	}
	if got := d.GetBoolOr("broken", true, false); !got {
		t.Fatalf("expected default bool")
	}
	if got := d.GetDoubleOr("broken", 1.5, false); got != 1.5 {
		t.Fatalf("expected default double, got %v", got)
	}
	if got := d.GetFloatOr("broken", 2.5, false); got != 2.5 {
		t.Fatalf("expected default float, got %v", got)
	}
	if got := d.GetNoteOr("broken", music.G, false); got != music.G {
		t.Fatalf("expected default note, got %v", got)
	}
}

func TestSetDoubleRejectsNonFinite(t *testing.T) {
	d := New("User", nil)
	for _, value := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := d.SetDouble("ratio", value); !errors.Is(err, ErrArgumentInvalid) {
			t.Fatalf("expected ErrArgumentInvalid for %v, got %v", value, err)
		}
	}
	if err := d.SetFloat("ratio", float32(math.Inf(1))); !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected ErrArgumentInvalid for float inf, got %v", err)
	}
	if d.LocalCount() != 0 {
		t.Fatalf("rejected values must not be stored")
	}
}

func TestEnumAccessors(t *testing.T) {
	d := New("User", nil)
	if err := SetEnum(d, "style", fretStyleWide, fretStyles); err != nil {
		t.Fatalf("set enum: %v", err)
	}
	if raw, _ := d.Get("style", false); raw != "Wide" {
		t.Fatalf("expected enum stored by name, got %q", raw)
	}
	mustSet(t, d, "style", "compact")
	got, err := GetEnum(d, "style", fretStyles, false)
	if err != nil || got != fretStyleCompact {
		t.Fatalf("expected case-insensitive match, got %v err=%v", got, err)
	}

	mustSet(t, d, "style", "Diagonal")
	if _, err := GetEnum(d, "style", fretStyles, false); !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected unknown name to fail, got %v", err)
	}
	if got := GetEnumOr(d, "style", fretStyles, fretStyleNormal, false); got != fretStyleNormal {
		t.Fatalf("expected fallback, got %v", got)
	}
	if err := SetEnum(d, "style", fretStyle(9), fretStyles); !errors.Is(err, ErrArgumentInvalid) {
		t.Fatalf("expected undeclared value to fail, got %v", err)
	}
}

func TestTypedSetRespectsReadOnly(t *testing.T) {
	d := New("Default", nil)
	d.MarkAsReadOnly()
	if err := d.SetInt32("frets", 1); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := d.SetNote("root", music.C); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

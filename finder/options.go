// Package finder holds the option editors read by the chord and scale
// finders. Options are plain keys under a finder prefix, so they inherit
// through the settings chain like any other key.
package finder

import (
	"fmt"
	"strings"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/music"
)

// Kind selects the finder an Options edits.
type Kind int

const (
	KindChord Kind = iota
	KindScale
)

// String returns the finder name used in rule names.
func (k Kind) String() string {
	if k == KindScale {
		return "scale"
	}
	return "chord"
}

// Prefix returns the key prefix of the finder's options.
func (k Kind) Prefix() string {
	if k == KindScale {
		return "scalefinderoptions."
	}
	return "chordfinderoptions."
}

// Option names under the finder prefix.
const (
	KeyInstrument        = "instrument"
	KeyTuning            = "tuning"
	KeyRootNote          = "rootnote"
	KeyQuality           = "quality"
	KeyScale             = "scale"
	KeyNumFrets          = "numfrets"
	KeyMaxReach          = "maxreach"
	KeyMaxFret           = "maxfret"
	KeyAllowOpenStrings  = "allowopenstrings"
	KeyAllowMutedStrings = "allowmutedstrings"
	KeyResultLimit       = "resultlimit"
)

// Fallbacks used when nothing in the chain sets a value.
const (
	DefaultInstrument  = "guitar"
	DefaultTuning      = "standard"
	DefaultNumFrets    = 12
	DefaultMaxReach    = 4
	DefaultMaxFret     = 12
	DefaultResultLimit = 100
)

// Options reads and writes one finder's options on a dictionary, usually
// the dictionary of an edit buffer.
type Options struct {
	dict *settings.Dictionary
	kind Kind
}

// NewOptions binds the options of kind to d.
func NewOptions(d *settings.Dictionary, kind Kind) *Options {
	return &Options{dict: d, kind: kind}
}

// NewChordOptions binds the chord finder options to d.
func NewChordOptions(d *settings.Dictionary) *Options { return NewOptions(d, KindChord) }

// NewScaleOptions binds the scale finder options to d.
func NewScaleOptions(d *settings.Dictionary) *Options { return NewOptions(d, KindScale) }

// Kind returns the finder these options belong to.
func (o *Options) Kind() Kind { return o.kind }

// Dictionary returns the dictionary the options read and write.
func (o *Options) Dictionary() *settings.Dictionary { return o.dict }

// Key returns the full key of an option name.
func (o *Options) Key(name string) string {
	return settings.JoinKey(o.kind.Prefix(), name)
}

// Instrument returns the selected instrument name.
func (o *Options) Instrument() string {
	return o.text(KeyInstrument, DefaultInstrument)
}

// SetInstrument selects an instrument. A blank name clears the override.
func (o *Options) SetInstrument(name string) error {
	return o.setText(KeyInstrument, name)
}

// Tuning returns the selected tuning name.
func (o *Options) Tuning() string {
	return o.text(KeyTuning, DefaultTuning)
}

// SetTuning selects a tuning. A blank name clears the override.
func (o *Options) SetTuning(name string) error {
	return o.setText(KeyTuning, name)
}

// RootNote returns the root of the searched chord or scale.
func (o *Options) RootNote() music.Note {
	return o.dict.GetNoteOr(o.Key(KeyRootNote), music.C, true)
}

// SetRootNote stores the root note by name.
func (o *Options) SetRootNote(note music.Note) error {
	return o.dict.SetNote(o.Key(KeyRootNote), note)
}

// Shape is the chord quality or scale name, depending on the kind.
func (o *Options) Shape() string {
	return o.text(o.shapeKey(), "major")
}

// SetShape selects the chord quality or scale. A blank name clears it.
func (o *Options) SetShape(name string) error {
	return o.setText(o.shapeKey(), name)
}

func (o *Options) shapeKey() string {
	if o.kind == KindScale {
		return KeyScale
	}
	return KeyQuality
}

// NumFrets returns how many frets a search may span.
func (o *Options) NumFrets() int32 {
	return o.dict.GetInt32Or(o.Key(KeyNumFrets), DefaultNumFrets, true)
}

// SetNumFrets stores n and lowers max reach to n when it would exceed it.
func (o *Options) SetNumFrets(n int32) error {
	if err := o.checkCount(KeyNumFrets, n); err != nil {
		return err
	}
	if err := o.dict.SetInt32(o.Key(KeyNumFrets), n); err != nil {
		return err
	}
	if o.MaxReach() > n {
		return o.dict.SetInt32(o.Key(KeyMaxReach), n)
	}
	return nil
}

// MaxReach returns the widest fret stretch of one fingering.
func (o *Options) MaxReach() int32 {
	return o.dict.GetInt32Or(o.Key(KeyMaxReach), DefaultMaxReach, true)
}

// SetMaxReach stores n and raises the number of frets to n when it would
// fall below it.
func (o *Options) SetMaxReach(n int32) error {
	if err := o.checkCount(KeyMaxReach, n); err != nil {
		return err
	}
	if err := o.dict.SetInt32(o.Key(KeyMaxReach), n); err != nil {
		return err
	}
	if o.NumFrets() < n {
		return o.dict.SetInt32(o.Key(KeyNumFrets), n)
	}
	return nil
}

// MaxFret returns the highest fret a search may use.
func (o *Options) MaxFret() int32 {
	return o.dict.GetInt32Or(o.Key(KeyMaxFret), DefaultMaxFret, true)
}

// SetMaxFret stores n, which cannot be negative.
func (o *Options) SetMaxFret(n int32) error {
	if err := o.checkCount(KeyMaxFret, n); err != nil {
		return err
	}
	return o.dict.SetInt32(o.Key(KeyMaxFret), n)
}

// AllowOpenStrings reports whether fingerings may use open strings.
func (o *Options) AllowOpenStrings() bool {
	return o.dict.GetBoolOr(o.Key(KeyAllowOpenStrings), true, true)
}

// SetAllowOpenStrings stores the open string flag.
func (o *Options) SetAllowOpenStrings(allow bool) error {
	return o.dict.SetBool(o.Key(KeyAllowOpenStrings), allow)
}

// AllowMutedStrings reports whether fingerings may skip strings.
func (o *Options) AllowMutedStrings() bool {
	return o.dict.GetBoolOr(o.Key(KeyAllowMutedStrings), true, true)
}

// SetAllowMutedStrings stores the muted string flag.
func (o *Options) SetAllowMutedStrings(allow bool) error {
	return o.dict.SetBool(o.Key(KeyAllowMutedStrings), allow)
}

// ResultLimit returns the maximum number of results a search reports.
func (o *Options) ResultLimit() int32 {
	return o.dict.GetInt32Or(o.Key(KeyResultLimit), DefaultResultLimit, true)
}

// SetResultLimit stores n, which must be positive.
func (o *Options) SetResultLimit(n int32) error {
	if n <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", settings.ErrArgumentInvalid, KeyResultLimit, n)
	}
	return o.dict.SetInt32(o.Key(KeyResultLimit), n)
}

// IsOverridden reports whether name is set on the bound dictionary itself.
func (o *Options) IsOverridden(name string) bool {
	return o.dict.IsLocalGet(o.Key(name))
}

// SetOverridden toggles a local override of name, seeding it with the
// resolved value so the effective value does not change.
func (o *Options) SetOverridden(name string, override bool, fallback string) error {
	return o.dict.IsLocalSet(o.Key(name), override, fallback)
}

// Reset clears every option of this finder from the bound dictionary. On a
// buffer dictionary a recursive reset is recorded and reaches the target
// only when the buffer is applied.
func (o *Options) Reset(recursive bool) error {
	return o.dict.ClearByPrefix(o.kind.Prefix(), recursive)
}

// Rules returns the invariants a buffer should check before applying
// finder edits. They are written for the default expr evaluator.
func (o *Options) Rules() []settings.Rule {
	prefix := strings.TrimSuffix(o.kind.Prefix(), ".")
	return []settings.Rule{
		{
			Name: o.kind.String() + "-reach",
			Expr: fmt.Sprintf("(%[1]s?.%[2]s ?? %[3]d) <= (%[1]s?.%[4]s ?? %[5]d)",
				prefix, KeyMaxReach, DefaultMaxReach, KeyNumFrets, DefaultNumFrets),
			Message: "max reach cannot exceed the number of frets",
		},
		{
			Name:    o.kind.String() + "-frets",
			Expr:    fmt.Sprintf("(%[1]s?.%[2]s ?? 0) >= 0", prefix, KeyNumFrets),
			Message: "the number of frets cannot be negative",
		},
		{
			Name:    o.kind.String() + "-root",
			Expr:    fmt.Sprintf(`isnote(%[1]s?.%[2]s ?? "C")`, prefix, KeyRootNote),
			Message: "the root note must be a note name",
		},
	}
}

func (o *Options) text(name, fallback string) string {
	value, ok := o.dict.TryGet(o.Key(name), true)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// setText treats a blank name as a request to drop the local override.
func (o *Options) setText(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return o.dict.Clear(o.Key(name), false)
	}
	return o.dict.Set(o.Key(name), strings.TrimSpace(value))
}

func (o *Options) checkCount(name string, n int32) error {
	if n < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %d", settings.ErrArgumentInvalid, name, n)
	}
	return nil
}

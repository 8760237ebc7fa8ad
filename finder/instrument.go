package finder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/music"
)

var (
	ErrUnknownInstrument = errors.New("finder: unknown instrument")
	ErrUnknownTuning     = errors.New("finder: unknown tuning")
)

// Instrument is a resolved instrument and tuning, lowest string first.
type Instrument struct {
	Key     string
	Name    string
	Strings int
	Tuning  string
	Notes   []music.Note
}

// InstrumentResolver turns the instrument and tuning options into an
// Instrument defined in the instruments dictionary. The result is cached
// until any key it was built from resolves to a different value or from a
// different level.
type InstrumentResolver struct {
	options     *Options
	instruments *settings.Dictionary
	cached      Instrument
	stamp       resolverStamp
	valid       bool
	hits        int
	misses      int
}

type resolverStamp struct {
	key        string
	tuningName string
	instrument settings.Lookup
	tuning     settings.Lookup
	name       settings.Lookup
	strings    settings.Lookup
	notes      settings.Lookup
}

// NewInstrumentResolver resolves the instrument selected by options against
// instruments.
func NewInstrumentResolver(options *Options, instruments *settings.Dictionary) *InstrumentResolver {
	return &InstrumentResolver{options: options, instruments: instruments}
}

// Resolve returns the selected instrument, from cache when nothing it
// depends on has changed.
func (r *InstrumentResolver) Resolve() (Instrument, error) {
	stamp := r.currentStamp()
	if r.valid && stamp == r.stamp {
		r.hits++
		return r.copyCached(), nil
	}
	r.misses++
	r.valid = false
	instrument, err := buildInstrument(stamp)
	if err != nil {
		return Instrument{}, err
	}
	r.cached = instrument
	r.stamp = stamp
	r.valid = true
	return r.copyCached(), nil
}

// Invalidate drops the cached instrument.
func (r *InstrumentResolver) Invalidate() {
	r.valid = false
}

// Stats reports cache hits and misses.
func (r *InstrumentResolver) Stats() (hits, misses int) {
	return r.hits, r.misses
}

func (r *InstrumentResolver) currentStamp() resolverStamp {
	instrumentKey := r.options.Key(KeyInstrument)
	tuningKey := r.options.Key(KeyTuning)
	stamp := resolverStamp{
		instrument: r.options.dict.Lookup(instrumentKey, true),
		tuning:     r.options.dict.Lookup(tuningKey, true),
	}
	stamp.key = settings.NormalizeKey(r.options.Instrument())
	stamp.tuningName = settings.NormalizeKey(r.options.Tuning())
	stamp.name = r.instruments.Lookup(settings.JoinKey(stamp.key, "name"), true)
	stamp.strings = r.instruments.Lookup(settings.JoinKey(stamp.key, "strings"), true)
	stamp.notes = r.instruments.Lookup(settings.JoinKey(stamp.key, "tunings", stamp.tuningName), true)
	return stamp
}

func (r *InstrumentResolver) copyCached() Instrument {
	out := r.cached
	out.Notes = append([]music.Note(nil), r.cached.Notes...)
	return out
}

func buildInstrument(stamp resolverStamp) (Instrument, error) {
	key, tuning := stamp.key, stamp.tuningName
	if !stamp.name.Found && !stamp.strings.Found {
		return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, key)
	}
	if !stamp.notes.Found {
		return Instrument{}, fmt.Errorf("%w: %q for %q", ErrUnknownTuning, tuning, key)
	}
	var notes []music.Note
	for _, field := range strings.Split(stamp.notes.Value, ",") {
		note, err := music.ParseNote(field)
		if err != nil {
			return Instrument{}, fmt.Errorf("finder: tuning %q for %q: %w", tuning, key, err)
		}
		notes = append(notes, note)
	}
	count := len(notes)
	if stamp.strings.Found {
		declared, err := strconv.Atoi(strings.TrimSpace(stamp.strings.Value))
		if err != nil {
			return Instrument{}, fmt.Errorf("finder: string count for %q: %w", key, err)
		}
		if declared != count {
			return Instrument{}, fmt.Errorf("%w: tuning %q has %d notes for %d strings", ErrUnknownTuning, tuning, count, declared)
		}
	}
	name := key
	if stamp.name.Found {
		name = stamp.name.Value
	}
	return Instrument{Key: key, Name: name, Strings: count, Tuning: tuning, Notes: notes}, nil
}

package config

import (
	"fmt"
	"strings"
)

// Parts selects sections of a File for loading, saving, importing and
// clearing. Any combination is legal.
type Parts uint8

const (
	PartSettings Parts = 1 << iota
	PartStyles
	PartInstruments
	PartQualities
	PartScales
	PartLibrary

	PartsNone Parts = 0
	PartsAll        = PartSettings | PartStyles | PartInstruments | PartQualities | PartScales | PartLibrary
)

// orderedParts is the document order of sections.
var orderedParts = []Parts{PartSettings, PartStyles, PartInstruments, PartQualities, PartScales, PartLibrary}

var partNames = map[Parts]string{
	PartSettings:    "settings",
	PartStyles:      "styles",
	PartInstruments: "instruments",
	PartQualities:   "qualities",
	PartScales:      "scales",
	PartLibrary:     "library",
}

// Has reports whether every part in other is selected.
func (p Parts) Has(other Parts) bool {
	return other != PartsNone && p&other == other
}

// Each returns the single-section parts selected by p in document order.
func (p Parts) Each() []Parts {
	out := make([]Parts, 0, len(orderedParts))
	for _, part := range orderedParts {
		if p.Has(part) {
			out = append(out, part)
		}
	}
	return out
}

// Name returns the section element name of a single part, or "" when p
// selects zero or several sections.
func (p Parts) Name() string {
	return partNames[p]
}

func (p Parts) String() string {
	switch p {
	case PartsNone:
		return "none"
	case PartsAll:
		return "all"
	}
	names := make([]string, 0, len(orderedParts))
	for _, part := range p.Each() {
		names = append(names, part.Name())
	}
	return strings.Join(names, "|")
}

// PartFromName resolves a section element name.
func PartFromName(name string) (Parts, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for part, partName := range partNames {
		if partName == normalized {
			return part, true
		}
	}
	return PartsNone, false
}

// ParseParts accepts section names separated by commas or pipes, plus "all"
// and "none".
func ParseParts(value string) (Parts, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == '|' || r == ' '
	})
	out := PartsNone
	for _, field := range fields {
		switch strings.ToLower(field) {
		case "all":
			out |= PartsAll
		case "none":
		default:
			part, ok := PartFromName(field)
			if !ok {
				return PartsNone, fmt.Errorf("%w: unknown section %q", ErrInvalidDocument, field)
			}
			out |= part
		}
	}
	return out, nil
}

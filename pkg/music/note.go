// Package music holds the small set of musical value types that settings
// store as text.
package music

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNote indicates text that does not name a pitch class.
var ErrInvalidNote = errors.New("music: invalid note")

// Note is one of the twelve pitch classes, C through B.
type Note uint8

const (
	C Note = iota
	DFlat
	D
	EFlat
	E
	F
	GFlat
	G
	AFlat
	A
	BFlat
	B
)

// NoteCount is the number of pitch classes.
const NoteCount = 12

var noteNames = [NoteCount]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

var naturals = map[byte]Note{'C': C, 'D': D, 'E': E, 'F': F, 'G': G, 'A': A, 'B': B}

// Notes returns every pitch class in ascending order.
func Notes() []Note {
	out := make([]Note, NoteCount)
	for i := range out {
		out[i] = Note(i)
	}
	return out
}

// String returns the canonical flat spelling.
func (n Note) String() string {
	if n >= NoteCount {
		return fmt.Sprintf("Note(%d)", uint8(n))
	}
	return noteNames[n]
}

// Valid reports whether n is one of the twelve pitch classes.
func (n Note) Valid() bool {
	return n < NoteCount
}

// Shift transposes n by semitones, wrapping around the octave.
func (n Note) Shift(semitones int) Note {
	value := (int(n) + semitones) % NoteCount
	if value < 0 {
		value += NoteCount
	}
	return Note(value)
}

// ParseNote accepts a natural letter followed by any number of sharps ('#',
// '♯') or flats ('b', '♭'), case-insensitively for the letter.
func ParseNote(text string) (Note, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return C, fmt.Errorf("%w: empty", ErrInvalidNote)
	}
	base, ok := naturals[strings.ToUpper(trimmed[:1])[0]]
	if !ok {
		return C, fmt.Errorf("%w: %q", ErrInvalidNote, text)
	}
	offset := 0
	for _, r := range trimmed[1:] {
		switch r {
		case '#', '♯':
			offset++
		case 'b', '♭':
			offset--
		default:
			return C, fmt.Errorf("%w: %q", ErrInvalidNote, text)
		}
	}
	return base.Shift(offset), nil
}

// MarshalText implements encoding.TextMarshaler.
func (n Note) MarshalText() ([]byte, error) {
	if !n.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidNote, uint8(n))
	}
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *Note) UnmarshalText(text []byte) error {
	parsed, err := ParseNote(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

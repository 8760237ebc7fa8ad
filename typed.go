package settings

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-settings/pkg/music"
)

// Enum is satisfied by named constants that render their canonical name
// through String. Enums are stored by name.
type Enum interface {
	comparable
	String() string
}

func getTyped[T any](d *Dictionary, key string, recursive bool, typeName string, parse func(string) (T, error)) (T, error) {
	var zero T
	normalized := NormalizeKey(key)
	raw, ok := d.TryGet(normalized, recursive)
	if !ok {
		return zero, opError("get", d, normalized, ErrKeyNotFound)
	}
	value, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return zero, opError("get", d, normalized, &ParseError{Key: normalized, Value: raw, Type: typeName, Err: err})
	}
	return value, nil
}

func getTypedOr[T any](d *Dictionary, key string, defaultValue T, recursive bool, parse func(string) (T, error)) T {
	raw, ok := d.TryGet(key, recursive)
	if !ok {
		return defaultValue
	}
	value, err := parse(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return value
}

// GetBool resolves key as a bool.
func (d *Dictionary) GetBool(key string, recursive bool) (bool, error) {
	return getTyped(d, key, recursive, "bool", strconv.ParseBool)
}

// GetBoolOr resolves key as a bool, returning defaultValue when the key is
// missing or unparsable.
func (d *Dictionary) GetBoolOr(key string, defaultValue, recursive bool) bool {
	return getTypedOr(d, key, defaultValue, recursive, strconv.ParseBool)
}

// SetBool stores value as "true" or "false".
func (d *Dictionary) SetBool(key string, value bool) error {
	return d.Set(key, strconv.FormatBool(value))
}

func parseInt32(text string) (int32, error) {
	value, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(value), nil
}

// GetInt32 resolves key as a 32-bit integer.
func (d *Dictionary) GetInt32(key string, recursive bool) (int32, error) {
	return getTyped(d, key, recursive, "int32", parseInt32)
}

// GetInt32Or resolves key as a 32-bit integer with a fallback.
func (d *Dictionary) GetInt32Or(key string, defaultValue int32, recursive bool) int32 {
	return getTypedOr(d, key, defaultValue, recursive, parseInt32)
}

// SetInt32 stores value in decimal.
func (d *Dictionary) SetInt32(key string, value int32) error {
	return d.Set(key, strconv.FormatInt(int64(value), 10))
}

func parseDouble(text string) (float64, error) {
	return strconv.ParseFloat(text, 64)
}

// GetDouble resolves key as a float64.
func (d *Dictionary) GetDouble(key string, recursive bool) (float64, error) {
	return getTyped(d, key, recursive, "double", parseDouble)
}

// GetDoubleOr resolves key as a float64 with a fallback.
func (d *Dictionary) GetDoubleOr(key string, defaultValue float64, recursive bool) float64 {
	return getTypedOr(d, key, defaultValue, recursive, parseDouble)
}

// SetDouble stores the shortest decimal text that parses back to value.
func (d *Dictionary) SetDouble(key string, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return d.fail("set", NormalizeKey(key), fmt.Errorf("%w: %v is not a finite number", ErrArgumentInvalid, value))
	}
	return d.Set(key, strconv.FormatFloat(value, 'g', -1, 64))
}

func parseFloat(text string) (float32, error) {
	value, err := strconv.ParseFloat(text, 32)
	if err != nil {
		return 0, err
	}
	return float32(value), nil
}

// GetFloat resolves key as a float32.
func (d *Dictionary) GetFloat(key string, recursive bool) (float32, error) {
	return getTyped(d, key, recursive, "float", parseFloat)
}

// GetFloatOr resolves key as a float32 with a fallback.
func (d *Dictionary) GetFloatOr(key string, defaultValue float32, recursive bool) float32 {
	return getTypedOr(d, key, defaultValue, recursive, parseFloat)
}

// SetFloat stores the shortest decimal text that parses back to value.
func (d *Dictionary) SetFloat(key string, value float32) error {
	v := float64(value)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return d.fail("set", NormalizeKey(key), fmt.Errorf("%w: %v is not a finite number", ErrArgumentInvalid, value))
	}
	return d.Set(key, strconv.FormatFloat(v, 'g', -1, 32))
}

// GetNote resolves key as a pitch class.
func (d *Dictionary) GetNote(key string, recursive bool) (music.Note, error) {
	return getTyped(d, key, recursive, "note", music.ParseNote)
}

// GetNoteOr resolves key as a pitch class with a fallback.
func (d *Dictionary) GetNoteOr(key string, defaultValue music.Note, recursive bool) music.Note {
	return getTypedOr(d, key, defaultValue, recursive, music.ParseNote)
}

// SetNote stores the canonical spelling of note.
func (d *Dictionary) SetNote(key string, note music.Note) error {
	if !note.Valid() {
		return d.fail("set", NormalizeKey(key), fmt.Errorf("%w: %v", ErrArgumentInvalid, note))
	}
	return d.Set(key, note.String())
}

func enumParser[E Enum](values []E) func(string) (E, error) {
	return func(text string) (E, error) {
		for _, value := range values {
			if strings.EqualFold(value.String(), text) {
				return value, nil
			}
		}
		var zero E
		return zero, fmt.Errorf("%w: %q is not one of %d names", ErrArgumentInvalid, text, len(values))
	}
}

// GetEnum resolves key as one of values, matched by name without regard to
// case.
func GetEnum[E Enum](d *Dictionary, key string, values []E, recursive bool) (E, error) {
	return getTyped(d, key, recursive, fmt.Sprintf("%T", *new(E)), enumParser(values))
}

// GetEnumOr resolves key as one of values with a fallback.
func GetEnumOr[E Enum](d *Dictionary, key string, values []E, defaultValue E, recursive bool) E {
	return getTypedOr(d, key, defaultValue, recursive, enumParser(values))
}

// SetEnum stores value by name. value must be one of values.
func SetEnum[E Enum](d *Dictionary, key string, value E, values []E) error {
	for _, candidate := range values {
		if candidate == value {
			return d.Set(key, value.String())
		}
	}
	return d.fail("set", NormalizeKey(key), fmt.Errorf("%w: %q is not a declared value", ErrArgumentInvalid, value.String()))
}

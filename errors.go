package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrReadOnly indicates a mutation was attempted on a frozen dictionary.
	ErrReadOnly = errors.New("settings: dictionary is read-only")
	// ErrKeyNotFound indicates a lookup found no value anywhere in the chain.
	ErrKeyNotFound = errors.New("settings: key not found")
	// ErrNoParent indicates a promotion was attempted on a root dictionary.
	ErrNoParent = errors.New("settings: dictionary has no parent")
	// ErrArgumentEmpty indicates a blank key or value was passed to a mutator.
	ErrArgumentEmpty = errors.New("settings: argument must not be empty")
	// ErrArgumentInvalid indicates a value that cannot be stored or parsed.
	ErrArgumentInvalid = errors.New("settings: argument is invalid")
)

// DictionaryError captures the failing operation alongside the dictionary
// level and key it was applied to.
type DictionaryError struct {
	Op    string
	Level string
	Key   string
	Err   error
}

func (e *DictionaryError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Key == "" {
		return fmt.Sprintf("settings: %s level=%s: %v", e.Op, describeLevel(e.Level), e.Err)
	}
	return fmt.Sprintf("settings: %s level=%s key=%q: %v", e.Op, describeLevel(e.Level), e.Key, e.Err)
}

func (e *DictionaryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeLevel(level string) string {
	if level == "" {
		return "<unnamed>"
	}
	return level
}

func opError(op string, d *Dictionary, key string, err error) error {
	if err == nil {
		return nil
	}
	var existing *DictionaryError
	if errors.As(err, &existing) {
		return err
	}
	level := ""
	if d != nil {
		level = d.level
	}
	return &DictionaryError{Op: op, Level: level, Key: key, Err: err}
}

// ParseError reports a stored value that could not be converted to the type
// requested by a typed accessor. A present but unparsable value is treated
// like a missing one, so ParseError matches ErrKeyNotFound.
type ParseError struct {
	Key   string
	Value string
	Type  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("settings: key %q value %q is not a valid %s: %v", e.Key, e.Value, e.Type, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is reports ErrKeyNotFound equivalence.
func (e *ParseError) Is(target error) bool {
	return target == ErrKeyNotFound
}

package config

import (
	"errors"
)

var (
	// ErrInvalidDocument indicates a persisted document that cannot be read.
	ErrInvalidDocument = errors.New("config: invalid document")
	// ErrLevelMismatch indicates a parent whose level is not the one below.
	ErrLevelMismatch = errors.New("config: level mismatch")
)

package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
)

//go:embed defaults.xml
var defaultDocument []byte

// DefaultDocument returns a reader over the bundled defaults.
func DefaultDocument() io.Reader {
	return bytes.NewReader(defaultDocument)
}

// Stack owns the three levels for the lifetime of the process. Default and
// App are frozen once loaded; User stays mutable.
type Stack struct {
	Default *File
	App     *File
	User    *File
}

// StackOption configures NewStack.
type StackOption func(*stackConfig)

type stackConfig struct {
	defaults io.Reader
	app      io.Reader
	user     io.Reader
	appDocs  []Document
	userDocs []Document
	file     []FileOption
}

// WithDefaults replaces the bundled defaults document.
func WithDefaults(r io.Reader) StackOption {
	return func(cfg *stackConfig) {
		cfg.defaults = r
	}
}

// WithAppDocument loads the packaged App level from r.
func WithAppDocument(r io.Reader) StackOption {
	return func(cfg *stackConfig) {
		cfg.app = r
	}
}

// WithUserDocument loads the User level from r.
func WithUserDocument(r io.Reader) StackOption {
	return func(cfg *stackConfig) {
		cfg.user = r
	}
}

// WithAppSnapshot applies an already decoded App document after any reader
// given to WithAppDocument. Snapshots apply in option order, so a later one
// wins for the keys both set.
func WithAppSnapshot(doc Document) StackOption {
	return func(cfg *stackConfig) {
		cfg.appDocs = append(cfg.appDocs, doc)
	}
}

// WithUserSnapshot applies an already decoded User document, with the same
// ordering as WithAppSnapshot.
func WithUserSnapshot(doc Document) StackOption {
	return func(cfg *stackConfig) {
		cfg.userDocs = append(cfg.userDocs, doc)
	}
}

// WithFileOptions forwards options to every level.
func WithFileOptions(opts ...FileOption) StackOption {
	return func(cfg *stackConfig) {
		cfg.file = append(cfg.file, opts...)
	}
}

// NewStack loads and links Default, App and User.
func NewStack(opts ...StackOption) (*Stack, error) {
	cfg := stackConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.defaults == nil {
		cfg.defaults = DefaultDocument()
	}

	def, err := NewFile(LevelDefault, nil, cfg.file...)
	if err != nil {
		return nil, err
	}
	if err := def.Load(cfg.defaults, PartsAll); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	def.Freeze()

	app, err := NewFile(LevelApp, def, cfg.file...)
	if err != nil {
		return nil, err
	}
	if cfg.app != nil {
		if err := app.Load(cfg.app, PartsAll); err != nil {
			return nil, fmt.Errorf("config: load app: %w", err)
		}
	}
	for _, doc := range cfg.appDocs {
		if err := app.Apply(doc, PartsAll); err != nil {
			return nil, fmt.Errorf("config: apply app: %w", err)
		}
	}
	app.Freeze()

	user, err := NewFile(LevelUser, app, cfg.file...)
	if err != nil {
		return nil, err
	}
	if cfg.user != nil {
		if err := user.Load(cfg.user, PartsAll); err != nil {
			return nil, fmt.Errorf("config: load user: %w", err)
		}
	}
	for _, doc := range cfg.userDocs {
		if err := user.Apply(doc, PartsAll); err != nil {
			return nil, fmt.Errorf("config: apply user: %w", err)
		}
	}
	return &Stack{Default: def, App: app, User: user}, nil
}

// File returns the File for level, or nil.
func (s *Stack) File(level Level) *File {
	switch level {
	case LevelDefault:
		return s.Default
	case LevelApp:
		return s.App
	case LevelUser:
		return s.User
	default:
		return nil
	}
}

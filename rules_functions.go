package settings

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-settings/pkg/music"
)

// Function is a helper callable from rule expressions.
type Function func(args ...any) (any, error)

// FunctionRegistry maps lower-cased names to rule helpers. Every engine also
// sees the built-in helpers:
//
//	note(name)         pitch class 0-11 of a note name, fails on bad names
//	isnote(name)       whether name parses as a note
//	interval(from, to) semitones up from one note to another, 0-11
//
// A registered function with the same name replaces the built-in.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register stores fn under name. Names are matched without regard to case
// and may be registered once.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return fmt.Errorf("%w: function name", ErrArgumentEmpty)
	}
	if fn == nil {
		return fmt.Errorf("%w: function %q is nil", ErrArgumentInvalid, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("%w: function %q already registered", ErrArgumentInvalid, name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns an independent copy of r.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &FunctionRegistry{functions: maps.Clone(r.functions)}
}

// Call runs the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	fn := r.lookup(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: function %q", ErrKeyNotFound, name)
	}
	return fn(args...)
}

// Names returns the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}

func (r *FunctionRegistry) lookup(name string) Function {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.functions[strings.ToLower(name)]
}

// withBuiltins layers r over the built-in helpers.
func (r *FunctionRegistry) withBuiltins() *FunctionRegistry {
	out := &FunctionRegistry{functions: map[string]Function{
		"note":     noteFunction,
		"isnote":   isNoteFunction,
		"interval": intervalFunction,
	}}
	if r != nil {
		r.mu.RLock()
		maps.Copy(out.functions, r.functions)
		r.mu.RUnlock()
	}
	return out
}

func noteArg(args []any, i int) (music.Note, error) {
	if i >= len(args) {
		return music.C, fmt.Errorf("%w: missing note argument %d", ErrArgumentInvalid, i+1)
	}
	return music.ParseNote(fmt.Sprint(args[i]))
}

func noteFunction(args ...any) (any, error) {
	note, err := noteArg(args, 0)
	if err != nil {
		return nil, err
	}
	return int(note), nil
}

func isNoteFunction(args ...any) (any, error) {
	_, err := noteArg(args, 0)
	return len(args) == 1 && err == nil, nil
}

func intervalFunction(args ...any) (any, error) {
	from, err := noteArg(args, 0)
	if err != nil {
		return nil, err
	}
	to, err := noteArg(args, 1)
	if err != nil {
		return nil, err
	}
	return (int(to) - int(from) + music.NoteCount) % music.NoteCount, nil
}

// WithFunctionRegistry makes the functions of registry callable from rules
// evaluated by the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *dictionaryConfig) {
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator.
// Duplicate names keep the first registration.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *dictionaryConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// EngineOption configures an Evaluator constructor.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache     ProgramCache
	functions *FunctionRegistry
}

// WithEngineCache reuses compiled programs across evaluations. Engines key
// their entries so one cache may be shared between engines.
func WithEngineCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithEngineFunctions exposes the functions of registry to expressions,
// both by name and through call(name, args...).
func WithEngineFunctions(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		cfg.functions = registry.Clone()
	}
}

func newEngineConfig(opts []EngineOption) engineConfig {
	cfg := engineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.functions = cfg.functions.withBuiltins()
	return cfg
}

func (cfg engineConfig) cached(key string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(key)
}

func (cfg engineConfig) store(key string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(key, program)
	}
}

// call dispatches call(name, args...) to the registry.
func (cfg engineConfig) call(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: call needs a function name", ErrArgumentInvalid)
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: call name must be a string, got %T", ErrArgumentInvalid, args[0])
	}
	return cfg.functions.Call(name, args[1:]...)
}

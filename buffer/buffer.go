// Package buffer implements the edit protocol shared by every settings
// editor: open a transient child of the dictionary being edited, mutate only
// the child, then Apply to promote the edits into the target or Cancel to
// drop them.
package buffer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/activity"
)

// ErrClosed indicates an operation on a buffer that has been closed.
var ErrClosed = errors.New("buffer: closed")

// Buffer is a transient edit scope over a target dictionary. Reads resolve
// through the buffer into the target and its ancestors; writes stay in the
// buffer until Apply.
//
// A Buffer is owned by one editor and is not safe for concurrent use.
type Buffer struct {
	target       *settings.Dictionary
	local        *settings.Dictionary
	cleared      map[string]struct{}
	prefixes     map[string]struct{}
	dirty        bool
	settling     bool
	applyOnClose bool
	closed       bool
	rules        []settings.Rule
	emitter      *activity.Emitter
	logger       settings.Logger
	actorID      string
}

// Option configures a Buffer.
type Option func(*bufferConfig)

type bufferConfig struct {
	rules        []settings.Rule
	emitter      *activity.Emitter
	logger       settings.Logger
	dictionary   []settings.Option
	applyOnClose bool
	actorID      string
}

// WithRules validates the resolved buffer against rules before Apply
// promotes anything.
func WithRules(rules ...settings.Rule) Option {
	return func(cfg *bufferConfig) {
		cfg.rules = append(cfg.rules, rules...)
	}
}

// WithEmitter reports applied and reset edits as activity events.
func WithEmitter(emitter *activity.Emitter) Option {
	return func(cfg *bufferConfig) {
		cfg.emitter = emitter
	}
}

// WithLogger receives the mutation events of the buffer dictionary.
func WithLogger(logger settings.Logger) Option {
	return func(cfg *bufferConfig) {
		cfg.logger = logger
	}
}

// WithDictionaryOptions configures the buffer dictionary, for example with
// the evaluator used by rules.
func WithDictionaryOptions(opts ...settings.Option) Option {
	return func(cfg *bufferConfig) {
		cfg.dictionary = append(cfg.dictionary, opts...)
	}
}

// WithApplyOnClose sets the initial close disposition.
func WithApplyOnClose(apply bool) Option {
	return func(cfg *bufferConfig) {
		cfg.applyOnClose = apply
	}
}

// WithActor stamps activity events with actorID.
func WithActor(actorID string) Option {
	return func(cfg *bufferConfig) {
		cfg.actorID = actorID
	}
}

// New opens a buffer labelled level over target.
func New(target *settings.Dictionary, level string, opts ...Option) (*Buffer, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: target", settings.ErrArgumentEmpty)
	}
	if strings.TrimSpace(level) == "" {
		return nil, fmt.Errorf("%w: level", settings.ErrArgumentEmpty)
	}
	cfg := bufferConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	b := &Buffer{
		target:       target,
		cleared:      map[string]struct{}{},
		prefixes:     map[string]struct{}{},
		applyOnClose: cfg.applyOnClose,
		rules:        cfg.rules,
		emitter:      cfg.emitter,
		logger:       cfg.logger,
		actorID:      cfg.actorID,
	}
	dictOpts := append(slices.Clone(cfg.dictionary), settings.WithLogger(tracker{buffer: b}), settings.WithIsolatedParent())
	b.local = settings.New(level, target, dictOpts...)
	if err := b.local.ValidateRules(b.rules...); err != nil {
		return nil, fmt.Errorf("buffer: rules: %w", err)
	}
	return b, nil
}

// Level returns the buffer label.
func (b *Buffer) Level() string { return b.local.Level() }

// Target returns the dictionary edits are promoted into.
func (b *Buffer) Target() *settings.Dictionary { return b.target }

// Dictionary exposes the buffer dictionary so editors can use the typed
// accessors. Mutations made through it are tracked like those made through
// the buffer. Recursive clears stay in the buffer until Apply pushes them,
// and SetParent or Reparent on it fail with settings.ErrReadOnly.
func (b *Buffer) Dictionary() *settings.Dictionary { return b.local }

// IsDirty reports whether anything has been set or cleared since the buffer
// was opened or last applied or cancelled.
func (b *Buffer) IsDirty() bool { return b.dirty }

// Closed reports whether ProcessClose has completed.
func (b *Buffer) Closed() bool { return b.closed }

// ApplyOnClose reports the close disposition.
func (b *Buffer) ApplyOnClose() bool { return b.applyOnClose }

// SetApplyOnClose records whether closing should apply (true) or cancel.
func (b *Buffer) SetApplyOnClose(apply bool) { b.applyOnClose = apply }

// ClearedKeys returns the keys explicitly cleared in this session, sorted.
func (b *Buffer) ClearedKeys() []string {
	return sortedSet(b.cleared)
}

// Get resolves key through the buffer and the target chain.
func (b *Buffer) Get(key string) (string, error) {
	return b.local.Get(key, true)
}

// TryGet resolves key without failing.
func (b *Buffer) TryGet(key string) (string, bool) {
	return b.local.TryGet(key, true)
}

// Set writes value into the buffer.
func (b *Buffer) Set(key, value string) error {
	if b.closed {
		return ErrClosed
	}
	return b.local.Set(key, value)
}

// SetClearable writes value into the buffer, treating a blank value as an
// explicit clear of key.
func (b *Buffer) SetClearable(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return b.Clear(key)
	}
	return b.Set(key, value)
}

// Clear drops the buffered value of key and records the key as cleared, so
// Apply pushes the clear into the target and below.
func (b *Buffer) Clear(key string) error {
	if b.closed {
		return ErrClosed
	}
	return b.local.Clear(key, false)
}

// ClearPrefix clears every buffered key under prefix and records the prefix
// so Apply clears it in the target and below.
func (b *Buffer) ClearPrefix(prefix string) error {
	if b.closed {
		return ErrClosed
	}
	return b.local.ClearByPrefix(prefix, false)
}

// Apply validates the buffer against its rules, pushes explicit clears into
// the target recursively, promotes every buffered key into the target and
// empties the buffer. It reports whether the target changed. On failure the
// buffer is left as it was so the caller can correct it and retry.
func (b *Buffer) Apply(ctx context.Context) (bool, error) {
	if b.closed {
		return false, ErrClosed
	}
	if len(b.rules) > 0 {
		if err := b.local.CheckRules(b.rules...); err != nil {
			return false, err
		}
	}
	promoted := slices.Collect(b.local.LocalKeys(""))
	cleared := b.ClearedKeys()
	prefixes := sortedSet(b.prefixes)
	changed := len(promoted)+len(cleared)+len(prefixes) > 0
	if changed && b.target.ReadOnly() {
		return false, fmt.Errorf("buffer: apply to %s: %w", b.target.Level(), settings.ErrReadOnly)
	}

	for _, prefix := range prefixes {
		if err := b.target.ClearByPrefix(prefix, true); err != nil {
			return false, err
		}
	}
	for _, key := range cleared {
		if err := b.target.Clear(key, true); err != nil {
			return false, err
		}
	}
	for _, key := range promoted {
		value, _ := b.local.TryGet(key, false)
		if err := b.target.Set(key, value); err != nil {
			return false, err
		}
	}
	b.discard()

	if changed {
		b.emit(ctx, activity.Event{
			Verb:     activity.VerbApplied,
			ActorID:  b.actorID,
			Level:    b.target.Level(),
			Source:   b.local.Level(),
			Promoted: promoted,
			Cleared:  append(cleared, prefixes...),
		})
	}
	return changed, nil
}

// Cancel drops every buffered edit. The target is untouched.
func (b *Buffer) Cancel() {
	if b.closed {
		return
	}
	b.discard()
}

// Reset drops the buffered edits and clears the same keys and recorded
// prefixes from the target, reverting them to whatever the target inherits.
func (b *Buffer) Reset(ctx context.Context) error {
	if b.closed {
		return ErrClosed
	}
	keys := slices.Collect(b.local.LocalKeys(""))
	keys = append(keys, b.ClearedKeys()...)
	slices.Sort(keys)
	keys = slices.Compact(keys)
	prefixes := sortedSet(b.prefixes)
	return b.reset(ctx, append(slices.Clone(keys), prefixes...), func() error {
		for _, prefix := range prefixes {
			if err := b.target.ClearByPrefix(prefix, false); err != nil {
				return err
			}
		}
		for _, key := range keys {
			if err := b.target.Clear(key, false); err != nil {
				return err
			}
		}
		return nil
	})
}

// ResetPrefix drops the buffered edits and clears every target key under
// prefix.
func (b *Buffer) ResetPrefix(ctx context.Context, prefix string) error {
	if b.closed {
		return ErrClosed
	}
	normalized := settings.NormalizeKey(prefix)
	keys := slices.Collect(b.target.LocalKeys(normalized))
	return b.reset(ctx, keys, func() error {
		return b.target.ClearByPrefix(normalized, false)
	})
}

func (b *Buffer) reset(ctx context.Context, keys []string, clearTarget func() error) error {
	if b.target.ReadOnly() {
		return fmt.Errorf("buffer: reset %s: %w", b.target.Level(), settings.ErrReadOnly)
	}
	if err := clearTarget(); err != nil {
		return err
	}
	b.discard()
	b.emit(ctx, activity.Event{
		Verb:    activity.VerbReset,
		ActorID: b.actorID,
		Level:   b.target.Level(),
		Source:  b.local.Level(),
		Cleared: keys,
	})
	return nil
}

// ProcessClose applies or cancels according to ApplyOnClose and closes the
// buffer. It reports whether the target changed. When Apply fails the buffer
// stays open.
func (b *Buffer) ProcessClose(ctx context.Context) (bool, error) {
	if b.closed {
		return false, nil
	}
	changed := false
	if b.applyOnClose {
		var err error
		changed, err = b.Apply(ctx)
		if err != nil {
			return false, err
		}
	} else {
		b.Cancel()
	}
	b.closed = true
	return changed, nil
}

func (b *Buffer) discard() {
	b.settling = true
	_ = b.local.ClearAll()
	b.settling = false
	clear(b.cleared)
	clear(b.prefixes)
	b.dirty = false
}

func (b *Buffer) emit(ctx context.Context, event activity.Event) {
	if !b.emitter.Enabled() {
		return
	}
	if err := b.emitter.Emit(ctx, event); err != nil {
		b.observe(settings.MutationEvent{Op: "notify", Level: b.local.Level(), Err: fmt.Errorf("buffer: notify %s: %w", event.Verb, err)})
	}
}

func (b *Buffer) observe(event settings.MutationEvent) {
	if b.logger != nil {
		b.logger.LogMutation(event)
	}
}

// tracker watches the buffer dictionary so edits made through typed
// accessors count as edits too.
type tracker struct {
	buffer *Buffer
}

func (t tracker) LogMutation(event settings.MutationEvent) {
	b := t.buffer
	if event.Err == nil && !b.settling {
		switch event.Op {
		case "set":
			b.dirty = true
			delete(b.cleared, event.Key)
		case "clear":
			b.dirty = true
			b.cleared[event.Key] = struct{}{}
		case "clear-prefix":
			b.dirty = true
			b.prefixes[event.Key] = struct{}{}
			for key := range b.cleared {
				if strings.HasPrefix(key, event.Key) {
					delete(b.cleared, key)
				}
			}
		case "clear-all", "flatten", "copy-from":
			b.dirty = true
		}
	}
	b.observe(event)
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}

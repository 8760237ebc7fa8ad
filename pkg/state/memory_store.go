package state

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore holds snapshots in process, keyed by Ref.Identifier. Every
// save gets a fresh snapshot ID and bumps a revision that doubles as the
// ETag. It backs tests and examples.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry[T]
	now     func() time.Time
}

type memoryEntry[T any] struct {
	value    T
	meta     Meta
	revision uint64
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	now func() time.Time
}

// WithMemoryClock stamps UpdatedAt from clock.
func WithMemoryClock(clock func() time.Time) MemoryStoreOption {
	return func(cfg *memoryStoreConfig) {
		if clock != nil {
			cfg.now = clock
		}
	}
}

func NewMemoryStore[T any](opts ...MemoryStoreOption) *MemoryStore[T] {
	cfg := memoryStoreConfig{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &MemoryStore[T]{entries: map[string]*memoryEntry[T]{}, now: cfg.now}
}

func (s *MemoryStore[T]) Load(_ context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	id, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry := s.entries[id]
	if entry == nil {
		return zero, Meta{}, false, nil
	}
	return entry.value, entry.meta.clone(), true, nil
}

// Save stores snapshot. A non-empty meta.ETag must match the stored record.
func (s *MemoryStore[T]) Save(_ context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	id, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var revision uint64
	if entry := s.entries[id]; entry != nil {
		if meta.ETag != "" && meta.ETag != entry.meta.ETag {
			return Meta{}, fmt.Errorf("%w: %s holds %q, caller sent %q", ErrETagMismatch, id, entry.meta.ETag, meta.ETag)
		}
		revision = entry.revision
	}
	revision++

	stamped := meta.clone()
	stamped.SnapshotID = uuid.NewString()
	stamped.ETag = strconv.FormatUint(revision, 10)
	stamped.UpdatedAt = s.now().UTC()
	s.entries[id] = &memoryEntry[T]{value: snapshot, meta: stamped, revision: revision}
	return stamped.clone(), nil
}

// Identifiers lists the stored identifiers in order.
func (s *MemoryStore[T]) Identifiers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.entries))
}

func (m Meta) clone() Meta {
	m.Extra = maps.Clone(m.Extra)
	return m
}

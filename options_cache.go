package settings

import "sync"

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapProgramCache is a ProgramCache backed by a map. It is safe for use by
// concurrent readers such as search workers evaluating the same rules.
type MapProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMapProgramCache returns an empty cache.
func NewMapProgramCache() *MapProgramCache {
	return &MapProgramCache{programs: map[string]any{}}
}

func (c *MapProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *MapProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}

// Len returns the number of cached programs.
func (c *MapProgramCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

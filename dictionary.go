package settings

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

// Dictionary is one level of an inheritance chain of string settings. A
// lookup that misses locally continues in the parent, so a chain such as
// Default -> App -> User -> buffer resolves every key to the closest level
// that sets it.
//
// Dictionaries are not internally synchronized. All mutation must happen on
// one goroutine; concurrent readers are safe only while nothing in the chain
// is being mutated.
type Dictionary struct {
	level    string
	readOnly bool
	parent   *Dictionary
	local    map[string]string
	cfg      dictionaryConfig
}

// New constructs an empty dictionary labelled level whose lookups fall back
// to parent. parent may be nil for the root of a chain.
func New(level string, parent *Dictionary, opts ...Option) *Dictionary {
	return &Dictionary{
		level:  level,
		parent: parent,
		local:  map[string]string{},
		cfg:    applyOptions(opts),
	}
}

// NewChild constructs an empty dictionary parented to d that shares d's
// logger and evaluator configuration.
func (d *Dictionary) NewChild(level string) *Dictionary {
	child := New(level, d)
	child.cfg = d.cfg
	child.cfg.isolated = false
	if child.cfg.functions != nil {
		child.cfg.functions = child.cfg.functions.Clone()
	}
	return child
}

// Level returns the diagnostic label of this dictionary.
func (d *Dictionary) Level() string {
	return d.level
}

// SetLevel renames the dictionary.
func (d *Dictionary) SetLevel(level string) error {
	if d.readOnly {
		return d.fail("set-level", "", ErrReadOnly)
	}
	d.level = level
	return nil
}

// Parent returns the dictionary lookups fall back to, or nil.
func (d *Dictionary) Parent() *Dictionary {
	return d.parent
}

// Reparent points lookups at parent. Parent links never own their target;
// the caller keeps every parent alive for as long as its children.
func (d *Dictionary) Reparent(parent *Dictionary) error {
	if d.readOnly {
		return d.fail("reparent", "", ErrReadOnly)
	}
	if d.cfg.isolated {
		return d.fail("reparent", "", d.isolatedError())
	}
	for cur := parent; cur != nil; cur = cur.parent {
		if cur == d {
			return d.fail("reparent", "", fmt.Errorf("%w: parent chain would contain a cycle", ErrArgumentInvalid))
		}
	}
	d.parent = parent
	d.log(MutationEvent{Op: "reparent"})
	return nil
}

// ReadOnly reports whether the dictionary has been frozen.
func (d *Dictionary) ReadOnly() bool {
	return d.readOnly
}

// MarkAsReadOnly freezes the dictionary. Freezing is irreversible.
func (d *Dictionary) MarkAsReadOnly() {
	d.readOnly = true
}

// LocalCount returns the number of keys set directly on this level.
func (d *Dictionary) LocalCount() int {
	return len(d.local)
}

// Lookup is the result of resolving one key.
type Lookup struct {
	Key   string
	Value string
	// Level is the label of the dictionary that held the value.
	Level string
	// Depth counts the parent hops taken; zero means the value is local.
	Depth int
	Found bool
}

// Lookup resolves key locally and, when recursive, through the parent chain.
func (d *Dictionary) Lookup(key string, recursive bool) Lookup {
	normalized := NormalizeKey(key)
	result := Lookup{Key: normalized}
	if normalized == "" {
		return result
	}
	depth := 0
	for cur := d; cur != nil; cur = cur.parent {
		if value, ok := cur.local[normalized]; ok {
			result.Value = value
			result.Level = cur.level
			result.Depth = depth
			result.Found = true
			return result
		}
		if !recursive {
			break
		}
		depth++
	}
	return result
}

// TryGet resolves key without failing.
func (d *Dictionary) TryGet(key string, recursive bool) (string, bool) {
	lookup := d.Lookup(key, recursive)
	return lookup.Value, lookup.Found
}

// Get resolves key, failing with ErrKeyNotFound when no level holds it.
func (d *Dictionary) Get(key string, recursive bool) (string, error) {
	lookup := d.Lookup(key, recursive)
	if !lookup.Found {
		return "", opError("get", d, NormalizeKey(key), ErrKeyNotFound)
	}
	return lookup.Value, nil
}

// HasKey reports whether Get would succeed with the same recursive flag.
func (d *Dictionary) HasKey(key string, recursive bool) bool {
	return d.Lookup(key, recursive).Found
}

// IsLocalGet reports whether key is set directly on this level.
func (d *Dictionary) IsLocalGet(key string) bool {
	_, ok := d.local[NormalizeKey(key)]
	return ok
}

// Set stores value under key on this level only.
func (d *Dictionary) Set(key, value string) error {
	if d.readOnly {
		return d.fail("set", NormalizeKey(key), ErrReadOnly)
	}
	normalized := NormalizeKey(key)
	if normalized == "" {
		return d.fail("set", "", fmt.Errorf("%w: key", ErrArgumentEmpty))
	}
	if strings.TrimSpace(value) == "" {
		return d.fail("set", normalized, fmt.Errorf("%w: value", ErrArgumentEmpty))
	}
	d.local[normalized] = value
	d.log(MutationEvent{Op: "set", Key: normalized, Value: value})
	return nil
}

// Clear removes the local entry for key. Clearing an absent key is not an
// error. When recursive, the clear is pushed into the parent unless the
// parent is read-only or isolated, which ends the walk without failing.
func (d *Dictionary) Clear(key string, recursive bool) error {
	normalized := NormalizeKey(key)
	if d.readOnly {
		return d.fail("clear", normalized, ErrReadOnly)
	}
	if normalized == "" {
		return d.fail("clear", "", fmt.Errorf("%w: key", ErrArgumentEmpty))
	}
	removed := 0
	if _, ok := d.local[normalized]; ok {
		delete(d.local, normalized)
		removed = 1
	}
	d.log(MutationEvent{Op: "clear", Key: normalized, Recursive: recursive, Count: removed})
	if recursive && d.reachesParent() {
		return d.parent.Clear(normalized, true)
	}
	return nil
}

// ClearByPrefix removes every local key starting with prefix, with the same
// recursive semantics as Clear. An empty prefix matches every key.
func (d *Dictionary) ClearByPrefix(prefix string, recursive bool) error {
	normalized := NormalizeKey(prefix)
	if d.readOnly {
		return d.fail("clear-prefix", normalized, ErrReadOnly)
	}
	matches := d.localKeysWithPrefix(normalized)
	for _, key := range matches {
		delete(d.local, key)
	}
	d.log(MutationEvent{Op: "clear-prefix", Key: normalized, Recursive: recursive, Count: len(matches)})
	if recursive && d.reachesParent() {
		return d.parent.ClearByPrefix(normalized, true)
	}
	return nil
}

// ClearAll removes every local key. The parent is never touched.
func (d *Dictionary) ClearAll() error {
	if d.readOnly {
		return d.fail("clear-all", "", ErrReadOnly)
	}
	count := len(d.local)
	clear(d.local)
	d.log(MutationEvent{Op: "clear-all", Count: count})
	return nil
}

// SetParent promotes the local value of key into the parent. The local copy
// is kept; callers that want to forget it must Clear afterwards.
func (d *Dictionary) SetParent(key string) error {
	normalized := NormalizeKey(key)
	if d.parent == nil {
		return d.fail("set-parent", normalized, ErrNoParent)
	}
	if d.cfg.isolated {
		return d.fail("set-parent", normalized, d.isolatedError())
	}
	if d.parent.readOnly {
		return d.fail("set-parent", normalized, fmt.Errorf("%w: parent %s", ErrReadOnly, describeLevel(d.parent.level)))
	}
	value, ok := d.local[normalized]
	if !ok {
		return d.fail("set-parent", normalized, fmt.Errorf("%w: key is not set locally", ErrKeyNotFound))
	}
	if err := d.parent.Set(normalized, value); err != nil {
		return err
	}
	d.log(MutationEvent{Op: "set-parent", Key: normalized, Value: value})
	return nil
}

// SetParentAll promotes every local key into the parent.
func (d *Dictionary) SetParentAll() error {
	if d.parent == nil {
		return d.fail("set-parent", "", ErrNoParent)
	}
	if d.cfg.isolated {
		return d.fail("set-parent", "", d.isolatedError())
	}
	if d.parent.readOnly {
		return d.fail("set-parent", "", fmt.Errorf("%w: parent %s", ErrReadOnly, describeLevel(d.parent.level)))
	}
	for _, key := range d.sortedLocalKeys() {
		if err := d.SetParent(key); err != nil {
			return err
		}
	}
	return nil
}

// Flatten materializes every visible key as a local value without changing
// any resolved value.
func (d *Dictionary) Flatten() error {
	if d.readOnly {
		return d.fail("flatten", "", ErrReadOnly)
	}
	keys := make([]string, 0, len(d.local))
	for key := range d.AllKeys() {
		keys = append(keys, key)
	}
	for _, key := range keys {
		if _, ok := d.local[key]; ok {
			continue
		}
		value, _ := d.TryGet(key, true)
		d.local[key] = value
	}
	d.log(MutationEvent{Op: "flatten", Count: len(keys)})
	return nil
}

// CopyFrom copies every key local to source onto this level. Values source
// only inherits are not copied.
func (d *Dictionary) CopyFrom(source *Dictionary) error {
	if d.readOnly {
		return d.fail("copy-from", "", ErrReadOnly)
	}
	if source == nil {
		return d.fail("copy-from", "", fmt.Errorf("%w: source", ErrArgumentEmpty))
	}
	for _, key := range source.sortedLocalKeys() {
		if err := d.Set(key, source.local[key]); err != nil {
			return err
		}
	}
	return nil
}

// IsLocalSet toggles whether key is overridden on this level. Turning the
// override on seeds it with the currently resolved value, or defaultValue
// when nothing resolves, so the effective value does not change. Turning it
// off clears the local entry.
func (d *Dictionary) IsLocalSet(key string, makeLocal bool, defaultValue string) error {
	if !makeLocal {
		return d.Clear(key, false)
	}
	if d.IsLocalGet(key) {
		return nil
	}
	value, ok := d.TryGet(key, true)
	if !ok {
		value = defaultValue
	}
	return d.Set(key, value)
}

// AllKeys yields every key visible through the chain exactly once, local
// keys first and then each ancestor's keys that were not already yielded.
// The sequence may be ranged over any number of times.
func (d *Dictionary) AllKeys() iter.Seq[string] {
	return func(yield func(string) bool) {
		seen := map[string]struct{}{}
		for cur := d; cur != nil; cur = cur.parent {
			for _, key := range cur.sortedLocalKeys() {
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				if !yield(key) {
					return
				}
			}
		}
	}
}

// LocalKeys yields the keys set on this level, restricted to those starting
// with filter when it is non-empty.
func (d *Dictionary) LocalKeys(filter string) iter.Seq[string] {
	normalized := NormalizeKey(filter)
	return func(yield func(string) bool) {
		for _, key := range d.localKeysWithPrefix(normalized) {
			if !yield(key) {
				return
			}
		}
	}
}

// Snapshot copies the local values, or every resolved value when recursive.
func (d *Dictionary) Snapshot(recursive bool) map[string]string {
	out := make(map[string]string, len(d.local))
	if !recursive {
		for key, value := range d.local {
			out[key] = value
		}
		return out
	}
	for key := range d.AllKeys() {
		value, _ := d.TryGet(key, true)
		out[key] = value
	}
	return out
}

func (d *Dictionary) sortedLocalKeys() []string {
	keys := make([]string, 0, len(d.local))
	for key := range d.local {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (d *Dictionary) localKeysWithPrefix(prefix string) []string {
	if prefix == "" {
		return d.sortedLocalKeys()
	}
	keys := make([]string, 0)
	for key := range d.local {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (d *Dictionary) reachesParent() bool {
	return d.parent != nil && !d.parent.readOnly && !d.cfg.isolated
}

func (d *Dictionary) isolatedError() error {
	return fmt.Errorf("%w: parent of isolated level %s", ErrReadOnly, describeLevel(d.level))
}

func (d *Dictionary) fail(op, key string, err error) error {
	wrapped := opError(op, d, key, err)
	d.log(MutationEvent{Op: op, Key: key, Err: wrapped})
	return wrapped
}

func (d *Dictionary) log(event MutationEvent) {
	if event.Level == "" {
		event.Level = d.level
	}
	d.cfg.mutationLogger().LogMutation(event)
}

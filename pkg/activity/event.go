// Package activity reports settings changes to hooks such as audit sinks.
package activity

import (
	"maps"
	"slices"
	"strings"
	"time"
)

const (
	// VerbApplied reports buffered edits promoted into a level.
	VerbApplied = "settings.applied"
	// VerbReset reports keys reverted to what a level inherits.
	VerbReset = "settings.reset"
	// VerbSaved reports a level written to storage.
	VerbSaved = "settings.saved"
)

// Event describes one change to one settings level. IDs are plain strings
// so call sites need not agree on an ID type.
type Event struct {
	Verb     string
	ActorID  string
	UserID   string
	TenantID string
	Channel  string
	// Level labels the dictionary or stored level that changed, e.g. "User".
	Level string
	// Source labels where the change came from: an edit buffer such as
	// "Options" or a store domain.
	Source     string
	Parts      string
	SnapshotID string
	Promoted   []string
	Cleared    []string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Valid reports whether the event names a verb and a level.
func (e Event) Valid() bool {
	return e.Verb != "" && e.Level != ""
}

// Keys returns the promoted and cleared keys, sorted and unique.
func (e Event) Keys() []string {
	return sortedKeys(append(slices.Clone(e.Promoted), e.Cleared...))
}

// Normalize trims identifiers, sorts and dedupes key lists and copies the
// metadata so hooks may keep the event.
func (e Event) Normalize() Event {
	out := e
	for _, field := range []*string{&out.Verb, &out.ActorID, &out.UserID, &out.TenantID, &out.Channel, &out.Level, &out.Source, &out.Parts, &out.SnapshotID} {
		*field = strings.TrimSpace(*field)
	}
	out.Promoted = sortedKeys(e.Promoted)
	out.Cleared = sortedKeys(e.Cleared)
	if len(e.Metadata) > 0 {
		out.Metadata = maps.Clone(e.Metadata)
	} else {
		out.Metadata = nil
	}
	return out
}

func sortedKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			out = append(out, key)
		}
	}
	if len(out) == 0 {
		return nil
	}
	slices.Sort(out)
	return slices.Compact(out)
}

package settings

import (
	"sort"
)

// KeyDescriptor summarises one key for listings.
type KeyDescriptor struct {
	Key   string
	Value string
	// Level is the label of the level the value resolves from.
	Level string
	Local bool
	// Shadowed counts ancestor levels whose value is hidden by this one.
	Shadowed int
}

// Describe lists the keys of d, resolved through the chain when recursive,
// sorted by key.
func (d *Dictionary) Describe(recursive bool) []KeyDescriptor {
	var keys []string
	if recursive {
		for key := range d.AllKeys() {
			keys = append(keys, key)
		}
	} else {
		keys = d.sortedLocalKeys()
	}
	sort.Strings(keys)

	descriptors := make([]KeyDescriptor, 0, len(keys))
	for _, key := range keys {
		trace := d.Trace(key)
		effective, ok := trace.Effective()
		if !ok {
			continue
		}
		shadowed := 0
		for _, level := range trace.Levels[effective.Depth+1:] {
			if level.Found {
				shadowed++
			}
		}
		descriptors = append(descriptors, KeyDescriptor{
			Key:      key,
			Value:    effective.Value,
			Level:    effective.Level,
			Local:    effective.Depth == 0,
			Shadowed: shadowed,
		})
	}
	return descriptors
}

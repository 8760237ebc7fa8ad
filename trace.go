package settings

import (
	"encoding/json"
)

// Trace captures provenance for one key across every level of a chain,
// nearest level first.
type Trace struct {
	Key    string       `json:"key"`
	Levels []Provenance `json:"levels"`
}

// Provenance details how one level contributed to a traced key.
type Provenance struct {
	Level    string `json:"level"`
	Depth    int    `json:"depth"`
	ReadOnly bool   `json:"read_only,omitempty"`
	Value    string `json:"value,omitempty"`
	Found    bool   `json:"found"`
}

// Effective returns the provenance of the nearest level holding the key.
func (t Trace) Effective() (Provenance, bool) {
	for _, level := range t.Levels {
		if level.Found {
			return level, true
		}
	}
	return Provenance{}, false
}

// Overridden reports whether more than one level holds the key.
func (t Trace) Overridden() bool {
	found := 0
	for _, level := range t.Levels {
		if level.Found {
			found++
		}
	}
	return found > 1
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// Trace walks the whole chain for key, recording every level whether or not
// it holds a value.
func (d *Dictionary) Trace(key string) Trace {
	normalized := NormalizeKey(key)
	trace := Trace{Key: normalized}
	depth := 0
	for cur := d; cur != nil; cur = cur.parent {
		value, ok := cur.local[normalized]
		trace.Levels = append(trace.Levels, Provenance{
			Level:    cur.level,
			Depth:    depth,
			ReadOnly: cur.readOnly,
			Value:    value,
			Found:    ok,
		})
		depth++
	}
	return trace
}

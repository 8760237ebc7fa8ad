// Package hydrate decodes the resolved keys under a prefix into a struct.
// Leaves arrive as the stored strings, so numeric and boolean fields are
// declared with the `json:",string"` option.
package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Source is a settings chain that can render the resolved keys under a
// prefix as nested maps, such as *settings.Dictionary.
type Source interface {
	RawTree(prefix string) map[string]any
	Level() string
}

// Context names the subtree being decoded.
type Context struct {
	Prefix string
	Level  string
}

// PreHook edits the payload in place before decoding.
type PreHook func(ctx Context, payload map[string]any) error

// PostHook adjusts or validates the decoded value.
type PostHook[T any] func(ctx Context, value *T) error

// Option configures a Decoder.
type Option[T any] func(*Decoder[T])

// Decoder turns settings subtrees into values of T.
type Decoder[T any] struct {
	defaults map[string]string
	pre      []PreHook
	post     []PostHook[T]
	strict   bool
}

// WithDefaults fills keys, relative to the prefix and dotted for nested
// fields, that the subtree does not resolve.
func WithDefaults[T any](values map[string]string) Option[T] {
	return func(d *Decoder[T]) {
		if d.defaults == nil {
			d.defaults = map[string]string{}
		}
		for key, value := range values {
			d.defaults[key] = value
		}
	}
}

// WithPreHook runs hook after defaults are filled.
func WithPreHook[T any](hook PreHook) Option[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.pre = append(d.pre, hook)
		}
	}
}

// WithPostHook runs hook on the decoded value.
func WithPostHook[T any](hook PostHook[T]) Option[T] {
	return func(d *Decoder[T]) {
		if hook != nil {
			d.post = append(d.post, hook)
		}
	}
}

// WithStrict rejects keys that no field of T accepts.
func WithStrict[T any]() Option[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// NewDecoder constructs a Decoder applying opts in order.
func NewDecoder[T any](opts ...Option[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode resolves the keys under prefix through src and decodes them.
func (d *Decoder[T]) Decode(src Source, prefix string) (T, error) {
	if src == nil {
		var zero T
		return zero, fmt.Errorf("hydrate: %q: source is nil", prefix)
	}
	return d.DecodeMap(Context{Prefix: prefix, Level: src.Level()}, src.RawTree(prefix))
}

// DecodeMap decodes payload, which is left untouched. Leaves spelling true
// or false in any case are lowercased first, since the `,string` option
// only accepts the JSON literals.
func (d *Decoder[T]) DecodeMap(ctx Context, payload map[string]any) (T, error) {
	var result T
	current := cloneTree(payload)
	for key, value := range d.defaults {
		fillMissing(current, strings.Split(key, "."), value)
	}
	lowerBooleans(current)
	for _, hook := range d.pre {
		if err := hook(ctx, current); err != nil {
			return result, fmt.Errorf("hydrate: %q at level %s: pre-hook: %w", ctx.Prefix, ctx.Level, err)
		}
	}

	data, err := json.Marshal(current)
	if err != nil {
		return result, fmt.Errorf("hydrate: %q at level %s: %w", ctx.Prefix, ctx.Level, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	if d.strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&result); err != nil {
		return result, fmt.Errorf("hydrate: %q at level %s: decode: %w", ctx.Prefix, ctx.Level, err)
	}

	for _, hook := range d.post {
		if err := hook(ctx, &result); err != nil {
			return result, fmt.Errorf("hydrate: %q at level %s: post-hook: %w", ctx.Prefix, ctx.Level, err)
		}
	}
	return result, nil
}

func cloneTree(node map[string]any) map[string]any {
	out := make(map[string]any, len(node))
	for key, value := range node {
		if child, ok := value.(map[string]any); ok {
			value = cloneTree(child)
		}
		out[key] = value
	}
	return out
}

func fillMissing(node map[string]any, path []string, value string) {
	for _, segment := range path[:len(path)-1] {
		child, ok := node[segment].(map[string]any)
		if !ok {
			if _, taken := node[segment]; taken {
				return
			}
			child = map[string]any{}
			node[segment] = child
		}
		node = child
	}
	last := path[len(path)-1]
	if _, ok := node[last]; !ok {
		node[last] = value
	}
}

func lowerBooleans(node map[string]any) {
	for key, value := range node {
		switch v := value.(type) {
		case map[string]any:
			lowerBooleans(v)
		case string:
			trimmed := strings.TrimSpace(v)
			if strings.EqualFold(trimmed, "true") || strings.EqualFold(trimmed, "false") {
				node[key] = strings.ToLower(trimmed)
			}
		}
	}
}

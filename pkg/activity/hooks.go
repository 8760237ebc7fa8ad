package activity

import (
	"context"
	"errors"
)

// Hook receives normalized events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, event Event) error

// Notify calls fn.
func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks notifies every hook in order.
type Hooks []Hook

// Notify normalizes event and forwards it to every hook, joining their
// errors. Invalid events are dropped.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	event = event.Normalize()
	if !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var errs []error
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

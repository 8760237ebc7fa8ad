package activity

import (
	"context"
	"strings"
	"time"
)

// Config holds the defaults an Emitter stamps on events.
type Config struct {
	// Channel defaults to "settings".
	Channel string
	// ActorID is used when an event names no actor.
	ActorID string
	// Clock stamps OccurredAt when an event has none. Defaults to time.Now.
	Clock func() time.Time
}

// Emitter fills event defaults and notifies hooks. A nil Emitter or one
// without hooks emits nothing.
type Emitter struct {
	hooks   Hooks
	channel string
	actorID string
	clock   func() time.Time
}

// NewEmitter returns an Emitter notifying the non-nil hooks.
func NewEmitter(cfg Config, hooks ...Hook) *Emitter {
	e := &Emitter{
		channel: strings.TrimSpace(cfg.Channel),
		actorID: strings.TrimSpace(cfg.ActorID),
		clock:   cfg.Clock,
	}
	if e.channel == "" {
		e.channel = "settings"
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	for _, hook := range hooks {
		if hook != nil {
			e.hooks = append(e.hooks, hook)
		}
	}
	return e
}

// Enabled reports whether Emit reaches any hook.
func (e *Emitter) Enabled() bool {
	return e != nil && len(e.hooks) > 0
}

// Emit notifies the hooks of event after filling the channel, actor and
// time when missing.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.actorID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.clock()
	}
	return e.hooks.Notify(ctx, event)
}

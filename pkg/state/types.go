package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/config"
	"github.com/goliatone/go-settings/pkg/activity"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

// Ref identifies one persisted level of one settings domain.
type Ref struct {
	Domain string
	Level  config.Level
	// Profile names the owner of a User level, e.g. an OS account.
	Profile string
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one snapshot for a single Ref.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator edits the User level in place. Returning an error abandons the
// save.
type Mutator func(user *config.File) error

// Identifier returns the canonical storage key of r. Domains and profiles
// are single path segments: separators, "." and ".." are rejected.
func (r Ref) Identifier() (string, error) {
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		return "", fmt.Errorf("state: domain is required")
	}
	if err := checkSegment("domain", domain); err != nil {
		return "", err
	}
	switch r.Level {
	case config.LevelDefault, config.LevelApp:
		return fmt.Sprintf("%s/%s", strings.ToLower(r.Level.String()), domain), nil
	case config.LevelUser:
		profile := strings.TrimSpace(r.Profile)
		if profile == "" {
			return "", fmt.Errorf("state: profile is required for level %s", r.Level)
		}
		if err := checkSegment("profile", profile); err != nil {
			return "", err
		}
		return fmt.Sprintf("user/%s/%s", profile, domain), nil
	default:
		return "", fmt.Errorf("state: unsupported level %q", r.Level.String())
	}
}

func checkSegment(name, value string) error {
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`+"\x00") {
		return fmt.Errorf("state: invalid %s %q", name, value)
	}
	return nil
}

// Resolver assembles a config.Stack from the App and User snapshots held in
// a Store and saves edits made to the User level.
type Resolver struct {
	Store Store[config.Document]
	// Emitter receives a settings.saved event after every successful Mutate.
	Emitter *activity.Emitter
	// Rules are checked against the edited User settings before saving.
	Rules []settings.Rule
	// StackOptions are passed to config.NewStack on every resolve, after the
	// stored snapshots, so a snapshot given here layers over the stored one
	// key by key.
	StackOptions []config.StackOption
	// Logger receives emit failures, which never fail a Mutate.
	Logger settings.Logger
}

// Resolve loads the App level of domain and the User level of profile over
// the bundled defaults. Missing snapshots leave their level empty. The
// returned Meta describes the User snapshot.
func (r Resolver) Resolve(ctx context.Context, domain, profile string) (*config.Stack, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	if strings.TrimSpace(domain) == "" {
		return nil, Meta{}, fmt.Errorf("state: domain is required")
	}
	var opts []config.StackOption
	appRef := Ref{Domain: domain, Level: config.LevelApp}
	app, _, ok, err := r.Store.Load(ctx, appRef)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %q for level %s: %w", domain, appRef.Level, err)
	}
	if ok {
		opts = append(opts, config.WithAppSnapshot(app))
	}

	var userMeta Meta
	if strings.TrimSpace(profile) != "" {
		userRef := Ref{Domain: domain, Level: config.LevelUser, Profile: profile}
		user, meta, ok, err := r.Store.Load(ctx, userRef)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("state: load %q for level %s: %w", domain, userRef.Level, err)
		}
		if ok {
			opts = append(opts, config.WithUserSnapshot(user))
			userMeta = meta
		}
	}

	stack, err := config.NewStack(append(opts, r.StackOptions...)...)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: stack: %w", err)
	}
	return stack, userMeta, nil
}

// Mutate resolves the stack for ref, applies fn to its User level, checks
// the rules and saves the User level. A non-empty meta.ETag must match the
// stored snapshot. Only the User level may be mutated.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (*config.Stack, Meta, error) {
	if r.Store == nil {
		return nil, Meta{}, fmt.Errorf("state: store is required")
	}
	if ref.Level != config.LevelUser {
		return nil, Meta{}, fmt.Errorf("state: level %s: %w", ref.Level, settings.ErrReadOnly)
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return nil, Meta{}, err
	}

	stack, loadedMeta, err := r.Resolve(ctx, ref.Domain, ref.Profile)
	if err != nil {
		return nil, Meta{}, err
	}
	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(stack.User); err != nil {
		return nil, loadedMeta, err
	}
	if len(r.Rules) > 0 {
		if err := stack.User.Settings().CheckRules(r.Rules...); err != nil {
			return nil, loadedMeta, err
		}
	}

	doc := stack.User.Document(config.PartsAll)
	savedMeta, err := r.Store.Save(ctx, ref, doc, mergeMeta(loadedMeta, meta))
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("state: save %q for level %s: %w", ref.Domain, ref.Level, err)
	}

	if r.Emitter.Enabled() {
		event := activity.Event{
			Verb:       activity.VerbSaved,
			UserID:     ref.Profile,
			Level:      ref.Level.String(),
			Source:     ref.Domain,
			Promoted:   documentKeys(doc),
			Parts:      config.PartsAll.String(),
			SnapshotID: savedMeta.SnapshotID,
			OccurredAt: savedMeta.UpdatedAt,
		}
		if err := r.Emitter.Emit(ctx, event); err != nil && r.Logger != nil {
			r.Logger.LogMutation(settings.MutationEvent{
				Op:    "notify",
				Level: ref.Level.String(),
				Err:   fmt.Errorf("state: notify %s for %q: %w", event.Verb, ref.Domain, err),
			})
		}
	}
	return stack, savedMeta, nil
}

func documentKeys(doc config.Document) []string {
	keys := make([]string, 0, doc.Len())
	for _, section := range doc.Sections {
		for _, entry := range section.Entries {
			keys = append(keys, entry.Key)
		}
	}
	return keys
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

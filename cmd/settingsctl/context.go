package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/buffer"
	"github.com/goliatone/go-settings/config"
	"github.com/goliatone/go-settings/finder"
	"github.com/goliatone/go-settings/internal/logging"
	"github.com/goliatone/go-settings/pkg/activity"
	"github.com/goliatone/go-settings/pkg/state"
)

// bufferLevel labels the edit buffer every CLI edit goes through.
const bufferLevel = "settingsctl"

type commandFlags struct {
	config   string
	storeDir string
	profile  string
	domain   string
	logLevel string
}

type commandContext struct {
	flags *commandFlags

	once      sync.Once
	cfg       cliConfig
	logger    *slog.Logger
	store     *state.FileStore
	emitter   *activity.Emitter
	appDoc    *config.Document
	configErr error
}

func newCommandContext(flags *commandFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensure() error {
	c.once.Do(func() {
		c.configErr = c.init()
	})
	return c.configErr
}

func (c *commandContext) init() error {
	cfg, _, err := loadConfig(c.flags.config)
	if err != nil {
		return err
	}
	if v := strings.TrimSpace(c.flags.storeDir); v != "" {
		cfg.StoreDir = v
	}
	if v := strings.TrimSpace(c.flags.profile); v != "" {
		cfg.Profile = v
		cfg.Actor = ""
	}
	if v := strings.TrimSpace(c.flags.domain); v != "" {
		cfg.Domain = v
	}
	if v := strings.TrimSpace(c.flags.logLevel); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.normalize(); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if err != nil {
		return err
	}
	store, err := state.NewFileStore(cfg.StoreDir)
	if err != nil {
		return err
	}
	if cfg.AppFile != "" {
		data, err := os.ReadFile(cfg.AppFile)
		if err != nil {
			return fmt.Errorf("read app file: %w", err)
		}
		doc, err := config.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("decode app file %s: %w", cfg.AppFile, err)
		}
		c.appDoc = &doc
	}

	activityLogger := logging.NewComponentLogger(logger, "activity")
	c.emitter = activity.NewEmitter(activity.Config{ActorID: cfg.Actor},
		activity.HookFunc(func(_ context.Context, event activity.Event) error {
			activityLogger.Info(event.Verb,
				slog.String("actor", event.ActorID),
				slog.String("target", event.Level),
				slog.String("source", event.Source),
				slog.Int("promoted", len(event.Promoted)),
				slog.Int("cleared", len(event.Cleared)),
			)
			return nil
		}),
	)

	c.cfg = cfg
	c.logger = logger
	c.store = store
	return nil
}

func (c *commandContext) userRef() state.Ref {
	return state.Ref{Domain: c.cfg.Domain, Level: config.LevelUser, Profile: c.cfg.Profile}
}

// resolver layers the configured app_file over the App document held in the
// store, so an operator's packaged file wins key by key.
func (c *commandContext) resolver() state.Resolver {
	stackOpts := []config.StackOption{
		config.WithFileOptions(config.WithLogger(settings.NewSlogLogger(logging.NewComponentLogger(c.logger, "config")))),
	}
	if c.appDoc != nil {
		stackOpts = append(stackOpts, config.WithAppSnapshot(*c.appDoc))
	}
	return state.Resolver{
		Store:        c.store,
		Emitter:      c.emitter,
		Rules:        finderRules(),
		StackOptions: stackOpts,
		Logger:       settings.NewSlogLogger(logging.NewComponentLogger(c.logger, "state")),
	}
}

// resolve loads the stack of the configured domain and profile.
func (c *commandContext) resolve(ctx context.Context) (*config.Stack, state.Meta, error) {
	if err := c.ensure(); err != nil {
		return nil, state.Meta{}, err
	}
	return c.resolver().Resolve(ctx, c.cfg.Domain, c.cfg.Profile)
}

// mutate applies fn to the User level and saves it.
func (c *commandContext) mutate(ctx context.Context, fn state.Mutator) (state.Meta, error) {
	if err := c.ensure(); err != nil {
		return state.Meta{}, err
	}
	_, meta, err := c.resolver().Mutate(ctx, c.userRef(), state.Meta{}, fn)
	return meta, err
}

// edit opens a buffer over one User member, runs fn and applies the buffer.
// Nothing is saved when fn or the apply fails.
func (c *commandContext) edit(ctx context.Context, part config.Parts, fn func(*buffer.Buffer) error) (state.Meta, error) {
	return c.mutate(ctx, func(user *config.File) error {
		opts := []buffer.Option{
			buffer.WithEmitter(c.emitter),
			buffer.WithActor(c.cfg.Actor),
		}
		if part == config.PartSettings {
			opts = append(opts, buffer.WithRules(finderRules()...))
		}
		b, err := buffer.New(user.Member(part), bufferLevel, opts...)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			b.Cancel()
			return err
		}
		_, err = b.Apply(ctx)
		return err
	})
}

func finderRules() []settings.Rule {
	rules := finder.NewChordOptions(nil).Rules()
	return append(rules, finder.NewScaleOptions(nil).Rules()...)
}

func parsePart(name string) (config.Parts, error) {
	part, ok := config.PartFromName(name)
	if !ok {
		return config.PartsNone, fmt.Errorf("unknown part %q", name)
	}
	return part, nil
}

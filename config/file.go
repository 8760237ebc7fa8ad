package config

import (
	"fmt"
	"io"
	"time"

	settings "github.com/goliatone/go-settings"
)

// File is one level of the configuration stack. It bundles the named
// dictionaries of that level and keeps their parents in step with the
// parent File. The library is keyed off the style chain and is never
// re-parented.
type File struct {
	level    Level
	readOnly bool
	parent   *File
	members  map[Parts]*settings.Dictionary
	clock    func() time.Time
	logger   settings.Logger
}

// FileOption configures a File.
type FileOption func(*fileConfig)

type fileConfig struct {
	clock      func() time.Time
	logger     settings.Logger
	dictionary []settings.Option
}

// WithClock overrides the time source used to date saved documents.
func WithClock(clock func() time.Time) FileOption {
	return func(cfg *fileConfig) {
		cfg.clock = clock
	}
}

// WithLogger receives load, save and member mutation events.
func WithLogger(logger settings.Logger) FileOption {
	return func(cfg *fileConfig) {
		cfg.logger = logger
		if logger != nil {
			cfg.dictionary = append(cfg.dictionary, settings.WithLogger(logger))
		}
	}
}

// WithDictionaryOptions forwards options to every member dictionary.
func WithDictionaryOptions(opts ...settings.Option) FileOption {
	return func(cfg *fileConfig) {
		cfg.dictionary = append(cfg.dictionary, opts...)
	}
}

// NewFile constructs an empty File at level whose members inherit from the
// members of parent. parent may be nil.
func NewFile(level Level, parent *File, opts ...FileOption) (*File, error) {
	if level == LevelUnknown {
		return nil, fmt.Errorf("%w: level is required", settings.ErrArgumentEmpty)
	}
	if parent != nil && parent.level != level.Parent() {
		return nil, fmt.Errorf("%w: %s cannot inherit from %s", ErrLevelMismatch, level, parent.level)
	}
	cfg := fileConfig{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	f := &File{
		level:   level,
		parent:  parent,
		members: make(map[Parts]*settings.Dictionary, len(orderedParts)),
		clock:   cfg.clock,
		logger:  cfg.logger,
	}
	for _, part := range orderedParts {
		var memberParent *settings.Dictionary
		if parent != nil && part != PartLibrary {
			memberParent = parent.members[part]
		}
		f.members[part] = settings.New(level.String(), memberParent, cfg.dictionary...)
	}
	return f, nil
}

// Level returns the level this File holds.
func (f *File) Level() Level { return f.level }

// ReadOnly reports whether Freeze has been called.
func (f *File) ReadOnly() bool { return f.readOnly }

// Parent returns the File every member inherits from, or nil.
func (f *File) Parent() *File { return f.parent }

// Settings returns the application settings dictionary.
func (f *File) Settings() *settings.Dictionary { return f.members[PartSettings] }

// Styles returns the rendering style dictionary.
func (f *File) Styles() *settings.Dictionary { return f.members[PartStyles] }

// Instruments returns the instrument and tuning definitions.
func (f *File) Instruments() *settings.Dictionary { return f.members[PartInstruments] }

// Qualities returns the chord quality definitions.
func (f *File) Qualities() *settings.Dictionary { return f.members[PartQualities] }

// Scales returns the scale definitions.
func (f *File) Scales() *settings.Dictionary { return f.members[PartScales] }

// Library returns the diagram library.
func (f *File) Library() *settings.Dictionary { return f.members[PartLibrary] }

// Member returns the dictionary for a single part, or nil when part selects
// zero or several sections.
func (f *File) Member(part Parts) *settings.Dictionary {
	return f.members[part]
}

// Freeze marks the File and every member read-only. Freezing is
// irreversible.
func (f *File) Freeze() {
	f.readOnly = true
	for _, member := range f.members {
		member.MarkAsReadOnly()
	}
}

// Reparent rewires every inheritable member to the matching member of
// parent. Either every member moves or none does.
func (f *File) Reparent(parent *File) error {
	if f.readOnly {
		return f.readOnlyError("reparent")
	}
	if parent != nil && parent.level != f.level.Parent() {
		return fmt.Errorf("%w: %s cannot inherit from %s", ErrLevelMismatch, f.level, parent.level)
	}
	for cur := parent; cur != nil; cur = cur.parent {
		if cur == f {
			return fmt.Errorf("%w: parent chain would contain a cycle", settings.ErrArgumentInvalid)
		}
	}
	for _, member := range f.members {
		if member.ReadOnly() {
			return f.readOnlyError("reparent")
		}
	}
	for _, part := range orderedParts {
		if part == PartLibrary {
			continue
		}
		var memberParent *settings.Dictionary
		if parent != nil {
			memberParent = parent.members[part]
		}
		if err := f.members[part].Reparent(memberParent); err != nil {
			return err
		}
	}
	f.parent = parent
	return nil
}

// Load reads a document and applies the sections selected by parts. Load is
// additive: local keys absent from the document are kept.
func (f *File) Load(r io.Reader, parts Parts) error {
	doc, err := Decode(r)
	if err != nil {
		return err
	}
	return f.Apply(doc, parts)
}

// Apply writes the entries of the sections selected by parts into the
// matching members.
func (f *File) Apply(doc Document, parts Parts) error {
	selected := doc.Filter(parts)
	if len(selected.Sections) == 0 {
		return nil
	}
	if f.readOnly {
		return f.readOnlyError("load")
	}
	for _, section := range selected.Sections {
		member := f.members[section.Part]
		for _, entry := range section.Entries {
			if err := member.Set(entry.Key, entry.Value); err != nil {
				return fmt.Errorf("config: load %s: %w", section.Part.Name(), err)
			}
		}
	}
	f.log(settings.MutationEvent{Op: "load", Key: parts.String(), Count: selected.Len()})
	return nil
}

// Document captures the locally set keys of the sections selected by parts.
func (f *File) Document(parts Parts) Document {
	doc := Document{Version: FormatVersion, Date: f.clock()}
	for _, part := range parts.Each() {
		section := Section{Part: part}
		member := f.members[part]
		for key := range member.LocalKeys("") {
			value, _ := member.TryGet(key, false)
			section.Entries = append(section.Entries, Entry{Key: key, Value: value})
		}
		doc.Sections = append(doc.Sections, section)
	}
	return doc
}

// Save writes the sections selected by parts. Only locally set keys are
// written, never inherited values.
func (f *File) Save(w io.Writer, parts Parts) error {
	doc := f.Document(parts)
	if err := doc.Encode(w); err != nil {
		return err
	}
	f.log(settings.MutationEvent{Op: "save", Key: parts.String(), Count: doc.Len()})
	return nil
}

// Import copies the locally set keys of other into f for the sections
// selected by parts. Like Load it is additive.
func (f *File) Import(other *File, parts Parts) error {
	if other == nil {
		return fmt.Errorf("%w: source file", settings.ErrArgumentEmpty)
	}
	if parts == PartsNone {
		return nil
	}
	if f.readOnly {
		return f.readOnlyError("import")
	}
	for _, part := range parts.Each() {
		if err := f.members[part].CopyFrom(other.members[part]); err != nil {
			return fmt.Errorf("config: import %s: %w", part.Name(), err)
		}
	}
	return nil
}

// Export returns a detached File at the same level holding a copy of the
// locally set keys of the sections selected by parts.
func (f *File) Export(parts Parts) (*File, error) {
	out, err := NewFile(f.level, nil, WithClock(f.clock), WithLogger(f.logger))
	if err != nil {
		return nil, err
	}
	if err := out.Import(f, parts); err != nil {
		return nil, err
	}
	return out, nil
}

// ClearParts removes every local key of the sections selected by parts.
func (f *File) ClearParts(parts Parts) error {
	if parts == PartsNone {
		return nil
	}
	if f.readOnly {
		return f.readOnlyError("clear")
	}
	for _, part := range parts.Each() {
		if err := f.members[part].ClearAll(); err != nil {
			return err
		}
	}
	return nil
}

func (f *File) readOnlyError(op string) error {
	return fmt.Errorf("config: %s %s level: %w", op, f.level, settings.ErrReadOnly)
}

func (f *File) log(event settings.MutationEvent) {
	if f.logger == nil {
		return
	}
	event.Level = f.level.String()
	f.logger.LogMutation(event)
}

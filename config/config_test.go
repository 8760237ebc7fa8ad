package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedClock = func() time.Time {
	return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
}

func newLevels(t *testing.T) (def, app, user *File) {
	t.Helper()
	var err error
	def, err = NewFile(LevelDefault, nil, WithClock(fixedClock))
	require.NoError(t, err)
	app, err = NewFile(LevelApp, def, WithClock(fixedClock))
	require.NoError(t, err)
	user, err = NewFile(LevelUser, app, WithClock(fixedClock))
	require.NoError(t, err)
	return def, app, user
}

func TestParseParts(t *testing.T) {
	parts, err := ParseParts("settings, Styles|library")
	require.NoError(t, err)
	assert.Equal(t, PartSettings|PartStyles|PartLibrary, parts)
	assert.Equal(t, "settings|styles|library", parts.String())

	all, err := ParseParts("all")
	require.NoError(t, err)
	assert.Equal(t, PartsAll, all)

	none, err := ParseParts("none")
	require.NoError(t, err)
	assert.Equal(t, PartsNone, none)
	assert.Empty(t, none.Each())

	_, err = ParseParts("settings,bogus")
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestLevels(t *testing.T) {
	assert.Equal(t, LevelApp, ParseLevel(" APP "))
	assert.Equal(t, LevelUnknown, ParseLevel("buffer"))
	assert.Equal(t, LevelDefault, LevelApp.Parent())
	assert.Equal(t, LevelUnknown, LevelDefault.Parent())
	assert.Equal(t, []Level{LevelDefault, LevelApp, LevelUser}, Levels())
}

func TestNewFileRejectsWrongParentLevel(t *testing.T) {
	def, err := NewFile(LevelDefault, nil)
	require.NoError(t, err)
	_, err = NewFile(LevelUser, def)
	assert.ErrorIs(t, err, ErrLevelMismatch)
	_, err = NewFile(LevelUnknown, nil)
	assert.ErrorIs(t, err, settings.ErrArgumentEmpty)
}

func TestMembersInheritThroughLevels(t *testing.T) {
	def, _, user := newLevels(t)
	require.NoError(t, def.Settings().Set("a.b", "1"))

	got, err := user.Settings().Get("a.b", true)
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	require.NoError(t, def.Library().Set("c.major.open", "x32010"))
	assert.False(t, user.Library().HasKey("c.major.open", true), "library must not inherit")
}

func TestSaveWritesOnlyLocalKeys(t *testing.T) {
	def, _, user := newLevels(t)
	require.NoError(t, def.Settings().Set("inherited", "1"))
	require.NoError(t, user.Settings().Set("ChordFinderOptions.NumFrets", "14"))
	require.NoError(t, user.Styles().Set("diagram.linecolor", "red"))
	require.NoError(t, user.Scales().Set("major.name", "Ionian"))

	var buf bytes.Buffer
	require.NoError(t, user.Save(&buf, PartSettings|PartStyles))

	out := buf.String()
	assert.Contains(t, out, `<config version="2" date="2024-03-04T05:06:07Z">`)
	assert.Contains(t, out, `<item key="chordfinderoptions.numfrets" value="14"></item>`)
	assert.Contains(t, out, `<item key="diagram.linecolor" value="red"></item>`)
	assert.NotContains(t, out, "inherited")
	assert.NotContains(t, out, "Ionian")
	assert.Less(t, strings.Index(out, "<settings>"), strings.Index(out, "<styles>"))
}

func TestLoadIsAdditive(t *testing.T) {
	_, _, user := newLevels(t)
	require.NoError(t, user.Settings().Set("kept", "yes"))
	require.NoError(t, user.Settings().Set("replaced", "old"))
	require.NoError(t, user.Styles().Set("style.skip", "yes"))

	doc := `<config version="2" date="2024-01-01T00:00:00Z">
  <settings>
    <item key="replaced" value="new"/>
    <item key="added" value="1"/>
  </settings>
  <styles>
    <item key="style.loaded" value="no"/>
  </styles>
  <unknown><item key="x" value="y"/></unknown>
</config>`
	require.NoError(t, user.Load(strings.NewReader(doc), PartSettings))

	snapshot := user.Settings().Snapshot(false)
	assert.Equal(t, map[string]string{"kept": "yes", "replaced": "new", "added": "1"}, snapshot)
	assert.False(t, user.Styles().IsLocalGet("style.loaded"), "unselected section must be ignored")
}

func TestLoadRejectsBlankItems(t *testing.T) {
	_, _, user := newLevels(t)
	doc := `<config version="2"><settings><item key="a" value="1"/><item key="" value="2"/></settings></config>`
	err := user.Load(strings.NewReader(doc), PartsAll)
	require.ErrorIs(t, err, ErrInvalidDocument)
	assert.Zero(t, user.Settings().LocalCount(), "a rejected document must not be partially applied")

	err = user.Load(strings.NewReader("<config"), PartsAll)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	_, _, user := newLevels(t)
	require.NoError(t, user.Settings().Set("a", "1"))
	require.NoError(t, user.Qualities().Set("major.name", "Major & <bright>"))
	require.NoError(t, user.Library().Set("c.major.open", "x32010"))

	var buf bytes.Buffer
	require.NoError(t, user.Save(&buf, PartsAll))

	_, _, restored := newLevels(t)
	require.NoError(t, restored.Load(&buf, PartsAll))
	for _, part := range PartsAll.Each() {
		assert.Equal(t, user.Member(part).Snapshot(false), restored.Member(part).Snapshot(false), part.Name())
	}

	doc, err := Decode(bytes.NewReader(mustSave(t, user, PartQualities)))
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, doc.Version)
	assert.True(t, fixedClock().Equal(doc.Date))
	section, ok := doc.Section(PartQualities)
	require.True(t, ok)
	assert.Equal(t, []Entry{{Key: "major.name", Value: "Major & <bright>"}}, section.Entries)
}

func TestFreezeBlocksEveryMutation(t *testing.T) {
	def, app, _ := newLevels(t)
	require.NoError(t, app.Settings().Set("a", "1"))
	app.Freeze()

	assert.True(t, app.ReadOnly())
	assert.ErrorIs(t, app.Settings().Set("b", "2"), settings.ErrReadOnly)
	assert.ErrorIs(t, app.Library().Set("b", "2"), settings.ErrReadOnly)
	assert.ErrorIs(t, app.Reparent(def), settings.ErrReadOnly)
	assert.ErrorIs(t, app.ClearParts(PartsAll), settings.ErrReadOnly)
	assert.ErrorIs(t, app.Load(strings.NewReader(`<config><settings><item key="c" value="3"/></settings></config>`), PartsAll), settings.ErrReadOnly)

	other, err := NewFile(LevelApp, nil)
	require.NoError(t, err)
	require.NoError(t, other.Settings().Set("z", "1"))
	assert.ErrorIs(t, app.Import(other, PartSettings), settings.ErrReadOnly)

	assert.NoError(t, app.Load(strings.NewReader(`<config><settings><item key="c" value="3"/></settings></config>`), PartStyles),
		"loading nothing into a frozen file is a no-op")
}

func TestReparentMovesEveryInheritableMember(t *testing.T) {
	def, app, user := newLevels(t)
	otherApp, err := NewFile(LevelApp, def)
	require.NoError(t, err)
	require.NoError(t, otherApp.Settings().Set("k", "other"))
	require.NoError(t, otherApp.Styles().Set("k", "other"))
	require.NoError(t, app.Settings().Set("k", "app"))

	require.NoError(t, user.Reparent(otherApp))
	assert.Same(t, otherApp, user.Parent())
	for _, part := range PartsAll.Each() {
		member := user.Member(part)
		if part == PartLibrary {
			assert.Nil(t, member.Parent())
			continue
		}
		assert.Same(t, otherApp.Member(part), member.Parent(), part.Name())
	}
	got, _ := user.Settings().Get("k", true)
	assert.Equal(t, "other", got)

	assert.ErrorIs(t, user.Reparent(def), ErrLevelMismatch)
	require.NoError(t, user.Reparent(nil))
	assert.Nil(t, user.Settings().Parent())
}

func TestReparentIsAllOrNothing(t *testing.T) {
	def, app, user := newLevels(t)
	user.Styles().MarkAsReadOnly()
	newApp, err := NewFile(LevelApp, def)
	require.NoError(t, err)

	assert.ErrorIs(t, user.Reparent(newApp), settings.ErrReadOnly)
	assert.Same(t, app, user.Parent())
	assert.Same(t, app.Settings(), user.Settings().Parent(), "no member may move when one cannot")
}

func TestImportAndExport(t *testing.T) {
	_, app, user := newLevels(t)
	require.NoError(t, app.Settings().Set("inherited", "1"))
	require.NoError(t, user.Settings().Set("a", "1"))
	require.NoError(t, user.Scales().Set("s", "2"))

	exported, err := user.Export(PartSettings)
	require.NoError(t, err)
	assert.Nil(t, exported.Parent())
	assert.Equal(t, map[string]string{"a": "1"}, exported.Settings().Snapshot(true))
	assert.Zero(t, exported.Scales().LocalCount())

	_, _, target := newLevels(t)
	require.NoError(t, target.Settings().Set("b", "2"))
	require.NoError(t, target.Import(user, PartSettings|PartScales))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, target.Settings().Snapshot(false))
	assert.Equal(t, "2", target.Scales().Snapshot(false)["s"])

	assert.ErrorIs(t, target.Import(nil, PartsAll), settings.ErrArgumentEmpty)
}

func TestClearParts(t *testing.T) {
	_, _, user := newLevels(t)
	require.NoError(t, user.Settings().Set("a", "1"))
	require.NoError(t, user.Styles().Set("b", "2"))
	require.NoError(t, user.ClearParts(PartSettings))
	assert.Zero(t, user.Settings().LocalCount())
	assert.Equal(t, 1, user.Styles().LocalCount())
}

func TestRecursivePrefixClearAcrossLevels(t *testing.T) {
	def, app, user := newLevels(t)
	require.NoError(t, def.Settings().Set("chordfinderoptions.numfrets", "12"))
	def.Freeze()
	require.NoError(t, app.Settings().Set("chordfinderoptions.numfrets", "14"))
	require.NoError(t, user.Settings().Set("chordfinderoptions.numfrets", "15"))
	require.NoError(t, user.Settings().Set("chordfinderoptions.maxreach", "3"))

	require.NoError(t, user.Settings().ClearByPrefix("chordfinderoptions.", true))
	assert.Zero(t, user.Settings().LocalCount())
	assert.Zero(t, app.Settings().LocalCount())
	assert.True(t, def.Settings().IsLocalGet("chordfinderoptions.numfrets"))
}

func TestFileLoggerReceivesLoadAndSave(t *testing.T) {
	var events []settings.MutationEvent
	logger := settings.LoggerFunc(func(event settings.MutationEvent) {
		events = append(events, event)
	})
	f, err := NewFile(LevelUser, nil, WithLogger(logger), WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, f.Load(strings.NewReader(`<config><settings><item key="a" value="1"/></settings></config>`), PartsAll))
	require.NoError(t, f.Save(&bytes.Buffer{}, PartSettings))

	var ops []string
	for _, event := range events {
		ops = append(ops, event.Op)
	}
	assert.Equal(t, []string{"set", "load", "save"}, ops)
	assert.Equal(t, "User", events[1].Level)
	assert.Equal(t, 1, events[1].Count)
}

func mustSave(t *testing.T, f *File, parts Parts) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, f.Save(&buf, parts))
	return buf.Bytes()
}

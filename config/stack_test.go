package config

import (
	"strings"
	"testing"

	settings "github.com/goliatone/go-settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStackLoadsBundledDefaults(t *testing.T) {
	stack, err := NewStack()
	require.NoError(t, err)

	assert.True(t, stack.Default.ReadOnly())
	assert.True(t, stack.App.ReadOnly())
	assert.False(t, stack.User.ReadOnly())
	assert.Same(t, stack.App, stack.User.Parent())
	assert.Same(t, stack.Default, stack.App.Parent())
	assert.Same(t, stack.User, stack.File(LevelUser))
	assert.Nil(t, stack.File(LevelUnknown))

	numFrets, err := stack.User.Settings().GetInt32("chordfinderoptions.numfrets", true)
	require.NoError(t, err)
	assert.EqualValues(t, 12, numFrets)
	assert.True(t, stack.Default.Instruments().HasKey("guitar.tunings.standard", false))
}

func TestStackEditScenario(t *testing.T) {
	stack, err := NewStack(
		WithDefaults(strings.NewReader(`<config version="2"><settings><item key="a.b" value="1"/></settings></config>`)),
	)
	require.NoError(t, err)

	user := stack.User.Settings()
	got, err := user.Get("a.b", true)
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	buffer := user.NewChild("Options")
	require.NoError(t, buffer.Set("a.b", "2"))
	require.NoError(t, buffer.SetParentAll())
	require.NoError(t, buffer.ClearAll())

	local, err := user.Get("a.b", false)
	require.NoError(t, err)
	assert.Equal(t, "2", local)
	assert.ErrorIs(t, stack.App.Settings().Set("a.b", "3"), settings.ErrReadOnly)
}

func TestNewStackAppAndUserDocuments(t *testing.T) {
	stack, err := NewStack(
		WithAppDocument(strings.NewReader(`<config><settings><item key="chordfinderoptions.numfrets" value="15"/></settings></config>`)),
		WithUserDocument(strings.NewReader(`<config><styles><item key="diagram.linecolor" value="red"/></styles></config>`)),
	)
	require.NoError(t, err)

	lookup := stack.User.Settings().Lookup("chordfinderoptions.numfrets", true)
	assert.Equal(t, "15", lookup.Value)
	assert.Equal(t, "App", lookup.Level)
	assert.True(t, stack.User.Styles().IsLocalGet("diagram.linecolor"))
}

func TestNewStackReportsBrokenDocuments(t *testing.T) {
	_, err := NewStack(WithAppDocument(strings.NewReader("<config><settings>")))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

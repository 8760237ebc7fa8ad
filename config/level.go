package config

import (
	"strings"
)

// Level identifies one of the three shipped configuration levels. Higher
// levels override lower ones.
type Level int

const (
	// LevelUnknown guards against misconfiguration so call sites can detect
	// missing metadata.
	LevelUnknown Level = iota
	// LevelDefault is the bundled resource, frozen after load.
	LevelDefault
	// LevelApp is the packaged application file, frozen after load.
	LevelApp
	// LevelUser is loaded from and saved to user storage.
	LevelUser
)

// Levels returns the known levels from weakest to strongest.
func Levels() []Level {
	return []Level{LevelDefault, LevelApp, LevelUser}
}

func (l Level) String() string {
	switch l {
	case LevelDefault:
		return "Default"
	case LevelApp:
		return "App"
	case LevelUser:
		return "User"
	default:
		return "Unknown"
	}
}

// ParseLevel converts a level name, in any case, into its Level. Returns
// LevelUnknown for unrecognised values.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "default":
		return LevelDefault
	case "app":
		return LevelApp
	case "user":
		return LevelUser
	default:
		return LevelUnknown
	}
}

// Parent returns the level l inherits from, or LevelUnknown for the root.
func (l Level) Parent() Level {
	switch l {
	case LevelApp:
		return LevelDefault
	case LevelUser:
		return LevelApp
	default:
		return LevelUnknown
	}
}

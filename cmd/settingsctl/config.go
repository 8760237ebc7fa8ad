package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/goliatone/go-settings/internal/logging"
)

// cliConfig is the optional TOML file read by settingsctl.
type cliConfig struct {
	StoreDir  string `toml:"store_dir"`
	Domain    string `toml:"domain"`
	Profile   string `toml:"profile"`
	AppFile   string `toml:"app_file"`
	Actor     string `toml:"actor"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

func defaultConfig() cliConfig {
	return cliConfig{
		StoreDir:  defaultStoreDir(),
		Domain:    "chordfinder",
		Profile:   defaultProfile(),
		LogLevel:  "warn",
		LogFormat: "auto",
	}
}

// loadConfig reads path over the defaults. An empty path falls back to the
// per-user config file, which may be missing.
func loadConfig(path string) (cliConfig, string, error) {
	cfg := defaultConfig()
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultConfigPath()
	}
	resolved, err := expandPath(path)
	if err != nil {
		return cliConfig{}, "", err
	}

	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		resolved = ""
	case err != nil:
		return cliConfig{}, "", fmt.Errorf("open config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cliConfig{}, "", fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return cliConfig{}, "", err
	}
	if err := cfg.validate(); err != nil {
		return cliConfig{}, "", err
	}
	return cfg, resolved, nil
}

func (c *cliConfig) normalize() error {
	c.Domain = strings.TrimSpace(c.Domain)
	c.Profile = strings.TrimSpace(c.Profile)
	c.Actor = strings.TrimSpace(c.Actor)
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	var err error
	if c.StoreDir, err = expandPath(c.StoreDir); err != nil {
		return fmt.Errorf("store_dir: %w", err)
	}
	if strings.TrimSpace(c.AppFile) != "" {
		if c.AppFile, err = expandPath(c.AppFile); err != nil {
			return fmt.Errorf("app_file: %w", err)
		}
	}
	if c.Actor == "" {
		c.Actor = c.Profile
	}
	return nil
}

func (c cliConfig) validate() error {
	if c.StoreDir == "" {
		return errors.New("store_dir must be set")
	}
	if c.Domain == "" {
		return errors.New("domain must be set")
	}
	if c.Profile == "" {
		return errors.New("profile must be set")
	}
	if strings.ContainsAny(c.Profile, `/\`) || strings.ContainsAny(c.Domain, `/\`) {
		return errors.New("profile and domain must not contain path separators")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("log format: unsupported value %q", c.LogFormat)
	}
	return nil
}

func defaultConfigPath() string {
	if base, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "settingsctl", "config.toml")
	}
	return filepath.Join("~", ".config", "settingsctl", "config.toml")
}

func defaultStoreDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "settingsctl")
	}
	return filepath.Join("~", ".local", "share", "settingsctl")
}

func defaultProfile() string {
	for _, name := range []string{"USER", "USERNAME"} {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value
		}
	}
	return "default"
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", trimmed, err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Clean(trimmed), nil
}

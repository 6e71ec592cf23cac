// Package config resolves dreamlog storage locations and user settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const appName = "dreamlog"

// Settings holds the optional user preferences read from config.yaml.
type Settings struct {
	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`
	DefaultLimit int    `yaml:"default_limit"`
	SuggestLimit int    `yaml:"suggest_limit"`
}

// DefaultSettings returns the settings used when no config file exists.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:     "warn",
		DefaultLimit: 0,
		SuggestLimit: 10,
	}
}

// GetDataDir resolves the base directory for the journal database. DREAMLOG_DIR
// wins, then the XDG data home, and finally ~/.local/share.
func GetDataDir() string {
	if explicit := os.Getenv("DREAMLOG_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appName)
}

// GetDBPath returns the path to the SQLite database file.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "dreams.db")
}

// GetLogPath returns the default CLI log file inside the data directory.
func GetLogPath() string {
	return filepath.Join(GetDataDir(), "dreamlog.log")
}

// GetLockPath returns the path of the file lock guarding store initialisation.
func GetLockPath(dbPath string) string {
	return dbPath + ".lock"
}

// GetConfigPath returns the location of config.yaml. DREAMLOG_CONFIG overrides
// the XDG config home.
func GetConfigPath() string {
	if explicit := os.Getenv("DREAMLOG_CONFIG"); explicit != "" {
		return explicit
	}

	xdg.Reload()
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// Load reads settings from path, falling back to defaults for a missing file
// and for fields left unset.
func Load(path string) (Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		path = GetConfigPath()
	}

	//nolint:gosec // G304: path comes from the user's own environment
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read config file: %w", err)
	}

	var fromFile Settings
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return settings, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fromFile.LogLevel != "" {
		settings.LogLevel = fromFile.LogLevel
	}
	if fromFile.LogFile != "" {
		settings.LogFile = fromFile.LogFile
	}
	if fromFile.DefaultLimit < 0 || fromFile.SuggestLimit < 0 {
		return settings, fmt.Errorf("invalid config file %s: limits must not be negative", path)
	}
	if fromFile.DefaultLimit > 0 {
		settings.DefaultLimit = fromFile.DefaultLimit
	}
	if fromFile.SuggestLimit > 0 {
		settings.SuggestLimit = fromFile.SuggestLimit
	}

	return settings, nil
}

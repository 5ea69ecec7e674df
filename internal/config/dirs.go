package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppName          = "outclash"
	VergeFileName    = "verge.yaml"
	ClashFileName    = "config.yaml"
	ProfilesFileName = "profiles.yaml"
	DatabaseFileName = "outclash.db"
	profilesDirName  = "profiles"
)

// Dirs describes where the application keeps its files.
type Dirs struct {
	Home string
}

// DefaultDirs resolves the per-user application home. A non-empty override
// wins over the OS default.
func DefaultDirs(override string) (Dirs, error) {
	if override != "" {
		return Dirs{Home: override}, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("failed to resolve user config directory: %w", err)
	}
	return Dirs{Home: filepath.Join(base, AppName)}, nil
}

// VergePath returns the app settings file path.
func (d Dirs) VergePath() string { return filepath.Join(d.Home, VergeFileName) }

// ClashPath returns the engine config file path.
func (d Dirs) ClashPath() string { return filepath.Join(d.Home, ClashFileName) }

// ProfilesPath returns the profile list file path.
func (d Dirs) ProfilesPath() string { return filepath.Join(d.Home, ProfilesFileName) }

// ProfilesDir returns the directory that holds downloaded profile files.
func (d Dirs) ProfilesDir() string { return filepath.Join(d.Home, profilesDirName) }

// DatabasePath returns the bbolt database path.
func (d Dirs) DatabasePath() string { return filepath.Join(d.Home, DatabaseFileName) }

// Ensure creates the home and profiles directories.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Home, d.ProfilesDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

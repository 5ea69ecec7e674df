package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const envPrefix = "OUTCLASH"

// Store owns the in-memory copies of verge.yaml and config.yaml. Readers get
// clones; writers patch and then save explicitly.
type Store struct {
	mu    sync.RWMutex
	dirs  Dirs
	verge *Verge
	clash Clash
}

// NewStore creates a store rooted at dirs with default documents.
func NewStore(dirs Dirs) *Store {
	return &Store{
		dirs:  dirs,
		verge: DefaultVerge(),
		clash: DefaultClash(),
	}
}

// Dirs returns the directory layout.
func (s *Store) Dirs() Dirs {
	return s.dirs
}

// Load reads both documents from disk, creating them with defaults when absent.
func (s *Store) Load() error {
	if err := s.dirs.Ensure(); err != nil {
		return err
	}

	verge, err := LoadVerge(s.dirs.VergePath())
	if err != nil {
		return err
	}
	clash, err := LoadClash(s.dirs.ClashPath())
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.verge = verge
	s.clash = clash
	s.mu.Unlock()

	if _, err := os.Stat(s.dirs.VergePath()); errors.Is(err, fs.ErrNotExist) {
		if err := s.SaveVerge(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(s.dirs.ClashPath()); errors.Is(err, fs.ErrNotExist) {
		if err := s.SaveClash(); err != nil {
			return err
		}
	}
	return nil
}

// Verge returns a copy of the current app settings.
func (s *Store) Verge() *Verge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verge.Clone()
}

// PatchVerge applies p to the in-memory app settings.
func (s *Store) PatchVerge(p Verge) {
	s.mu.Lock()
	s.verge.Patch(p)
	s.mu.Unlock()
}

// SaveVerge writes the app settings to disk.
func (s *Store) SaveVerge() error {
	s.mu.RLock()
	data, err := yaml.Marshal(s.verge)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", VergeFileName, err)
	}
	return writeFile(s.dirs.VergePath(), data)
}

// Clash returns a copy of the engine config.
func (s *Store) Clash() Clash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clash.Clone()
}

// PatchClash merges patch into the in-memory engine config.
func (s *Store) PatchClash(patch map[string]any) {
	s.mu.Lock()
	s.clash.Patch(patch)
	s.mu.Unlock()
}

// SaveClash writes the engine config to disk.
func (s *Store) SaveClash() error {
	s.mu.RLock()
	data, err := yaml.Marshal(map[string]any(s.clash))
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", ClashFileName, err)
	}
	return writeFile(s.dirs.ClashPath(), data)
}

// LoadVerge reads app settings from path through viper so that OUTCLASH_*
// environment variables can override individual keys. A missing file yields
// the defaults.
func LoadVerge(path string) (*Verge, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	cfg := DefaultVerge()
	var loaded Verge
	if err := v.Unmarshal(&loaded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	cfg.Patch(loaded)
	return cfg, nil
}

// LoadClash reads the engine config mapping from path. Missing keys among the
// defaults are filled in; a missing file yields the defaults.
func LoadClash(path string) (Clash, error) {
	cfg := DefaultClash()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.Patch(doc)
	return cfg, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

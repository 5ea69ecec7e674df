// Package profiles owns profiles.yaml and the downloaded profile files.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned for an unknown uid.
var ErrNotFound = errors.New("profile not found")

// Store is the profile store. All methods are safe for concurrent use.
type Store struct {
	docPath string
	dir     string
	fetcher *Fetcher
	logger  *zap.Logger

	mu  sync.RWMutex
	doc Document
}

// NewStore creates a store persisting to docPath with profile files in dir.
func NewStore(docPath, dir string, fetcher *Fetcher, logger *zap.Logger) *Store {
	if fetcher == nil {
		fetcher = NewFetcher(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{docPath: docPath, dir: dir, fetcher: fetcher, logger: logger}
}

// Dir returns the directory holding profile files.
func (s *Store) Dir() string {
	return s.dir
}

// Load reads profiles.yaml. A missing file yields an empty list.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.docPath)
	if errors.Is(err, fs.ErrNotExist) {
		s.mu.Lock()
		s.doc = Document{}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.docPath, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.docPath, err)
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

// Save writes profiles.yaml.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := yaml.Marshal(s.doc)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.docPath), 0755); err != nil {
		return fmt.Errorf("failed to create profiles directory: %w", err)
	}
	tmp := s.docPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}
	return os.Rename(tmp, s.docPath)
}

// Items returns a copy of all items.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.doc.Items...)
}

// Current returns the selected item's uid.
func (s *Store) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Current
}

// Get returns the item with uid.
func (s *Store) Get(uid string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, it := range s.doc.Items {
		if it.UID == uid {
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("%w: %s", ErrNotFound, uid)
}

// BuildItemFromURL downloads a subscription and writes it to a new profile
// file. The item is not added to the list; see AppendItem.
func (s *Store) BuildItemFromURL(ctx context.Context, rawURL, name string) (*Item, error) {
	sub, err := s.fetcher.Fetch(ctx, rawURL, "")
	if err != nil {
		return nil, err
	}

	uid := "R" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	item := &Item{
		UID:     uid,
		Type:    TypeRemote,
		Name:    name,
		File:    uid + ".yaml",
		URL:     rawURL,
		Extra:   sub.Extra,
		Updated: time.Now().Unix(),
	}
	if item.Name == "" {
		item.Name = strings.TrimSuffix(sub.Filename, filepath.Ext(sub.Filename))
	}
	if item.Name == "" {
		item.Name = "Remote File"
	}
	if sub.UpdateInterval > 0 {
		item.Option = &Option{UpdateInterval: sub.UpdateInterval}
	}

	if err := s.writeFile(item.File, sub.Body); err != nil {
		return nil, err
	}
	return item, nil
}

// AppendItem adds item and saves. The first item becomes current.
func (s *Store) AppendItem(item *Item) error {
	if item == nil || item.UID == "" {
		return fmt.Errorf("profile item must have a uid")
	}
	s.mu.Lock()
	s.doc.Items = append(s.doc.Items, *item)
	if s.doc.Current == "" {
		s.doc.Current = item.UID
	}
	s.mu.Unlock()
	return s.Save()
}

// UpdateItem re-downloads a remote item's subscription in place.
func (s *Store) UpdateItem(ctx context.Context, uid string) error {
	item, err := s.Get(uid)
	if err != nil {
		return err
	}
	if item.Type != TypeRemote || item.URL == "" {
		return fmt.Errorf("profile %s is not a remote subscription", uid)
	}

	userAgent := ""
	if item.Option != nil {
		userAgent = item.Option.UserAgent
	}
	sub, err := s.fetcher.Fetch(ctx, item.URL, userAgent)
	if err != nil {
		return err
	}
	if err := s.writeFile(item.File, sub.Body); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.doc.Items {
		if s.doc.Items[i].UID == uid {
			if sub.Extra != nil {
				s.doc.Items[i].Extra = sub.Extra
			}
			s.doc.Items[i].Updated = time.Now().Unix()
		}
	}
	s.mu.Unlock()
	return s.Save()
}

// AutoCleanup deletes files in the profiles directory that no item references.
// It returns the names removed.
func (s *Store) AutoCleanup() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles directory: %w", err)
	}

	referenced := make(map[string]struct{})
	for _, it := range s.Items() {
		if it.File != "" {
			referenced[it.File] = struct{}{}
		}
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := referenced[e.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, e.Name())
	}
	if len(removed) > 0 {
		s.logger.Info("Removed unreferenced profile files", zap.Strings("files", removed))
	}
	return removed, errors.Join(errs...)
}

func (s *Store) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create profiles directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0600); err != nil {
		return fmt.Errorf("failed to write profile %s: %w", name, err)
	}
	return nil
}

package storage

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Import outcomes.
const (
	ImportStatusOK    = "ok"
	ImportStatusError = "error"
)

// ImportRecord is one subscription import attempt triggered by a deep link.
type ImportRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Name      string    `json:"name,omitempty"`
	Status    string    `json:"status"`
	UID       string    `json:"uid,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Manager provides import-history persistence.
type Manager struct {
	mu sync.RWMutex
	db *bbolt.DB
}

// NewManager opens the database at dbPath.
func NewManager(dbPath string, logger *zap.SugaredLogger) (*Manager, error) {
	db, err := openDB(dbPath, logger)
	if err != nil {
		return nil, err
	}
	return &Manager{db: db}, nil
}

// Close closes the database.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Close()
}

// Key format: {20-digit timestamp_ns}_{ulid}, so cursor order is chronological.
func importKey(timestamp time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d_%s", timestamp.UnixNano(), id))
}

// RecordImport stores rec, filling ID and Timestamp when unset.
func (m *Manager) RecordImport(rec *ImportRecord) error {
	if rec == nil {
		return fmt.Errorf("import record cannot be nil")
	}
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal import record: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ImportsBucket))
		if err := bucket.Put(importKey(rec.Timestamp, rec.ID), data); err != nil {
			return fmt.Errorf("failed to store import record: %w", err)
		}
		return nil
	})
}

// ListImports returns up to limit records, newest first. limit <= 0 means all.
func (m *Manager) ListImports(limit int) ([]*ImportRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []*ImportRecord
	err := m.db.View(func(tx *bbolt.Tx) error {
		cursor := tx.Bucket([]byte(ImportsBucket)).Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			rec := &ImportRecord{}
			if err := json.Unmarshal(v, rec); err != nil {
				return fmt.Errorf("failed to unmarshal import record: %w", err)
			}
			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// PruneImports keeps only the newest keep records.
func (m *Manager) PruneImports(keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	err := m.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ImportsBucket))
		excess := bucket.Stats().KeyN - keep
		if excess <= 0 {
			return nil
		}
		var stale [][]byte
		cursor := bucket.Cursor()
		for k, _ := cursor.First(); k != nil && len(stale) < excess; k, _ = cursor.Next() {
			stale = append(stale, append([]byte(nil), k...))
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"
	"go.uber.org/zap"
)

// Bucket layout.
const (
	ImportsBucket = "imports"
	MetaBucket    = "meta"

	SchemaVersionKey     = "schema_version"
	CurrentSchemaVersion = uint64(1)
)

const (
	openTimeout  = 5 * time.Second
	retryTimeout = 2 * time.Second
)

// openDB opens the database at path and prepares its buckets. When another
// process still holds the lock past openTimeout (typically one that crashed),
// the file is renamed aside and a fresh database is created; import history
// is not worth blocking startup for.
func openDB(path string, logger *zap.SugaredLogger) (*bbolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o644, &bbolt.Options{Timeout: openTimeout})
	if errors.Is(err, bolterrors.ErrTimeout) {
		aside := fmt.Sprintf("%s.locked-%s", path, time.Now().Format("20060102-150405"))
		logger.Warnw("Database is locked, starting with a fresh one", "path", path, "moved_to", aside)
		if err := os.Rename(path, aside); err != nil {
			return nil, fmt.Errorf("failed to move locked database aside: %w", err)
		}
		db, err = bbolt.Open(path, 0o644, &bbolt.Options{Timeout: retryTimeout})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(prepareBuckets); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return db, nil
}

func prepareBuckets(tx *bbolt.Tx) error {
	for _, name := range []string{ImportsBucket, MetaBucket} {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", name, err)
		}
	}
	return tx.Bucket([]byte(MetaBucket)).Put([]byte(SchemaVersionKey), binary.BigEndian.AppendUint64(nil, CurrentSchemaVersion))
}

// SchemaVersion returns the stored schema version, 0 when absent.
func (m *Manager) SchemaVersion() (uint64, error) {
	var v uint64
	err := m.db.View(func(tx *bbolt.Tx) error {
		if raw := tx.Bucket([]byte(MetaBucket)).Get([]byte(SchemaVersionKey)); len(raw) == 8 {
			v = binary.BigEndian.Uint64(raw)
		}
		return nil
	})
	return v, err
}

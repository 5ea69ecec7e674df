package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(filepath.Join(t.TempDir(), "outclash.db"), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRecordAndListImports(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, status := range []string{ImportStatusOK, ImportStatusError, ImportStatusOK} {
		rec := &ImportRecord{
			Timestamp: base.Add(time.Duration(i) * time.Second),
			URL:       "https://example.com/sub",
			Status:    status,
		}
		require.NoError(t, m.RecordImport(rec))
		assert.NotEmpty(t, rec.ID)
	}

	all, err := m.ListImports(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Timestamp.After(all[1].Timestamp), "newest first")

	limited, err := m.ListImports(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordImportNil(t *testing.T) {
	m := newTestManager(t)
	assert.Error(t, m.RecordImport(nil))
}

func TestPruneImports(t *testing.T) {
	m := newTestManager(t)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.RecordImport(&ImportRecord{
			Timestamp: base.Add(time.Duration(i) * time.Millisecond),
			URL:       "https://example.com/" + string(rune('a'+i)),
			Status:    ImportStatusOK,
		}))
	}

	removed, err := m.PruneImports(2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	left, err := m.ListImports(0)
	require.NoError(t, err)
	require.Len(t, left, 2)
	assert.Equal(t, "https://example.com/e", left[0].URL)
}

func TestSchemaVersion(t *testing.T) {
	m := newTestManager(t)
	v, err := m.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

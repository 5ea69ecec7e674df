package profiles

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const sampleProfile = "proxies:\n  - name: a\n    type: ss\n"

func subscriptionServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Subscription-Userinfo", "upload=10; download=20; total=1000; expire=1700000000")
		w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''My%20Sub.yaml`)
		w.Header().Set("Profile-Update-Interval", "12")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	home := t.TempDir()
	return NewStore(filepath.Join(home, "profiles.yaml"), filepath.Join(home, "profiles"), NewFetcher(2*time.Second), zaptest.NewLogger(t))
}

func TestBuildAndAppend(t *testing.T) {
	srv := subscriptionServer(t, sampleProfile)
	s := newTestStore(t)

	item, err := s.BuildItemFromURL(context.Background(), srv.URL+"/sub", "")
	require.NoError(t, err)
	assert.Equal(t, TypeRemote, item.Type)
	assert.Equal(t, "My Sub", item.Name)
	require.NotNil(t, item.Extra)
	assert.Equal(t, int64(1000), item.Extra.Total)
	assert.Equal(t, uint64(720), item.UpdateInterval())
	assert.FileExists(t, filepath.Join(s.Dir(), item.File))

	require.NoError(t, s.AppendItem(item))
	assert.Equal(t, item.UID, s.Current())

	reloaded := NewStore(s.docPath, s.dir, nil, nil)
	require.NoError(t, reloaded.Load())
	got, err := reloaded.Get(item.UID)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/sub", got.URL)
}

func TestBuildItemKeepsExplicitName(t *testing.T) {
	srv := subscriptionServer(t, sampleProfile)
	s := newTestStore(t)

	item, err := s.BuildItemFromURL(context.Background(), srv.URL, "Mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", item.Name)
}

func TestBuildItemRejectsInvalidProfile(t *testing.T) {
	srv := subscriptionServer(t, "just: text\n")
	s := newTestStore(t)

	_, err := s.BuildItemFromURL(context.Background(), srv.URL, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxies")
}

func TestBuildItemRejectsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	s := newTestStore(t)

	_, err := s.BuildItemFromURL(context.Background(), srv.URL, "x")
	assert.Error(t, err)
}

func TestUpdateItem(t *testing.T) {
	srv := subscriptionServer(t, sampleProfile)
	s := newTestStore(t)
	item, err := s.BuildItemFromURL(context.Background(), srv.URL, "x")
	require.NoError(t, err)
	item.Updated = 0
	require.NoError(t, s.AppendItem(item))

	require.NoError(t, s.UpdateItem(context.Background(), item.UID))
	got, err := s.Get(item.UID)
	require.NoError(t, err)
	assert.NotZero(t, got.Updated)

	assert.ErrorIs(t, s.UpdateItem(context.Background(), "missing"), ErrNotFound)
}

func TestAutoCleanup(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(s.Dir(), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "keep.yaml"), []byte(sampleProfile), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "stale.yaml"), []byte(sampleProfile), 0600))
	require.NoError(t, s.AppendItem(&Item{UID: "L1", Type: TypeLocal, File: "keep.yaml"}))

	removed, err := s.AutoCleanup()
	require.NoError(t, err)
	assert.Equal(t, []string{"stale.yaml"}, removed)
	assert.FileExists(t, filepath.Join(s.Dir(), "keep.yaml"))
	assert.NoFileExists(t, filepath.Join(s.Dir(), "stale.yaml"))
}

func TestParseUserInfo(t *testing.T) {
	assert.Nil(t, ParseUserInfo(""))
	e := ParseUserInfo("upload=1; download=2.5e3; total=3; expire=; junk")
	require.NotNil(t, e)
	assert.Equal(t, int64(1), e.Upload)
	assert.Equal(t, int64(2500), e.Download)
	assert.Equal(t, int64(3), e.Total)
	assert.Zero(t, e.Expire)
}

func TestParseFilename(t *testing.T) {
	assert.Equal(t, "a.yaml", ParseFilename(`attachment; filename="a.yaml"`))
	assert.Equal(t, "é.yaml", ParseFilename(`attachment; filename*=UTF-8''%C3%A9.yaml`))
	assert.Empty(t, ParseFilename(""))
}

func TestValidateProfile(t *testing.T) {
	assert.NoError(t, ValidateProfile([]byte("proxy-providers: {}\n")))
	assert.Error(t, ValidateProfile([]byte("")))
	assert.Error(t, ValidateProfile([]byte("- a\n- b\n")))
}

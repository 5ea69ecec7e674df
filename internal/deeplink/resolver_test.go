package deeplink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/outclash/outclash-go/internal/events"
	"github.com/outclash/outclash-go/internal/profiles"
	"github.com/outclash/outclash-go/internal/storage"
)

type notice struct{ status, message string }

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *recordingNotifier) Notice(status, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{status, message})
}

func (n *recordingNotifier) all() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

type fakeStore struct {
	buildErr  error
	appendErr error
	builtURL  string
	builtName string
	appended  []*profiles.Item
}

func (s *fakeStore) BuildItemFromURL(_ context.Context, rawURL, name string) (*profiles.Item, error) {
	s.builtURL, s.builtName = rawURL, name
	if s.buildErr != nil {
		return nil, s.buildErr
	}
	return &profiles.Item{UID: "Rabc123", Type: profiles.TypeRemote, URL: rawURL, Name: name}, nil
}

func (s *fakeStore) AppendItem(item *profiles.Item) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, item)
	return nil
}

type fakeHistory struct{ records []*storage.ImportRecord }

func (h *fakeHistory) RecordImport(rec *storage.ImportRecord) error {
	h.records = append(h.records, rec)
	return nil
}

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		recognized bool
		url        string
		label      string
		err        error
	}{
		{
			name:       "encoded url and name",
			raw:        "outclash://x?url=https%3A%2F%2Fa.b%2Fc&name=N",
			recognized: true,
			url:        "https://a.b/c",
			label:      "N",
		},
		{
			name:       "double encoded url",
			raw:        "clash://install-config?url=https%253A%252F%252Fa.b%252Fsub",
			recognized: true,
			url:        "https://a.b/sub",
		},
		{
			name:       "list wrapped",
			raw:        `["koala-clash://install-config?url=https%3A%2F%2Fa.b"]`,
			recognized: true,
			url:        "https://a.b",
		},
		{
			name:       "last url wins",
			raw:        "outclash://x?url=first&url=second",
			recognized: true,
			url:        "second",
		},
		{
			name:       "unescaped percent in url",
			raw:        "outclash://install-config?url=https://a.b/c?discount=100%&name=N",
			recognized: true,
			url:        "https://a.b/c?discount=100%",
			label:      "N",
		},
		{
			name:       "semicolon in url",
			raw:        "outclash://install-config?url=https://a.b/c;v=1&name=N",
			recognized: true,
			url:        "https://a.b/c;v=1",
			label:      "N",
		},
		{
			name:       "invalid escapes kept literally",
			raw:        "outclash://x?url=https%3A%2F%2Fa.b%2Fc%3Fd%3D10%25off%ZZ&name=N",
			recognized: true,
			url:        "https://a.b/c?d=10%off%ZZ",
			label:      "N",
		},
		{
			name:       "plus in name is a space",
			raw:        "outclash://x?url=u&name=My+Profile",
			recognized: true,
			url:        "u",
			label:      "My Profile",
		},
		{
			name: "unhandled scheme",
			raw:  "https://example.com/?url=https%3A%2F%2Fa.b",
		},
		{name: "wrapped too short", raw: "[ab]", err: ErrMalformedInput},
		{name: "no scheme", raw: "not a url", err: ErrInvalidURL},
		{name: "bad scheme", raw: "://bad", err: ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, err := Parse(tt.raw)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				assert.Nil(t, act)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.recognized, act.Recognized)
			assert.Equal(t, tt.url, act.URL)
			assert.Equal(t, tt.label, act.Name)
		})
	}
}

func TestResolveImportsSubscription(t *testing.T) {
	store := &fakeStore{}
	notifier := &recordingNotifier{}
	history := &fakeHistory{}
	r := NewResolver(store, notifier, history, zaptest.NewLogger(t))

	err := r.Resolve(context.Background(), "outclash://x?url=https%3A%2F%2Fa.b%2Fc&name=N")
	require.NoError(t, err)

	assert.Equal(t, "https://a.b/c", store.builtURL)
	assert.Equal(t, "N", store.builtName)
	require.Len(t, store.appended, 1)
	assert.Equal(t, []notice{{events.StatusImportSubURLOK, "Rabc123"}}, notifier.all())

	require.Len(t, history.records, 1)
	assert.Equal(t, storage.ImportStatusOK, history.records[0].Status)
	assert.Equal(t, "Rabc123", history.records[0].UID)
}

func TestResolveMissingURL(t *testing.T) {
	store := &fakeStore{}
	notifier := &recordingNotifier{}
	r := NewResolver(store, notifier, nil, zaptest.NewLogger(t))

	err := r.Resolve(context.Background(), "clash://x")
	assert.ErrorIs(t, err, ErrMissingURLParameter)

	notices := notifier.all()
	require.Len(t, notices, 1)
	assert.Equal(t, events.StatusImportSubURLError, notices[0].status)
	assert.Empty(t, store.builtURL)
}

func TestResolveUnparsableEmitsNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	r := NewResolver(&fakeStore{}, notifier, nil, zaptest.NewLogger(t))

	assert.ErrorIs(t, r.Resolve(context.Background(), "::not-a-url"), ErrInvalidURL)
	assert.ErrorIs(t, r.Resolve(context.Background(), "[]"), ErrMalformedInput)
	assert.Empty(t, notifier.all())
}

func TestResolveIgnoresOtherSchemes(t *testing.T) {
	store := &fakeStore{}
	notifier := &recordingNotifier{}
	r := NewResolver(store, notifier, nil, zaptest.NewLogger(t))

	require.NoError(t, r.Resolve(context.Background(), "https://example.com/?url=x"))
	assert.Empty(t, notifier.all())
	assert.Empty(t, store.builtURL)
}

func TestResolveStoreFailure(t *testing.T) {
	for name, store := range map[string]*fakeStore{
		"build":  {buildErr: errors.New("download failed")},
		"append": {appendErr: errors.New("disk full")},
	} {
		t.Run(name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			history := &fakeHistory{}
			r := NewResolver(store, notifier, history, zaptest.NewLogger(t))

			err := r.Resolve(context.Background(), "outclash://x?url=https%3A%2F%2Fa.b")
			assert.ErrorIs(t, err, ErrImportFailed)

			notices := notifier.all()
			require.Len(t, notices, 1)
			assert.Equal(t, events.StatusImportSubURLError, notices[0].status)
			assert.NotEmpty(t, notices[0].message)

			require.Len(t, history.records, 1)
			assert.Equal(t, storage.ImportStatusError, history.records[0].Status)
			assert.Equal(t, "https://a.b", history.records[0].URL)
		})
	}
}

func TestDedupKey(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"outclash://x?url=https%3A%2F%2Fa.b%2Fc&name=N", "https://a.b/c"},
		{"clash://y?url=https%3A%2F%2Fa.b%2Fc", "https://a.b/c"},
		{"outclash://x?name=N", "outclash://x?name=N"},
		{"%zz", "%zz"},
		{"outclash://x?url=first&url=second", "first"},
		{"outclash://install-config?url=https://a.b/c?discount=100%&name=N", "https://a.b/c?discount=100%"},
		{"outclash://install-config?url=https://a.b/c;v=1&name=N", "https://a.b/c;v=1"},
		{"outclash://x?url=https%3A%2F%2Fa.b%2F%25off%ZZ", "https://a.b/%off%ZZ"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupKey(tt.raw))
		})
	}
}

func TestResolveAcceptsLenientQuery(t *testing.T) {
	store := &fakeStore{}
	notifier := &recordingNotifier{}
	r := NewResolver(store, notifier, nil, zaptest.NewLogger(t))

	err := r.Resolve(context.Background(), "outclash://install-config?url=https://a.b/c?discount=100%&name=N")
	require.NoError(t, err)

	assert.Equal(t, "https://a.b/c?discount=100%", store.builtURL)
	assert.Equal(t, []notice{{events.StatusImportSubURLOK, "Rabc123"}}, notifier.all())
}

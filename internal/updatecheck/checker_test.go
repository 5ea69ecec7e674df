package updatecheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubFeed struct {
	release *Release
	err     error
	calls   atomic.Int32
}

func (f *stubFeed) Latest(context.Context, bool) (*Release, error) {
	f.calls.Add(1)
	return f.release, f.err
}

func TestCheckNowReportsUpdate(t *testing.T) {
	feed := &stubFeed{release: &Release{TagName: "v1.1.0", HTMLURL: "https://example.com/v1.1.0"}}
	var announced []string
	c := New("v1.0.0", feed, func(i Info) { announced = append(announced, i.LatestVersion) }, zaptest.NewLogger(t))

	info := c.CheckNow(context.Background())

	assert.Equal(t, "v1.0.0", info.CurrentVersion)
	assert.Equal(t, "v1.1.0", info.LatestVersion)
	assert.True(t, info.UpdateAvailable)
	assert.Equal(t, "https://example.com/v1.1.0", info.ReleaseURL)
	require.NotNil(t, info.CheckedAt)
	assert.Equal(t, info, c.Info())

	c.CheckNow(context.Background())
	assert.Equal(t, []string{"v1.1.0"}, announced, "a release is announced once")
}

func TestCheckNowSameVersion(t *testing.T) {
	feed := &stubFeed{release: &Release{TagName: "v1.1.0"}}
	c := New("1.1.0", feed, func(Info) { t.Fatal("no update expected") }, zaptest.NewLogger(t))

	assert.False(t, c.CheckNow(context.Background()).UpdateAvailable)
}

func TestCheckNowKeepsLastResultOnError(t *testing.T) {
	feed := &stubFeed{release: &Release{TagName: "v2.0.0"}}
	c := New("v1.0.0", feed, nil, zaptest.NewLogger(t))
	c.CheckNow(context.Background())

	feed.err = errors.New("rate limited")
	info := c.CheckNow(context.Background())

	assert.Equal(t, "v2.0.0", info.LatestVersion)
	assert.True(t, info.UpdateAvailable)
	assert.Equal(t, "rate limited", info.CheckError)
}

func TestNewer(t *testing.T) {
	tests := []struct {
		current, latest string
		want            bool
	}{
		{"v1.0.0", "v1.1.0", true},
		{"v1.1.0", "v1.0.0", false},
		{"v1.0.0", "v1.0.0", false},
		{"1.0.0", "1.1.0", true},
		{"v0.11.1", "v0.11.3", true},
		{"v1.0.0-rc.1", "v1.0.0", true},
		{"dev", "v1.0.0", false},
		{"v1.0.0", "latest", false},
	}
	for _, tt := range tests {
		t.Run(tt.current+"_vs_"+tt.latest, func(t *testing.T) {
			assert.Equal(t, tt.want, Newer(tt.current, tt.latest))
		})
	}
}

func TestStartSkipsDevelopmentBuilds(t *testing.T) {
	feed := &stubFeed{release: &Release{TagName: "v1.0.0"}}
	c := New("development", feed, nil, zaptest.NewLogger(t))

	c.Start(context.Background())

	assert.Zero(t, feed.calls.Load())
}

func TestStartDisabledByEnvironment(t *testing.T) {
	t.Setenv(EnvDisable, "true")
	feed := &stubFeed{release: &Release{TagName: "v1.0.0"}}
	c := New("v1.0.0", feed, nil, zaptest.NewLogger(t))

	c.Start(context.Background())

	assert.Zero(t, feed.calls.Load())
}

func TestStartChecksPeriodically(t *testing.T) {
	feed := &stubFeed{release: &Release{TagName: "v1.0.0"}}
	c := New("v1.0.0", feed, nil, zaptest.NewLogger(t)).WithInterval(5 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Start(ctx)
	}()

	require.Eventually(t, func() bool { return feed.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestReleaseFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/repos/acme/app/releases/latest":
			fmt.Fprint(w, `{"tag_name":"v1.2.0","html_url":"https://example.com/v1.2.0"}`)
		case "/repos/acme/app/releases":
			fmt.Fprint(w, `[{"tag_name":"v1.4.0","draft":true},{"tag_name":"v1.3.0-rc.1","prerelease":true},{"tag_name":"v1.2.0"}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	feed := NewReleaseFeed(srv.URL, "acme/app", zaptest.NewLogger(t))

	rel, err := feed.Latest(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", rel.TagName)
	assert.Equal(t, "https://example.com/v1.2.0", rel.HTMLURL)

	rel, err = feed.Latest(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "v1.3.0-rc.1", rel.TagName)
	assert.True(t, rel.Prerelease)

	_, err = NewReleaseFeed(srv.URL, "acme/missing", nil).Latest(context.Background(), false)
	assert.Error(t, err)
}

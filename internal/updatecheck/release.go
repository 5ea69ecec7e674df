package updatecheck

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultRepo is the repository whose releases are checked.
	DefaultRepo = "outclash/outclash-go"

	// DefaultAPIBase is the GitHub REST endpoint.
	DefaultAPIBase = "https://api.github.com"

	requestTimeout = 10 * time.Second
)

// Release is the subset of a GitHub release that is used.
type Release struct {
	TagName    string `json:"tag_name"`
	HTMLURL    string `json:"html_url"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
}

var errNoRelease = errors.New("no release published")

// ReleaseFeed reads releases from the GitHub API.
type ReleaseFeed struct {
	http   *resty.Client
	repo   string
	logger *zap.Logger
}

// NewReleaseFeed creates a feed for repo. An empty base selects DefaultAPIBase.
func NewReleaseFeed(base, repo string, logger *zap.Logger) *ReleaseFeed {
	if base == "" {
		base = DefaultAPIBase
	}
	if repo == "" {
		repo = DefaultRepo
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReleaseFeed{
		http: resty.New().
			SetBaseURL(base).
			SetTimeout(requestTimeout).
			SetHeader("Accept", "application/vnd.github+json"),
		repo:   repo,
		logger: logger,
	}
}

// Latest returns the newest release. Prereleases count only when
// includePrereleases is set; drafts never do.
func (f *ReleaseFeed) Latest(ctx context.Context, includePrereleases bool) (*Release, error) {
	if !includePrereleases {
		var rel Release
		if err := f.get(ctx, fmt.Sprintf("/repos/%s/releases/latest", f.repo), &rel); err != nil {
			return nil, err
		}
		return &rel, nil
	}

	var releases []Release
	if err := f.get(ctx, fmt.Sprintf("/repos/%s/releases", f.repo), &releases); err != nil {
		return nil, err
	}
	// GitHub lists newest first.
	for i := range releases {
		if !releases[i].Draft {
			return &releases[i], nil
		}
	}
	return nil, errNoRelease
}

func (f *ReleaseFeed) get(ctx context.Context, path string, out any) error {
	resp, err := f.http.R().SetContext(ctx).SetResult(out).Get(path)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		f.logger.Debug("Release feed returned non-success status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("path", path))
		return fmt.Errorf("release feed returned status %d", resp.StatusCode())
	}
	return nil
}

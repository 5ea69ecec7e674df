// Package updatecheck periodically compares the running version with the
// newest published release.
package updatecheck

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"
)

const (
	// DefaultCheckInterval is the default interval between checks.
	DefaultCheckInterval = 6 * time.Hour

	// EnvDisable turns the checker off when set to "true".
	EnvDisable = "OUTCLASH_DISABLE_UPDATE_CHECK"
	// EnvAllowPrerelease includes prereleases when set to "true".
	EnvAllowPrerelease = "OUTCLASH_ALLOW_PRERELEASE_UPDATES"
)

// Info is the result of the last check.
type Info struct {
	CurrentVersion  string     `json:"current_version"`
	LatestVersion   string     `json:"latest_version,omitempty"`
	UpdateAvailable bool       `json:"update_available"`
	ReleaseURL      string     `json:"release_url,omitempty"`
	IsPrerelease    bool       `json:"is_prerelease,omitempty"`
	CheckedAt       *time.Time `json:"checked_at,omitempty"`
	CheckError      string     `json:"check_error,omitempty"`
}

// Feed supplies the newest release.
type Feed interface {
	Latest(ctx context.Context, includePrereleases bool) (*Release, error)
}

// Checker runs update checks in the background and caches the outcome.
type Checker struct {
	logger   *zap.Logger
	version  string
	feed     Feed
	interval time.Duration
	onUpdate func(Info)

	mu   sync.RWMutex
	info Info
	// last version reported through onUpdate
	announced string
}

// New creates a checker for version. onUpdate, if set, runs once per newly
// seen release that is newer than version.
func New(version string, feed Feed, onUpdate func(Info), logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		logger:   logger,
		version:  version,
		feed:     feed,
		interval: DefaultCheckInterval,
		onUpdate: onUpdate,
		info:     Info{CurrentVersion: version},
	}
}

// WithInterval overrides the check interval.
func (c *Checker) WithInterval(d time.Duration) *Checker {
	if d > 0 {
		c.interval = d
	}
	return c
}

// Start checks immediately and then every interval until ctx is done. It
// returns at once for development builds and when disabled by environment.
func (c *Checker) Start(ctx context.Context) {
	if os.Getenv(EnvDisable) == "true" {
		c.logger.Info("Update checker disabled by environment variable", zap.String("env", EnvDisable))
		return
	}
	if !semver.IsValid(withV(c.version)) {
		c.logger.Info("Update checker disabled for non-semver version", zap.String("version", c.version))
		return
	}
	c.logger.Info("Starting update checker", zap.String("version", c.version), zap.Duration("interval", c.interval))

	c.CheckNow(ctx)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.CheckNow(ctx)
		}
	}
}

// CheckNow performs one check and returns the updated info.
func (c *Checker) CheckNow(ctx context.Context) Info {
	release, err := c.feed.Latest(ctx, os.Getenv(EnvAllowPrerelease) == "true")
	now := time.Now()

	c.mu.Lock()
	if err != nil {
		c.logger.Debug("Update check failed", zap.Error(err))
		c.info.CheckedAt = &now
		c.info.CheckError = err.Error()
		info := c.info
		c.mu.Unlock()
		return info
	}

	c.info = Info{
		CurrentVersion:  c.version,
		LatestVersion:   release.TagName,
		UpdateAvailable: Newer(c.version, release.TagName),
		ReleaseURL:      release.HTMLURL,
		IsPrerelease:    release.Prerelease,
		CheckedAt:       &now,
	}
	info := c.info
	announce := info.UpdateAvailable && c.announced != release.TagName
	if announce {
		c.announced = release.TagName
	}
	c.mu.Unlock()

	if info.UpdateAvailable {
		c.logger.Info("Update available",
			zap.String("current", c.version),
			zap.String("latest", info.LatestVersion),
			zap.String("url", info.ReleaseURL))
	}
	if announce && c.onUpdate != nil {
		c.onUpdate(info)
	}
	return info
}

// Info returns the cached result of the last check.
func (c *Checker) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Newer reports whether latest is a higher semantic version than current.
// Either may omit the leading "v".
func Newer(current, latest string) bool {
	cur, lat := withV(current), withV(latest)
	if !semver.IsValid(cur) || !semver.IsValid(lat) {
		return false
	}
	return semver.Compare(cur, lat) < 0
}

func withV(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && v[0] != 'v' {
		return "v" + v
	}
	return v
}

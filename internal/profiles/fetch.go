package profiles

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is sent when an item has no override.
const DefaultUserAgent = "clash-verge/outclash"

// Subscription is a downloaded and validated profile.
type Subscription struct {
	Body           []byte
	Filename       string
	Extra          *Extra
	UpdateInterval uint64
}

// Fetcher downloads subscriptions.
type Fetcher struct {
	client *resty.Client
}

// NewFetcher creates a fetcher with sane timeouts and retries.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("User-Agent", DefaultUserAgent)
	return &Fetcher{client: client}
}

// Fetch downloads rawURL and validates it as an engine profile.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, userAgent string) (*Subscription, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid subscription url %q: %w", rawURL, err)
	}

	req := f.client.R().SetContext(ctx)
	if userAgent != "" {
		req.SetHeader("User-Agent", userAgent)
	}
	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch subscription: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch subscription: server returned %s", resp.Status())
	}

	body := resp.Body()
	if err := ValidateProfile(body); err != nil {
		return nil, err
	}

	sub := &Subscription{Body: body}
	sub.Extra = ParseUserInfo(resp.Header().Get("Subscription-Userinfo"))
	sub.Filename = ParseFilename(resp.Header().Get("Content-Disposition"))
	if sub.Filename == "" {
		sub.Filename = filenameFromURL(rawURL)
	}
	if v := strings.TrimSpace(resp.Header().Get("Profile-Update-Interval")); v != "" {
		// The header is in hours.
		if hours, err := strconv.ParseUint(v, 10, 64); err == nil {
			sub.UpdateInterval = hours * 60
		}
	}
	return sub, nil
}

// ValidateProfile checks that data is a YAML mapping carrying proxies or
// proxy providers.
func ValidateProfile(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("subscription is not a valid profile: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("subscription is empty")
	}
	_, hasProxies := doc["proxies"]
	_, hasProviders := doc["proxy-providers"]
	if !hasProxies && !hasProviders {
		return fmt.Errorf("subscription does not contain `proxies` or `proxy-providers`")
	}
	return nil
}

// ParseUserInfo parses "upload=1; download=2; total=3; expire=4". Unknown or
// malformed fields are skipped; an empty header yields nil.
func ParseUserInfo(header string) *Extra {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	extra := &Extra{}
	for _, part := range strings.Split(header, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "upload":
			extra.Upload = int64(n)
		case "download":
			extra.Download = int64(n)
		case "total":
			extra.Total = int64(n)
		case "expire":
			extra.Expire = int64(n)
		}
	}
	return extra
}

// ParseFilename extracts the filename from a Content-Disposition header,
// honouring the RFC 5987 filename* form.
func ParseFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["filename"])
}

func filenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return u.Hostname()
	}
	return base
}

package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// DialFunc matches http.Transport.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Endpoint is a parsed controller address.
type Endpoint struct {
	// Network is "unix", "npipe" or "tcp".
	Network string
	// Address is the socket path, the pipe path or the host:port.
	Address string
	// BaseURL is where HTTP requests are addressed.
	BaseURL string
}

var errWrongPlatform = errors.New("endpoint kind not available on this platform")

// ParseEndpoint accepts unix:///path, npipe:////./pipe/name (or
// npipe://./pipe/name) and http(s)://host:port.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}

	switch u.Scheme {
	case "unix":
		if runtime.GOOS == "windows" {
			return Endpoint{}, fmt.Errorf("unix socket %s: %w", path, errWrongPlatform)
		}
		return Endpoint{Network: "unix", Address: path, BaseURL: "http://localhost"}, nil
	case "npipe":
		if runtime.GOOS != "windows" {
			return Endpoint{}, fmt.Errorf("named pipe %s: %w", path, errWrongPlatform)
		}
		if u.Host != "" {
			path = "//" + u.Host + path
		}
		return Endpoint{Network: "npipe", Address: path, BaseURL: "http://localhost"}, nil
	case "http", "https":
		return Endpoint{Network: "tcp", Address: u.Host, BaseURL: strings.TrimRight(raw, "/")}, nil
	}
	return Endpoint{}, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
}

// Dialer returns the transport dial function, or nil when the default TCP
// dialer applies.
func (e Endpoint) Dialer() DialFunc {
	switch e.Network {
	case "unix":
		return func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", e.Address)
		}
	case "npipe":
		return func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialPipe(ctx, e.Address)
		}
	}
	return nil
}

// DefaultEndpoint returns the controller endpoint for an app home directory:
// a socket inside it on unix, a per-user named pipe on Windows.
func DefaultEndpoint(homeDir, username string) string {
	if runtime.GOOS == "windows" {
		if username == "" {
			username = "default"
		}
		return "npipe:////./pipe/outclash-mihomo-" + username
	}
	return "unix://" + filepath.Join(homeDir, "outclash-mihomo.sock")
}

package config

import (
	"fmt"
	"strconv"
)

// Engine config defaults.
const (
	DefaultMixedPort          uint16 = 7897
	DefaultMode                      = "rule"
	DefaultExternalController        = "127.0.0.1:9097"
)

// Clash is the proxy engine's configuration document (config.yaml). Only a
// handful of keys are interpreted here; the rest are carried through untouched.
type Clash map[string]any

// DefaultClash returns the engine config used when none exists on disk.
func DefaultClash() Clash {
	return Clash{
		"mixed-port":          int(DefaultMixedPort),
		"mode":                DefaultMode,
		"log-level":           "info",
		"allow-lan":           false,
		"external-controller": DefaultExternalController,
	}
}

// Patch merges the top-level keys of patch into c.
func (c Clash) Patch(patch map[string]any) {
	for k, v := range patch {
		c[k] = v
	}
}

// Clone returns a shallow copy of the top-level mapping.
func (c Clash) Clone() Clash {
	out := make(Clash, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// MixedPort returns the configured mixed port or the default when it is
// missing or unparsable.
func (c Clash) MixedPort() uint16 {
	port, err := toPort(c["mixed-port"])
	if err != nil || port == 0 {
		return DefaultMixedPort
	}
	return port
}

// Mode returns the engine routing mode.
func (c Clash) Mode() string {
	if s, ok := c["mode"].(string); ok && s != "" {
		return s
	}
	return DefaultMode
}

// ExternalController returns the engine's controller address.
func (c Clash) ExternalController() string {
	if s, ok := c["external-controller"].(string); ok && s != "" {
		return s
	}
	return DefaultExternalController
}

func toPort(v any) (uint16, error) {
	switch n := v.(type) {
	case int:
		return checkPort(int64(n))
	case int64:
		return checkPort(n)
	case uint16:
		return n, nil
	case uint64:
		return checkPort(int64(n))
	case float64:
		return checkPort(int64(n))
	case string:
		parsed, err := strconv.ParseInt(n, 10, 32)
		if err != nil {
			return 0, err
		}
		return checkPort(parsed)
	case nil:
		return 0, fmt.Errorf("port not set")
	default:
		return 0, fmt.Errorf("unsupported port type %T", v)
	}
}

func checkPort(n int64) (uint16, error) {
	if n < 0 || n > 65535 {
		return 0, fmt.Errorf("port %d out of range", n)
	}
	return uint16(n), nil
}

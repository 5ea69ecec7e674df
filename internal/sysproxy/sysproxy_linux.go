//go:build linux

package sysproxy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// DefaultBypass is the bypass list used when none is configured.
const DefaultBypass = "localhost,127.0.0.1/8,::1"

// gsettingsApplier drives the GNOME proxy schema.
type gsettingsApplier struct{}

func newPlatformApplier() Applier { return gsettingsApplier{} }

func (gsettingsApplier) Apply(ctx context.Context, s Settings) error {
	port := strconv.Itoa(int(s.Port))
	cmds := [][]string{
		{"set", "org.gnome.system.proxy", "mode", "manual"},
		{"set", "org.gnome.system.proxy", "ignore-hosts", gvariantList(s.BypassList())},
	}
	for _, schema := range []string{"http", "https", "socks"} {
		cmds = append(cmds,
			[]string{"set", "org.gnome.system.proxy." + schema, "host", s.Host},
			[]string{"set", "org.gnome.system.proxy." + schema, "port", port},
		)
	}
	for _, args := range cmds {
		if _, err := run(ctx, "gsettings", args...); err != nil {
			return err
		}
	}
	return nil
}

func (gsettingsApplier) Reset(ctx context.Context) error {
	_, err := run(ctx, "gsettings", "set", "org.gnome.system.proxy", "mode", "none")
	return err
}

func (gsettingsApplier) Current(ctx context.Context) (Settings, error) {
	mode, err := run(ctx, "gsettings", "get", "org.gnome.system.proxy", "mode")
	if err != nil {
		return Settings{}, err
	}
	if strings.Trim(mode, "'") != "manual" {
		return Settings{}, nil
	}
	host, err := run(ctx, "gsettings", "get", "org.gnome.system.proxy.http", "host")
	if err != nil {
		return Settings{}, err
	}
	portText, err := run(ctx, "gsettings", "get", "org.gnome.system.proxy.http", "port")
	if err != nil {
		return Settings{}, err
	}
	port, err := strconv.ParseUint(strings.TrimSpace(portText), 10, 16)
	if err != nil {
		return Settings{}, fmt.Errorf("unexpected proxy port %q: %w", portText, err)
	}
	return Settings{Enable: true, Host: strings.Trim(host, "'"), Port: uint16(port)}, nil
}

func gvariantList(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "'" + strings.ReplaceAll(it, "'", "") + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

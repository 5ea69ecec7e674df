//go:build windows

package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// DefaultBypass is the bypass list used when none is configured.
const DefaultBypass = "localhost;127.*;192.168.*;10.*;172.16.*;172.17.*;172.18.*;172.19.*;172.20.*;172.21.*;172.22.*;172.23.*;172.24.*;172.25.*;172.26.*;172.27.*;172.28.*;172.29.*;172.30.*;172.31.*;<local>"

const internetSettings = `Software\Microsoft\Windows\CurrentVersion\Internet Settings`

// registryApplier edits the per-user WinINet proxy settings.
type registryApplier struct{}

func newPlatformApplier() Applier { return registryApplier{} }

func (registryApplier) Apply(_ context.Context, s Settings) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, internetSettings, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open internet settings: %w", err)
	}
	defer k.Close()

	if err := k.SetStringValue("ProxyServer", s.Address()); err != nil {
		return err
	}
	if err := k.SetStringValue("ProxyOverride", strings.Join(s.BypassList(), ";")); err != nil {
		return err
	}
	return k.SetDWordValue("ProxyEnable", 1)
}

func (registryApplier) Reset(_ context.Context) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, internetSettings, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open internet settings: %w", err)
	}
	defer k.Close()
	return k.SetDWordValue("ProxyEnable", 0)
}

func (registryApplier) Current(_ context.Context) (Settings, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, internetSettings, registry.QUERY_VALUE)
	if err != nil {
		return Settings{}, fmt.Errorf("open internet settings: %w", err)
	}
	defer k.Close()

	enabled, _, err := k.GetIntegerValue("ProxyEnable")
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		return Settings{}, err
	}
	if enabled == 0 {
		return Settings{}, nil
	}
	server, _, err := k.GetStringValue("ProxyServer")
	if err != nil {
		return Settings{}, err
	}
	host, portText, ok := strings.Cut(server, ":")
	if !ok {
		return Settings{Enable: true, Host: server}, nil
	}
	port, err := strconv.ParseUint(portText, 10, 16)
	if err != nil {
		return Settings{}, fmt.Errorf("unexpected proxy server %q: %w", server, err)
	}
	return Settings{Enable: true, Host: host, Port: uint16(port)}, nil
}

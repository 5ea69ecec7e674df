//go:build darwin

package sysproxy

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// DefaultBypass is the bypass list used when none is configured.
const DefaultBypass = "127.0.0.1,192.168.0.0/16,10.0.0.0/8,172.16.0.0/12,localhost,*.local,*.crashlytics.com,<local>"

// networksetupApplier configures every enabled network service.
type networksetupApplier struct{}

func newPlatformApplier() Applier { return networksetupApplier{} }

func services(ctx context.Context) ([]string, error) {
	out, err := run(ctx, "networksetup", "-listallnetworkservices")
	if err != nil {
		return nil, err
	}
	var list []string
	for i, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		// first line is a legend; "*" marks disabled services
		if i == 0 || line == "" || strings.HasPrefix(line, "*") {
			continue
		}
		list = append(list, line)
	}
	if len(list) == 0 {
		return nil, errors.New("no enabled network services")
	}
	return list, nil
}

func (networksetupApplier) Apply(ctx context.Context, s Settings) error {
	svcs, err := services(ctx)
	if err != nil {
		return err
	}
	port := strconv.Itoa(int(s.Port))
	for _, svc := range svcs {
		for _, flag := range []string{"-setwebproxy", "-setsecurewebproxy", "-setsocksfirewallproxy"} {
			if _, err := run(ctx, "networksetup", flag, svc, s.Host, port); err != nil {
				return err
			}
		}
		args := append([]string{"-setproxybypassdomains", svc}, s.BypassList()...)
		if _, err := run(ctx, "networksetup", args...); err != nil {
			return err
		}
	}
	return nil
}

func (networksetupApplier) Reset(ctx context.Context) error {
	svcs, err := services(ctx)
	if err != nil {
		return err
	}
	for _, svc := range svcs {
		for _, flag := range []string{"-setwebproxystate", "-setsecurewebproxystate", "-setsocksfirewallproxystate"} {
			if _, err := run(ctx, "networksetup", flag, svc, "off"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (networksetupApplier) Current(ctx context.Context) (Settings, error) {
	svcs, err := services(ctx)
	if err != nil {
		return Settings{}, err
	}
	out, err := run(ctx, "networksetup", "-getwebproxy", svcs[0])
	if err != nil {
		return Settings{}, err
	}
	var s Settings
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Enabled":
			s.Enable = value == "Yes"
		case "Server":
			s.Host = value
		case "Port":
			if p, err := strconv.ParseUint(value, 10, 16); err == nil {
				s.Port = uint16(p)
			}
		}
	}
	return s, nil
}

// RestorePublicDNS clears DNS servers set by the app on every service.
func RestorePublicDNS(ctx context.Context) error {
	svcs, err := services(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, svc := range svcs {
		if _, err := run(ctx, "networksetup", "-setdnsservers", svc, "Empty"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

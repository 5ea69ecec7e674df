//go:build windows

package scheme

import (
	"context"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

func register(_ context.Context, exe string, schemes []string) error {
	for _, s := range schemes {
		if err := registerOne(exe, s); err != nil {
			return fmt.Errorf("register %s: %w", s, err)
		}
	}
	return nil
}

func registerOne(exe, scheme string) error {
	root, _, err := registry.CreateKey(registry.CURRENT_USER, `Software\Classes\`+scheme, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer root.Close()
	if err := root.SetStringValue("", "URL:"+scheme+" Protocol"); err != nil {
		return err
	}
	if err := root.SetStringValue("URL Protocol", ""); err != nil {
		return err
	}

	cmd, _, err := registry.CreateKey(registry.CURRENT_USER, `Software\Classes\`+scheme+`\shell\open\command`, registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer cmd.Close()
	return cmd.SetStringValue("", fmt.Sprintf(`"%s" "%%1"`, exe))
}

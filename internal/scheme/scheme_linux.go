//go:build linux

package scheme

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

const desktopFile = "outclash-url-handler.desktop"

func register(ctx context.Context, exe string, schemes []string) error {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(dataHome, "applications")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, desktopFile), []byte(desktopEntry(exe, schemes)), 0o644); err != nil {
		return fmt.Errorf("failed to write desktop entry: %w", err)
	}

	if _, err := exec.LookPath("xdg-mime"); err != nil {
		return fmt.Errorf("xdg-mime not found in PATH: %w", err)
	}
	for _, s := range schemes {
		cmd := exec.CommandContext(ctx, "xdg-mime", "default", desktopFile, "x-scheme-handler/"+s)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("xdg-mime %s: %w: %s", s, err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

func desktopEntry(exe string, schemes []string) string {
	mimes := make([]string, len(schemes))
	for i, s := range schemes {
		mimes[i] = "x-scheme-handler/" + s
	}
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	b.WriteString("Name=OutClash URL Handler\n")
	fmt.Fprintf(&b, "Exec=%q %%u\n", exe)
	b.WriteString("NoDisplay=true\n")
	b.WriteString("Terminal=false\n")
	fmt.Fprintf(&b, "MimeType=%s;\n", strings.Join(mimes, ";"))
	return b.String()
}

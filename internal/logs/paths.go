package logs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const appDirName = "outclash"

// Dir returns the per-user log directory of the current OS:
//
//	macOS    ~/Library/Logs/outclash
//	Windows  %LOCALAPPDATA%\outclash\logs
//	Linux    $XDG_STATE_HOME/outclash/logs (~/.local/state when unset)
func Dir() string {
	return dirFor(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

func dirFor(goos string, getenv func(string) string, home func() (string, error)) string {
	h, err := home()
	if err != nil || h == "" {
		return filepath.Join(os.TempDir(), appDirName, "logs")
	}
	switch goos {
	case "darwin":
		return filepath.Join(h, "Library", "Logs", appDirName)
	case "windows":
		base := getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(h, "AppData", "Local")
		}
		return filepath.Join(base, appDirName, "logs")
	case "linux":
		base := getenv("XDG_STATE_HOME")
		if base == "" {
			base = filepath.Join(h, ".local", "state")
		}
		return filepath.Join(base, appDirName, "logs")
	}
	return filepath.Join(h, "."+appDirName, "logs")
}

// FilePath joins name onto dir, creating dir. An empty dir selects Dir and a
// leading "~/" is expanded.
func FilePath(dir, name string) (string, error) {
	switch {
	case dir == "":
		dir = Dir()
	case strings.HasPrefix(dir, "~/"):
		h, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand %s: %w", dir, err)
		}
		dir = filepath.Join(h, dir[2:])
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}

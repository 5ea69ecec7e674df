package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrUnsupportedScript is returned for a startup script whose extension has
// no known interpreter.
var ErrUnsupportedScript = errors.New("unsupported startup script")

// scriptCommand returns the interpreter invocation for path.
func scriptCommand(path string) (string, []string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sh":
		return "bash", []string{path}, nil
	case ".ps1":
		return "powershell", []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File", path}, nil
	case ".bat", ".cmd":
		return "cmd", []string{"/C", path}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedScript, path)
	}
}

// RunStartupScript runs the user's startup script from its own directory and
// waits for it to finish.
func RunStartupScript(ctx context.Context, path string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	path = strings.TrimSpace(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("startup script not found: %w", err)
	}
	name, args, err := scriptCommand(path)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = filepath.Dir(path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("startup script %s failed: %w: %s", path, err, strings.TrimSpace(string(out)))
	}
	logger.Info("Startup script finished", zap.String("script", path), zap.Int("output_bytes", len(out)))
	return nil
}

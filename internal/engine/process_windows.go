//go:build windows

package engine

import (
	"net/url"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

// DefaultBinaryName is the engine executable looked up when none is configured.
const DefaultBinaryName = "verge-mihomo.exe"

func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NO_WINDOW | windows.CREATE_NEW_PROCESS_GROUP,
	}
}

// Windows has no SIGTERM for console-less children; kill outright.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func signalOf(*exec.ExitError) string { return "" }

func controllerArgs(endpoint string) []string {
	if endpoint == "" {
		return nil
	}
	u, err := url.Parse(endpoint)
	if err == nil && u.Scheme == "npipe" {
		pipe := u.Opaque
		if pipe == "" {
			pipe = u.Path
		}
		return []string{"-ext-ctl-pipe", strings.TrimPrefix(pipe, "//")}
	}
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return []string{"-ext-ctl", u.Host}
	}
	return []string{"-ext-ctl", endpoint}
}

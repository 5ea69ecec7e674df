//go:build !windows

package engine

import (
	"errors"
	"net/url"
	"os/exec"
	"syscall"
)

// DefaultBinaryName is the engine executable looked up when none is configured.
const DefaultBinaryName = "verge-mihomo"

func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminate(cmd *exec.Cmd) error {
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

func kill(cmd *exec.Cmd) error {
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err != nil && !errors.Is(err, syscall.ESRCH) {
		return err
	}
	return nil
}

func signalOf(exitErr *exec.ExitError) string {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return status.Signal().String()
	}
	return ""
}

// controllerArgs maps unix://path to the engine's socket controller flag and
// anything else to the TCP controller flag.
func controllerArgs(endpoint string) []string {
	if endpoint == "" {
		return nil
	}
	u, err := url.Parse(endpoint)
	if err == nil && u.Scheme == "unix" {
		return []string{"-ext-ctl-unix", u.Path}
	}
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return []string{"-ext-ctl", u.Host}
	}
	return []string{"-ext-ctl", endpoint}
}

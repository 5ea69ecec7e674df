//go:build !linux && !darwin && !windows

package sysproxy

import "context"

// DefaultBypass is the bypass list used when none is configured.
const DefaultBypass = "localhost,127.0.0.1"

type unsupportedApplier struct{}

func newPlatformApplier() Applier { return unsupportedApplier{} }

func (unsupportedApplier) Apply(context.Context, Settings) error { return ErrUnsupported }
func (unsupportedApplier) Reset(context.Context) error           { return ErrUnsupported }
func (unsupportedApplier) Current(context.Context) (Settings, error) {
	return Settings{}, ErrUnsupported
}

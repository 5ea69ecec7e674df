//go:build !linux && !windows

package scheme

import "context"

// The bundle's Info.plist declares the schemes on macOS.
func register(context.Context, string, []string) error { return nil }

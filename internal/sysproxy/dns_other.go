//go:build !darwin

package sysproxy

import "context"

// RestorePublicDNS is only needed on macOS.
func RestorePublicDNS(context.Context) error { return nil }

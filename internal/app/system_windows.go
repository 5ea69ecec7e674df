//go:build windows

package app

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func isAdmin() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

func osVersion() string {
	v := windows.RtlGetVersion()
	return fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber)
}

//go:build unix

package app

import (
	"os"

	"golang.org/x/sys/unix"
)

func isAdmin() bool {
	return os.Geteuid() == 0
}

func osVersion() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "unknown"
	}
	return unix.ByteSliceToString(u.Release[:])
}

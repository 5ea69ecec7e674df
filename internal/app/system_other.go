//go:build !unix && !windows

package app

func isAdmin() bool { return false }

func osVersion() string { return "unknown" }

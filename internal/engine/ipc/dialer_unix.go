//go:build !windows

package ipc

import (
	"context"
	"net"
)

func dialPipe(context.Context, string) (net.Conn, error) {
	return nil, errWrongPlatform
}

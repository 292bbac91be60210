//go:build linux

package wol

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// bindToDevice pins the socket to iface so a limited broadcast leaves
// through that link.
func bindToDevice(iface string) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = unix.BindToDevice(int(fd), iface)
		})
		if err != nil {
			return err
		}
		if sockErr != nil {
			return fmt.Errorf("failed to bind to interface %s: %w", iface, sockErr)
		}
		return nil
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

//go:build linux

package link

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// bindToDevice returns a dialer hook pinning the socket to iface with
// SO_BINDTODEVICE. Requires CAP_NET_RAW.
func bindToDevice(iface string) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var bindErr error
		err := c.Control(func(fd uintptr) {
			bindErr = unix.BindToDevice(int(fd), iface)
		})
		if err != nil {
			return err
		}
		if bindErr != nil {
			return fmt.Errorf("bind to %s: %w", iface, bindErr)
		}
		return nil
	}
}

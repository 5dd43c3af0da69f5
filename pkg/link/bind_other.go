// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

//go:build !linux

package link

import "syscall"

// bindToDevice is a no-op where SO_BINDTODEVICE is unavailable. The
// interface has already been checked to exist.
func bindToDevice(iface string) func(network, address string, c syscall.RawConn) error {
	return nil
}

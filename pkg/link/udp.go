// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// Common UDP link errors
var (
	ErrInvalidAddress   = errors.New("link: invalid target address")
	ErrInvalidPort      = errors.New("link: invalid target port")
	ErrUnknownInterface = errors.New("link: unknown network interface")
)

// UDPConfig describes the servo slave endpoint.
type UDPConfig struct {
	// Target IP address of the slave (IPv4 or IPv6)
	IP string

	// Target UDP port
	Port uint16

	// Interface name to bind to (e.g., "eth0"). Empty lets the kernel route.
	Interface string

	// Timeout for resolving and binding the socket
	DialTimeout time.Duration
}

// DefaultUDPConfig returns a UDPConfig with default values.
func DefaultUDPConfig() UDPConfig {
	return UDPConfig{
		IP:          "192.168.1.10",
		Port:        2333,
		DialTimeout: 2 * time.Second,
	}
}

// Validate checks the target without touching the network.
func (c UDPConfig) Validate() error {
	addr, err := netip.ParseAddr(c.IP)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, c.IP)
	}
	if addr.IsUnspecified() {
		return fmt.Errorf("%w: %s is unspecified", ErrInvalidAddress, c.IP)
	}
	if c.Port == 0 {
		return ErrInvalidPort
	}
	if c.Interface != "" {
		if _, err := net.InterfaceByName(c.Interface); err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownInterface, c.Interface)
		}
	}
	return nil
}

// AddrPort returns the target as a netip.AddrPort. The config must be valid.
func (c UDPConfig) AddrPort() netip.AddrPort {
	addr, _ := netip.ParseAddr(c.IP)
	return netip.AddrPortFrom(addr, c.Port)
}

// UDPConnection is a connected UDP socket. Each Write sends one datagram.
type UDPConnection struct {
	*net.UDPConn
	iface string
}

// Interface returns the bound interface name, if any.
func (u *UDPConnection) Interface() string {
	return u.iface
}

// DialUDP opens a UDP socket to the slave, bound to the configured interface.
func DialUDP(ctx context.Context, cfg UDPConfig) (*UDPConnection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultUDPConfig().DialTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := net.Dialer{}
	if cfg.Interface != "" {
		dialer.Control = bindToDevice(cfg.Interface)
	}

	conn, err := dialer.DialContext(ctx, "udp", cfg.AddrPort().String())
	if err != nil {
		return nil, fmt.Errorf("failed to dial udp %s: %w", cfg.AddrPort(), err)
	}

	return &UDPConnection{UDPConn: conn.(*net.UDPConn), iface: cfg.Interface}, nil
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package master

import (
	"context"
	"log"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/link"
)

// UDPDialer returns the default Dialer: a UDP socket to the target, bound to
// the interface when one is named.
func UDPDialer(logger *log.Logger) Dialer {
	return func(target LinkTarget) (Link, error) {
		cfg := link.DefaultUDPConfig()
		cfg.IP = target.IP
		cfg.Port = target.Port
		cfg.Interface = target.Interface

		conn, err := link.DialUDP(context.Background(), cfg)
		if err != nil {
			return nil, err
		}
		return link.New(conn, link.WithLogger(logger)), nil
	}
}

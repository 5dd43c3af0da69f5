// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/link"
)

// OpenConnection opens a WebSocket, serial or UDP connection based on flags,
// in that order of preference.
func OpenConnection() (link.Connection, string, error) {
	if wsURL != "" {
		password := ""
		if wsUsername != "" {
			var err error
			password, err = link.GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		conn, err := link.OpenWebSocket(ctx, link.WebSocketConfig{
			URL:           wsURL,
			Username:      wsUsername,
			Password:      password,
			SkipSSLVerify: wsNoSSLVerify,
		})
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", wsURL), nil
	}

	if portName != "" {
		conn, err := link.OpenSerial(link.SerialConfig{Port: portName, BaudRate: baudRate})
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	cfg := link.DefaultUDPConfig()
	cfg.IP = targetIP
	cfg.Port = targetPort
	cfg.Interface = ifaceName

	conn, err := link.DialUDP(context.Background(), cfg)
	if err != nil {
		return nil, "", err
	}
	info := fmt.Sprintf("UDP: %s", cfg.AddrPort())
	if ifaceName != "" {
		info += fmt.Sprintf(" via %s", ifaceName)
	}
	return conn, info, nil
}

// streamTransport reports whether the flags select a serial or WebSocket
// connection instead of UDP.
func streamTransport() bool {
	return wsURL != "" || portName != ""
}

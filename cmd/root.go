// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"io"
	"log"
	"os"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/link"
	"github.com/spf13/cobra"
)

var (
	// UDP target flags
	targetIP   string
	targetPort uint16
	ifaceName  string

	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Servo configuration flags
	configPath  string
	profileName string
	intervalMs  float64

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "servo-master",
	Short: "Ethernet servo master",
	Long: `servo-master drives up to 30 servo axes over an Ethernet link at a fixed
cycle interval, and provides tools for inspecting the master/slave protocol.

Connection modes:
  UDP:       --ip 192.168.1.10 [--target-port 2333] [--iface eth0]
  Serial:    --port /dev/ttyUSB0 [--baud 921600]
  WebSocket: --url ws://host/path [--username user]

Binding to an interface with --iface requires CAP_NET_RAW on Linux.

For WebSocket authentication, the password is read from the MASTER_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// UDP target flags
	rootCmd.PersistentFlags().StringVar(&targetIP, "ip", "192.168.1.10", "Slave IP address")
	rootCmd.PersistentFlags().Uint16Var(&targetPort, "target-port", 2333, "Slave UDP port")
	rootCmd.PersistentFlags().StringVarP(&ifaceName, "iface", "i", "", "Network interface to bind to")

	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", link.DefaultSerialBaud, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Servo configuration flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Servo configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Conversion profile preset (overrides the config file)")
	rootCmd.PersistentFlags().Float64Var(&intervalMs, "interval", 0, "Cycle interval in milliseconds (overrides the config file)")

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log master and link events to stderr")
}

// newLogger returns the logger handed to the master and the link.
func newLogger() *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "servo-master: ", log.LstdFlags|log.Lmicroseconds)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

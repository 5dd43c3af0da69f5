// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	discoveryTimeout int
	discoveryRouter  bool
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Discover servo slaves on the link",
	Long: `Send DISCOVERY_REQUEST to discover servo slaves.

Modes:
  Direct (default): Send broadcast DISCOVERY_REQUEST. Every slave answers
                    with DEVICE_ANNOUNCE carrying its axis count and
                    firmware version.

  Router (--router): Send stateless DISCOVERY_REQUEST to a bridge. The bridge
                     answers with DEVICE_ANNOUNCE for each known slave,
                     followed by an end-of-discovery marker (address 0,
                     zero axes).

Examples:
  # Direct discovery over UDP
  servo-master discovery --ip 192.168.1.10

  # Bridge discovery over WebSocket
  servo-master discovery --url ws://bridge.local/servo --router

Exit codes:
  0 - Discovery successful (at least one device found)
  1 - Discovery failed (no devices or timeout)
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().IntVar(&discoveryTimeout, "timeout", 5, "Timeout in seconds for discovery")
	discoveryCmd.Flags().BoolVar(&discoveryRouter, "router", false, "Use router mode (stateless address)")
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	mode := "direct"
	var address uint64 = wire.AddressBroadcast
	if discoveryRouter {
		mode = "router"
		address = wire.AddressStateless
	}

	fmt.Printf("Servo Master - Device Discovery\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Mode: %s\n", mode)
	fmt.Printf("Timeout: %d seconds\n\n", discoveryTimeout)

	fmt.Printf("Sending DISCOVERY_REQUEST (address=0x%016X)...\n", address)
	if _, err := conn.Write(wire.NewDiscoveryRequest(address)); err != nil {
		fmt.Printf("SEND FAILED: %v\n", err)
		os.Exit(2)
	}

	found := make(chan discoveryDeviceInfo, 16)
	errChan := make(chan error, 1)

	go func() {
		decoder := wire.NewDecoder()
		buf := make([]byte, 2*wire.MaxPacketSize+2)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				errChan <- err
				return
			}

			for j := 0; j < n; j++ {
				packet, decodeErr := decoder.DecodeByte(buf[j])
				if decodeErr != nil || packet == nil {
					continue
				}
				if packet.Type() != wire.MsgDeviceAnnounce {
					continue
				}
				device, err := parseDiscoveryAnnounce(packet)
				if err != nil {
					fmt.Printf("Malformed DEVICE_ANNOUNCE: %v\n", err)
					continue
				}
				found <- device
			}
		}
	}()

	devices := make([]discoveryDeviceInfo, 0)
	timeout := time.After(time.Duration(discoveryTimeout) * time.Second)

collect:
	for {
		select {
		case device := <-found:
			if device.isEndMarker() {
				if discoveryRouter {
					fmt.Printf("\nEnd of discovery marker received\n")
					break collect
				}
				continue
			}
			devices = append(devices, device)
			fmt.Printf("\nDevice found:\n")
			fmt.Printf("  Address: 0x%016X\n", device.address)
			fmt.Printf("  Axes: %d\n", device.axisCount)
			fmt.Printf("  Version: %d.%d\n", device.version>>8, device.version&0xFF)

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			os.Exit(2)

		case <-timeout:
			if discoveryRouter {
				fmt.Printf("\nTIMEOUT: No end-of-discovery marker received in %ds\n", discoveryTimeout)
			} else if len(devices) > 0 {
				// Slaves never signal the end of a direct discovery
				fmt.Printf("\nDiscovery timeout reached\n")
			} else {
				fmt.Printf("\nTIMEOUT: No devices responded in %ds\n", discoveryTimeout)
			}
			break collect
		}
	}

	fmt.Printf("\n--- Discovery summary ---\n")
	fmt.Printf("Devices found: %d\n", len(devices))

	if len(devices) == 0 {
		if discoveryRouter {
			fmt.Printf("No devices discovered. Router may not have any connected slaves.\n")
		} else {
			fmt.Printf("No devices discovered. Check link and slave power.\n")
		}
		os.Exit(1)
	}

	return nil
}

type discoveryDeviceInfo struct {
	address   uint64
	axisCount uint64
	version   uint64
}

func (d discoveryDeviceInfo) isEndMarker() bool {
	return d.address == wire.AddressBroadcast && d.axisCount == 0
}

func parseDiscoveryAnnounce(p *wire.Packet) (discoveryDeviceInfo, error) {
	payloadMap, err := p.PayloadMap()
	if err != nil {
		return discoveryDeviceInfo{}, err
	}

	axisCount, _ := wire.GetMapUint(payloadMap, 0)
	version, _ := wire.GetMapUint(payloadMap, 1)

	return discoveryDeviceInfo{
		address:   p.Address(),
		axisCount: axisCount,
		version:   version,
	}, nil
}

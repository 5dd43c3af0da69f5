// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	packetTestTimeout int
	packetTestType    string
	packetTestNoPing  bool
)

var packetTestCmd = &cobra.Command{
	Use:   "packet_test",
	Short: "Test connection by waiting for a valid packet",
	Long: `Wait for a valid packet on the connection until timeout.

A PING_REQUEST is sent first so that a slave reached over UDP has something
to answer. Invalid bytes are skipped until a complete packet passes the CRC
check. With --type only packets of that message type count, e.g.
--type 0x31 waits for telemetry from a running master's slave.

Exit codes:
  0 - Packet received before timeout
  1 - Timeout reached without receiving a valid packet
  2 - Connection error`,
	RunE: runPacketTest,
}

func init() {
	rootCmd.AddCommand(packetTestCmd)
	packetTestCmd.Flags().IntVar(&packetTestTimeout, "timeout", 10, "Timeout in seconds to wait for a packet")
	packetTestCmd.Flags().StringVar(&packetTestType, "type", "", "Only accept this message type (e.g. 0x3F)")
	packetTestCmd.Flags().BoolVar(&packetTestNoPing, "no-ping", false, "Listen without sending PING_REQUEST")
}

// parseMsgType accepts decimal or 0x-prefixed hexadecimal message types.
func parseMsgType(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid message type %q", s)
	}
	return uint8(v), nil
}

type packetTestResult struct {
	packet  *wire.Packet
	skipped int
	err     error
}

func runPacketTest(cmd *cobra.Command, args []string) error {
	var (
		filter    uint8
		hasFilter bool
	)
	if packetTestType != "" {
		t, err := parseMsgType(packetTestType)
		if err != nil {
			return err
		}
		filter, hasFilter = t, true
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Servo Master - Packet Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", packetTestTimeout)
	if hasFilter {
		fmt.Printf("Waiting for %s packet...\n\n", wire.FormatMessageType(filter))
	} else {
		fmt.Printf("Waiting for valid packet...\n\n")
	}

	if !packetTestNoPing {
		if _, err := conn.Write(wire.NewPingRequest(wire.AddressBroadcast)); err != nil {
			fmt.Fprintf(os.Stderr, "Write error: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(packetTestTimeout)*time.Second)
	defer cancel()

	result := make(chan packetTestResult, 1)
	go func() {
		decoder := wire.NewDecoder()
		buf := make([]byte, 2*wire.MaxPacketSize+2)
		skipped := 0
		for {
			n, err := conn.Read(buf)
			if err != nil {
				result <- packetTestResult{err: err}
				return
			}
			for i := 0; i < n; i++ {
				packet, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil {
					skipped++
					continue
				}
				if packet == nil {
					continue
				}
				if hasFilter && packet.Type() != filter {
					skipped += int(packet.Length())
					continue
				}
				result <- packetTestResult{packet: packet, skipped: skipped}
				return
			}
		}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "Read error: %v\n", r.err)
			os.Exit(2)
		}
		if r.skipped > 0 {
			fmt.Printf("(skipped %d bytes before a match)\n", r.skipped)
		}
		fmt.Printf("SUCCESS: Received valid packet\n")
		fmt.Printf("  Type: %s (0x%02X)\n", wire.FormatMessageType(r.packet.Type()), r.packet.Type())
		fmt.Printf("  Address: 0x%016X\n", r.packet.Address())
		fmt.Printf("  Length: %d bytes\n", r.packet.Length())
		fmt.Printf("  CRC: 0x%04X\n", r.packet.CRC())
		if errs := wire.ValidatePacket(r.packet); len(errs) > 0 {
			for _, e := range errs {
				fmt.Printf("  Warning: %s\n", e.Message)
			}
		}
		return nil

	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid packet received within %d seconds\n", packetTestTimeout)
		os.Exit(1)
	}

	return nil
}

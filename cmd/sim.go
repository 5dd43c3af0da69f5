// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/link"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	simListen  string
	simAddress uint64
	simAxes    uint32
	simSilent  uint32
	simVersion uint16
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Simulate a servo slave",
	Long: `Answer master traffic as a simulated servo slave.

AXIS_COMMAND is answered with telemetry echoing the commanded values,
PING_REQUEST with the simulator uptime and DISCOVERY_REQUEST with a
DEVICE_ANNOUNCE.

The simulator listens for UDP datagrams on --listen. With --port or --url it
serves the serial or WebSocket connection instead.

Examples:
  # Serve a master on the loopback interface
  servo-master sim --listen 127.0.0.1:2333
  servo-master run --ip 127.0.0.1

  # Drive only the first 12 axes and drop axis 3
  servo-master sim --axes 0xFFF --silent 0x8`,
	RunE: runSim,
}

func init() {
	rootCmd.AddCommand(simCmd)
	def := link.DefaultResponderConfig()
	simCmd.Flags().StringVar(&simListen, "listen", "0.0.0.0:2333", "UDP listen address")
	simCmd.Flags().Uint64Var(&simAddress, "address", def.Address, "Slave address")
	simCmd.Flags().Uint32Var(&simAxes, "axes", def.Axes, "Mask of axes driven by the slave")
	simCmd.Flags().Uint32Var(&simSilent, "silent", 0, "Mask of axes that never report")
	simCmd.Flags().Uint16Var(&simVersion, "fw-version", def.Version, "Firmware version reported")
}

func runSim(cmd *cobra.Command, args []string) error {
	if simAxes&^wire.AllAxesMask != 0 {
		return fmt.Errorf("axis mask 0x%08X names axes beyond %d", simAxes, wire.MaxAxes-1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	responder := link.NewResponder(link.ResponderConfig{
		Address: simAddress,
		Axes:    simAxes,
		Version: simVersion,
	}, newLogger())
	responder.SetSilent(simSilent)

	fmt.Printf("Servo Master - Slave Simulator\n")
	fmt.Printf("Address: 0x%016X\n", simAddress)
	fmt.Printf("Axes: 0x%08X, silent: 0x%08X\n", simAxes, simSilent)

	done := make(chan error, 1)
	if streamTransport() {
		conn, connInfo, err := OpenConnection()
		if err != nil {
			return err
		}
		fmt.Printf("Connection: %s\n", connInfo)
		go func() { done <- responder.ServeConn(ctx, conn) }()
	} else {
		pc, err := net.ListenPacket("udp", simListen)
		if err != nil {
			return fmt.Errorf("listen %s: %w", simListen, err)
		}
		fmt.Printf("Listening: UDP %s\n", pc.LocalAddr())
		go func() { done <- responder.ServePacketConn(ctx, pc) }()
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			fmt.Printf("\nCommands: %d, replies: %d\n", responder.Commands(), responder.Replies())
			return err
		case <-ticker.C:
			fmt.Printf("Commands: %d, replies: %d\n", responder.Commands(), responder.Replies())
		}
	}
}

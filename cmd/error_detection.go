// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/link"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed packets and errors",
	Long: `Track packet errors, malformed data, and anomalous values with statistics.

This command validates each packet and detects:
  - CRC errors and decode failures
  - Axis masks naming slots beyond the last axis
  - Anomalous telemetry (invalid state, over-temperature, no bus voltage)
  - Statistics and trends (packet rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid packets too.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all packets (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Servo Master - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All packets\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := wire.NewDecoder()
	stats := wire.NewStatistics()

	// Sync tracking - ignore decode errors until first valid packet
	synchronized := false
	invalidBytesBeforeSync := 0

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	readBuf := make(chan []byte, 10)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 2*wire.MaxPacketSize+2)
		for {
			n, err := conn.Read(buf)
			if err != nil {
				if errors.Is(err, link.ErrConnectionClosed) {
					readErr <- err
					return
				}
				log.Printf("Read error: %v", err)
				continue
			}
			data := make([]byte, n)
			copy(data, buf[:n])
			readBuf <- data
		}
	}()

	for {
		select {
		case data := <-readBuf:
			for _, b := range data {
				packet, decodeErr := decoder.DecodeByte(b)

				if decodeErr != nil {
					if synchronized {
						stats.Update(nil, decodeErr, nil)
						printDecodeError(decodeErr)
					} else {
						invalidBytesBeforeSync++
					}
					continue
				}
				if packet == nil {
					continue
				}

				if !synchronized {
					synchronized = true
					if invalidBytesBeforeSync > 0 {
						fmt.Printf("[SYNC] Synchronized after skipping %d invalid bytes\n\n", invalidBytesBeforeSync)
					} else {
						fmt.Printf("[SYNC] Synchronized\n\n")
					}
				}

				validationErrors := wire.ValidatePacket(packet)
				stats.Update(packet, nil, validationErrors)

				if len(validationErrors) > 0 {
					printValidationErrors(packet, validationErrors)
				} else if packet.Type() == wire.MsgPingResponse {
					printPingResponse(packet)
				} else if showAll {
					fmt.Print(wire.FormatPacket(packet))
				}
			}

		case err := <-readErr:
			fmt.Println()
			fmt.Print(stats.String())
			return err

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> DECODE FAILED <<<\n\n")
}

// printPingResponse prints a ping response with uptime
func printPingResponse(packet *wire.Packet) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	m, err := packet.PayloadMap()
	if err != nil {
		fmt.Printf("[%s] \033[1;32mPING_RESPONSE:\033[0m %v\n\n", timestamp, err)
		return
	}
	uptime, ok := wire.GetMapUint(m, 0)
	if !ok {
		fmt.Printf("[%s] \033[1;32mPING_RESPONSE:\033[0m missing uptime\n\n", timestamp)
		return
	}
	fmt.Printf("[%s] \033[1;32mPING_RESPONSE:\033[0m slave 0x%016X uptime: %s\n\n",
		timestamp, packet.Address(), formatUptime(uptime))
}

// printValidationErrors prints validation errors for a packet
func printValidationErrors(packet *wire.Packet, validationErrors []wire.ValidationError) {
	timestamp := packet.Timestamp().Format("15:04:05.000")
	msgType := wire.FormatMessageType(packet.Type())

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (0x%02X)\n", timestamp, msgType, packet.Type())
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")

	for i, err := range validationErrors {
		switch err.Type {
		case wire.AnomalyDecodeError, wire.AnomalyUnknownAxis:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if mask, ok := err.Details["present"].(uint32); ok {
				fmt.Printf("    present=0x%08X valid=0x%08X\n", mask, wire.AllAxesMask)
			}
			if mask, ok := err.Details["active"].(uint32); ok {
				fmt.Printf("    active=0x%08X valid=0x%08X\n", mask, wire.AllAxesMask)
			}

		case wire.AnomalyInvalidState:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
			if state, ok := err.Details["state"].(wire.AxisState); ok {
				fmt.Printf("    state=%d (valid: 0-%d)\n", state, wire.AxisEnabled)
			}

		case wire.AnomalyOverTemp:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)

		default:
			fmt.Printf("  Issue %d: %s\n", i+1, err.Message)
		}
	}

	if packet.Type() == wire.MsgAxisTelemetry {
		if frame, err := packet.TelemetryFrame(); err == nil {
			fmt.Printf("  Seq: %d, Present: 0x%08X\n", frame.Seq, frame.Present)
		}
	}

	fmt.Printf("  >>> PACKET REJECTED <<<\n\n")
}

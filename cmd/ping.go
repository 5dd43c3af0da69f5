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
	pingCount    int
	pingInterval int
	pingTimeout  int
	pingAddress  uint64
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Measure round-trip time to a servo slave",
	Long: `Send PING_REQUEST packets and wait for PING_RESPONSE.

Each response reports the slave uptime. Round-trip time is measured from
write to the decoded response.

Exit codes:
  0 - At least one ping answered
  1 - No ping answered
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 4, "Number of pings to send")
	pingCmd.Flags().IntVar(&pingInterval, "ping-interval", 1000, "Delay between pings (ms)")
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 2, "Timeout in seconds for each ping")
	pingCmd.Flags().Uint64Var(&pingAddress, "address", wire.AddressBroadcast, "Slave address")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Servo Master - Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Address: 0x%016X\n\n", pingAddress)

	responses := make(chan uint64, 4)
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
			for i := 0; i < n; i++ {
				packet, decodeErr := decoder.DecodeByte(buf[i])
				if decodeErr != nil || packet == nil || packet.Type() != wire.MsgPingResponse {
					continue
				}
				m, err := packet.PayloadMap()
				if err != nil {
					continue
				}
				uptime, _ := wire.GetMapUint(m, 0)
				responses <- uptime
			}
		}
	}()

	request := wire.NewPingRequest(pingAddress)
	answered := 0
	var minRTT, maxRTT, totalRTT time.Duration

	for seq := 1; seq <= pingCount; seq++ {
		sent := time.Now()
		if _, err := conn.Write(request); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			os.Exit(2)
		}

		select {
		case uptime := <-responses:
			rtt := time.Since(sent)
			answered++
			totalRTT += rtt
			if minRTT == 0 || rtt < minRTT {
				minRTT = rtt
			}
			if rtt > maxRTT {
				maxRTT = rtt
			}
			fmt.Printf("seq=%d time=%v uptime=%s\n", seq, rtt.Round(time.Microsecond), formatUptime(uptime))
		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			os.Exit(2)
		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("seq=%d timeout\n", seq)
		}

		if seq < pingCount {
			time.Sleep(time.Duration(pingInterval) * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d sent, %d received, %.1f%% loss\n",
		pingCount, answered, 100*float64(pingCount-answered)/float64(max(pingCount, 1)))
	if answered == 0 {
		os.Exit(1)
	}
	fmt.Printf("rtt min/avg/max = %v/%v/%v\n",
		minRTT.Round(time.Microsecond),
		(totalRTT / time.Duration(answered)).Round(time.Microsecond),
		maxRTT.Round(time.Microsecond))
	return nil
}

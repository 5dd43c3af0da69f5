// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/link"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
	"github.com/spf13/cobra"
)

var (
	rawLogType    string
	rawLogAddress uint64
	rawLogAxes    uint32
	rawLogPoll    time.Duration
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw packet log in human-readable format",
	Long: `Continuously decode and display protocol packets as they arrive.

Command and telemetry frames are listed per axis; --axes limits the listing
to a mask of axis slots. --type and --address drop packets that do not
match.

Over UDP a slave only talks to a master that commands it. Use --poll to send
PING_REQUEST periodically, or run raw_log on a bridge or serial tap to watch
live traffic.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	rawLogCmd.Flags().StringVar(&rawLogType, "type", "", "Only show this message type (e.g. 0x31)")
	rawLogCmd.Flags().Uint64Var(&rawLogAddress, "address", 0, "Only show packets from this address (0 shows all)")
	rawLogCmd.Flags().Uint32Var(&rawLogAxes, "axes", wire.AllAxesMask, "Mask of axis slots listed in frames")
	rawLogCmd.Flags().DurationVar(&rawLogPoll, "poll", 0, "Send PING_REQUEST at this interval (0 disables)")
}

// packetFilter selects which decoded packets raw_log prints.
type packetFilter struct {
	msgType    uint8
	hasType    bool
	address    uint64
	hasAddress bool
	axes       uint32
}

func (f packetFilter) match(p *wire.Packet) bool {
	if f.hasType && p.Type() != f.msgType {
		return false
	}
	if f.hasAddress && p.Address() != f.address {
		return false
	}
	return true
}

// render formats p, listing only the axis slots in the filter's mask.
func (f packetFilter) render(p *wire.Packet) string {
	if p.ParseError() != nil {
		return wire.FormatPacket(p)
	}

	header := fmt.Sprintf("[%s] %s (0x%02X) addr=%016X len=%d\n",
		p.Timestamp().Format("15:04:05.000"), wire.FormatMessageType(p.Type()), p.Type(), p.Address(), p.Length())

	switch p.Type() {
	case wire.MsgAxisTelemetry:
		frame, err := p.TelemetryFrame()
		if err != nil {
			break
		}
		frame.Present &= f.axes
		return header + wire.FormatTelemetryFrame(&frame)
	case wire.MsgAxisCommand:
		frame, err := p.CommandFrame()
		if err != nil {
			break
		}
		frame.Active &= f.axes
		return header + wire.FormatCommandFrame(&frame)
	}
	return wire.FormatPacket(p)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	filter := packetFilter{axes: rawLogAxes, address: rawLogAddress, hasAddress: rawLogAddress != 0}
	if rawLogType != "" {
		t, err := parseMsgType(rawLogType)
		if err != nil {
			return err
		}
		filter.msgType, filter.hasType = t, true
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, func() { conn.Close() })

	fmt.Printf("Servo Master - Raw Packet Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	if rawLogPoll > 0 {
		go pollPing(ctx, conn, rawLogPoll)
	}

	decoder := wire.NewDecoder()
	buf := make([]byte, 2*wire.MaxPacketSize+2)
	var shown, hidden, bad uint64

	for {
		n, err := conn.Read(buf)
		for _, b := range buf[:n] {
			packet, decodeErr := decoder.DecodeByte(b)
			if decodeErr != nil {
				bad++
				fmt.Printf("[ERROR] %v\n", decodeErr)
				continue
			}
			if packet == nil {
				continue
			}
			if !filter.match(packet) {
				hidden++
				continue
			}
			shown++
			fmt.Print(filter.render(packet))
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, link.ErrConnectionClosed) {
			fmt.Printf("\nPackets shown: %d, filtered: %d, errors: %d\n", shown, hidden, bad)
			return nil
		}
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
	}
}

// pollPing writes PING_REQUEST every interval until ctx is done.
func pollPing(ctx context.Context, w io.Writer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	request := wire.NewPingRequest(wire.AddressBroadcast)
	for {
		if _, err := w.Write(request); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

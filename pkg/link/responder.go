// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package link

import (
	"context"
	"errors"
	"io"
	"log"
	"math/bits"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
)

// Simulated drive readings reported by the Responder
const (
	simMCUTemp    = 38
	simMOSTemp    = 41
	simMotorTemp  = 35
	simBusVoltage = 48
)

// ResponderConfig describes a simulated slave.
type ResponderConfig struct {
	// Address the slave answers from
	Address uint64

	// Axes the slave drives; bit i set for axis i
	Axes uint32

	// Firmware version reported in telemetry and announcements
	Version uint16
}

// DefaultResponderConfig returns a slave driving all axes.
func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		Address: 0x0000000000000001,
		Axes:    wire.AllAxesMask,
		Version: 0x0100,
	}
}

// Responder simulates a servo slave. It answers AXIS_COMMAND with telemetry
// that echoes the command, PING_REQUEST with its uptime and
// DISCOVERY_REQUEST with a DEVICE_ANNOUNCE.
type Responder struct {
	cfg    ResponderConfig
	start  time.Time
	logger *log.Logger

	mu      sync.Mutex
	encoder *wire.Encoder
	silent  uint32 // axes that stop reporting

	commands atomic.Uint64
	replies  atomic.Uint64
}

// NewResponder creates a simulated slave. A nil logger discards output.
func NewResponder(cfg ResponderConfig, logger *log.Logger) *Responder {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Responder{
		cfg:     cfg,
		start:   time.Now(),
		logger:  logger,
		encoder: wire.NewEncoder(),
	}
}

// SetSilent stops telemetry for the axes in mask, as if their drives dropped
// off the bus. A zero mask restores them all.
func (r *Responder) SetSilent(mask uint32) {
	r.mu.Lock()
	r.silent = mask
	r.mu.Unlock()
}

// Commands returns the number of AXIS_COMMAND packets handled.
func (r *Responder) Commands() uint64 {
	return r.commands.Load()
}

// Replies returns the number of packets sent back.
func (r *Responder) Replies() uint64 {
	return r.replies.Load()
}

// Handle builds the reply to p. It returns nil when no reply is due. The
// returned slice is freshly allocated.
func (r *Responder) Handle(p *wire.Packet) []byte {
	if !p.IsBroadcast() && p.Address() != r.cfg.Address {
		return nil
	}

	switch p.Type() {
	case wire.MsgAxisCommand:
		cmd, err := p.CommandFrame()
		if err != nil {
			r.logger.Printf("responder: bad command: %v", err)
			return nil
		}
		r.commands.Add(1)
		return r.telemetryFor(&cmd)

	case wire.MsgPingRequest:
		uptime := uint64(time.Since(r.start).Milliseconds())
		return wire.NewPingResponse(r.cfg.Address, uptime)

	case wire.MsgDiscoveryRequest:
		return wire.NewDeviceAnnounce(r.cfg.Address, uint8(bits.OnesCount32(r.cfg.Axes)), r.cfg.Version)

	case wire.MsgPingResponse, wire.MsgAxisTelemetry, wire.MsgDeviceAnnounce, wire.MsgErrorInvalidCmd:
		// slave-to-master traffic, ignore
		return nil

	default:
		return wire.NewInvalidCommand(r.cfg.Address, p.Type())
	}
}

func (r *Responder) telemetryFor(cmd *wire.CommandFrame) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	tel := wire.TelemetryFrame{Seq: cmd.Seq}
	tel.Present = r.cfg.Axes & cmd.Active &^ r.silent

	for i := range tel.Axes {
		if !tel.IsPresent(i) {
			continue
		}
		c := cmd.Axes[i]
		state := wire.AxisDisabled
		if c.Has(wire.FlagEnable) {
			state = wire.AxisEnabled
		}
		tel.Axes[i] = wire.AxisTelemetry{
			State:      state,
			Mode:       c.Mode,
			Q:          c.Q,
			DQ:         c.DQ,
			Tau:        c.Tau,
			MCUTemp:    simMCUTemp,
			MOSTemp:    simMOSTemp,
			MotorTemp:  simMotorTemp,
			BusVoltage: simBusVoltage,
			Version:    r.cfg.Version,
		}
	}

	data, err := r.encoder.Encode(r.cfg.Address, wire.MsgAxisTelemetry, &tel)
	if err != nil {
		r.logger.Printf("responder: encode telemetry: %v", err)
		return nil
	}
	return append([]byte(nil), data...)
}

// ServePacketConn answers datagrams on pc until ctx is done or pc fails.
// Each datagram is expected to hold whole packets.
func (r *Responder) ServePacketConn(ctx context.Context, pc net.PacketConn) error {
	stop := context.AfterFunc(ctx, func() { pc.Close() })
	defer stop()

	decoder := wire.NewDecoder()
	buf := make([]byte, 2*wire.MaxPacketSize+2)
	for {
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		decoder.Reset()
		packets, err := decoder.Decode(buf[:n])
		if err != nil {
			r.logger.Printf("responder: decode from %s: %v", from, err)
		}
		for _, p := range packets {
			reply := r.Handle(p)
			if reply == nil {
				continue
			}
			if _, err := pc.WriteTo(reply, from); err != nil {
				r.logger.Printf("responder: write to %s: %v", from, err)
				continue
			}
			r.replies.Add(1)
		}
	}
}

// ServeConn answers packets on a stream connection until ctx is done or the
// connection closes.
func (r *Responder) ServeConn(ctx context.Context, conn Connection) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	decoder := wire.NewDecoder()
	buf := make([]byte, 1024)
	for {
		n, err := conn.Read(buf)
		for _, b := range buf[:n] {
			p, derr := decoder.DecodeByte(b)
			if derr != nil {
				r.logger.Printf("responder: decode: %v", derr)
				continue
			}
			if p == nil {
				continue
			}
			if reply := r.Handle(p); reply != nil {
				if _, werr := conn.Write(reply); werr != nil {
					return werr
				}
				r.replies.Add(1)
			}
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return err
		}
	}
}

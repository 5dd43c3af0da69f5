// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package link

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
)

func waitFresh(t *testing.T, l *Link) wire.TelemetryFrame {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f, ok := l.LastReceived(); ok {
			return f
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for telemetry")
	return wire.TelemetryFrame{}
}

func sampleCommand(seq uint32) *wire.CommandFrame {
	f := &wire.CommandFrame{Seq: seq, Active: wire.AllAxesMask}
	for i := range f.Axes {
		f.Axes[i] = wire.AxisCommand{
			Mode:  wire.ModeMIT,
			Flags: wire.FlagEnable,
			Q:     int16(i * 100),
			DQ:    int16(-i),
			Tau:   int16(i * 7),
		}
	}
	return f
}

// ============================================================
// UDP target validation
// ============================================================

func TestUDPConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		cfg  UDPConfig
		want error
	}{
		{"valid ipv4", UDPConfig{IP: "192.168.1.10", Port: 2333}, nil},
		{"valid ipv6", UDPConfig{IP: "::1", Port: 2333}, nil},
		{"loopback interface", UDPConfig{IP: "127.0.0.1", Port: 1, Interface: "lo"}, nil},
		{"garbage ip", UDPConfig{IP: "not-an-ip", Port: 2333}, ErrInvalidAddress},
		{"empty ip", UDPConfig{Port: 2333}, ErrInvalidAddress},
		{"unspecified ip", UDPConfig{IP: "0.0.0.0", Port: 2333}, ErrInvalidAddress},
		{"zero port", UDPConfig{IP: "10.0.0.1"}, ErrInvalidPort},
		{"unknown interface", UDPConfig{IP: "10.0.0.1", Port: 2333, Interface: "nosuchnic0"}, ErrUnknownInterface},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.cfg.Interface == "lo" {
				if _, err := net.InterfaceByName("lo"); err != nil {
					t.Skip("no lo interface on this host")
				}
			}
			err := tt.cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDialUDP_RejectsInvalidTarget(t *testing.T) {
	_, err := DialUDP(context.Background(), UDPConfig{IP: "10.0.0.1", Port: 0})
	if !errors.Is(err, ErrInvalidPort) {
		t.Errorf("got %v, want ErrInvalidPort", err)
	}
}

// ============================================================
// Link over UDP loopback
// ============================================================

func startUDPResponder(t *testing.T, cfg ResponderConfig) (*Responder, UDPConfig) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	r := NewResponder(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServePacketConn(ctx, pc)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	port := pc.LocalAddr().(*net.UDPAddr).Port
	return r, UDPConfig{IP: "127.0.0.1", Port: uint16(port)}
}

func TestLink_UDPRoundTrip(t *testing.T) {
	r, target := startUDPResponder(t, DefaultResponderConfig())

	conn, err := DialUDP(context.Background(), target)
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	l := New(conn)
	defer l.Close()

	if _, ok := l.LastReceived(); ok {
		t.Fatal("telemetry reported before any transmit")
	}

	cmd := sampleCommand(42)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.Transmit(ctx, cmd); err != nil {
		t.Fatalf("Transmit: %v", err)
	}

	tel := waitFresh(t, l)
	if tel.Seq != 42 {
		t.Errorf("seq = %d, want 42", tel.Seq)
	}
	if tel.Present != wire.AllAxesMask {
		t.Errorf("present = 0x%08X", tel.Present)
	}
	for i, a := range tel.Axes {
		c := cmd.Axes[i]
		if a.State != wire.AxisEnabled || a.Q != c.Q || a.DQ != c.DQ || a.Tau != c.Tau {
			t.Fatalf("axis %d: telemetry %+v does not echo %+v", i, a, c)
		}
	}

	if _, ok := l.LastReceived(); ok {
		t.Error("same frame reported fresh twice")
	}

	c := l.Counters()
	if c.TxFrames != 1 || c.RxFrames != 1 {
		t.Errorf("counters = %+v", c)
	}
	if r.Commands() != 1 {
		t.Errorf("responder handled %d commands", r.Commands())
	}
}

func TestLink_TransmitAfterClose(t *testing.T) {
	_, target := startUDPResponder(t, DefaultResponderConfig())
	conn, err := DialUDP(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	l := New(conn)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := l.Transmit(context.Background(), sampleCommand(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}

func TestLink_TransmitCancelled(t *testing.T) {
	_, target := startUDPResponder(t, DefaultResponderConfig())
	conn, err := DialUDP(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	l := New(conn)
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Transmit(ctx, sampleCommand(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if n := l.Counters().TxFrames; n != 0 {
		t.Errorf("tx frames = %d", n)
	}
}

// ============================================================
// Link over a stream connection
// ============================================================

func TestLink_StreamRoundTrip(t *testing.T) {
	masterSide, slaveSide := net.Pipe()
	cfg := DefaultResponderConfig()
	cfg.Axes = 0x0000000F
	r := NewResponder(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.ServeConn(ctx, slaveSide) }()

	l := New(masterSide)

	for seq := uint32(1); seq <= 3; seq++ {
		tctx, tcancel := context.WithTimeout(context.Background(), time.Second)
		err := l.Transmit(tctx, sampleCommand(seq))
		tcancel()
		if err != nil {
			t.Fatalf("Transmit %d: %v", seq, err)
		}
		tel := waitFresh(t, l)
		if tel.Seq != seq {
			t.Errorf("seq = %d, want %d", tel.Seq, seq)
		}
		if tel.Present != 0x0000000F {
			t.Errorf("present = 0x%08X, want 0x0000000F", tel.Present)
		}
	}

	l.Close()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("ServeConn: %v", err)
	}
}

func TestLink_CountsCorruptPackets(t *testing.T) {
	masterSide, slaveSide := net.Pipe()
	l := New(masterSide)
	defer l.Close()

	good, err := wire.NewAxisTelemetry(1, &wire.TelemetryFrame{Seq: 9, Present: 1})
	if err != nil {
		t.Fatal(err)
	}
	bad := append([]byte(nil), good...)
	// flip a bit of the length-prefixed address, away from framing bytes
	bad[4] ^= 0x01

	go func() {
		slaveSide.Write(bad)
		slaveSide.Write(good)
	}()

	tel := waitFresh(t, l)
	if tel.Seq != 9 {
		t.Errorf("seq = %d", tel.Seq)
	}
	c := l.Counters()
	if c.CRCErrors+c.DecodeErrors == 0 {
		t.Errorf("corruption not counted: %+v", c)
	}
}

// ============================================================
// Responder
// ============================================================

func decodeOne(t *testing.T, data []byte) *wire.Packet {
	t.Helper()
	packets, err := wire.NewDecoder().Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("expected 1 packet, got %d", len(packets))
	}
	return packets[0]
}

func TestResponder_Handle(t *testing.T) {
	cfg := ResponderConfig{Address: 0x77, Axes: 0x7, Version: 0x0203}
	r := NewResponder(cfg, nil)

	tests := []struct {
		name     string
		request  []byte
		wantType uint8
		wantNone bool
	}{
		{"ping broadcast", wire.NewPingRequest(wire.AddressBroadcast), wire.MsgPingResponse, false},
		{"ping addressed", wire.NewPingRequest(0x77), wire.MsgPingResponse, false},
		{"ping other slave", wire.NewPingRequest(0x78), 0, true},
		{"discovery", wire.NewDiscoveryRequest(wire.AddressBroadcast), wire.MsgDeviceAnnounce, false},
		{"unknown type", wire.MustEncodePacket(0x77, 0x99, nil), wire.MsgErrorInvalidCmd, false},
		{"telemetry ignored", wire.MustEncodePacket(0x77, wire.MsgAxisTelemetry, &wire.TelemetryFrame{}), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := r.Handle(decodeOne(t, tt.request))
			if tt.wantNone {
				if reply != nil {
					t.Errorf("unexpected reply %X", reply)
				}
				return
			}
			p := decodeOne(t, reply)
			if p.Type() != tt.wantType {
				t.Errorf("reply type 0x%02X, want 0x%02X", p.Type(), tt.wantType)
			}
			if p.Address() != 0x77 {
				t.Errorf("reply address 0x%X", p.Address())
			}
		})
	}
}

func TestResponder_Announce(t *testing.T) {
	r := NewResponder(ResponderConfig{Address: 5, Axes: 0x0000FFFF, Version: 0x0104}, nil)
	p := decodeOne(t, r.Handle(decodeOne(t, wire.NewDiscoveryRequest(wire.AddressBroadcast))))

	m, err := p.PayloadMap()
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := wire.GetMapUint(m, 0); n != 16 {
		t.Errorf("axis count = %d, want 16", n)
	}
	if v, _ := wire.GetMapUint(m, 1); v != 0x0104 {
		t.Errorf("version = 0x%X", v)
	}
}

func TestResponder_SilentAxes(t *testing.T) {
	r := NewResponder(DefaultResponderConfig(), nil)
	r.SetSilent(1<<3 | 1<<29)

	data, err := wire.NewAxisCommand(wire.AddressBroadcast, sampleCommand(1))
	if err != nil {
		t.Fatal(err)
	}
	tel, err := decodeOne(t, r.Handle(decodeOne(t, data))).TelemetryFrame()
	if err != nil {
		t.Fatal(err)
	}
	if tel.IsPresent(3) || tel.IsPresent(29) || !tel.IsPresent(4) {
		t.Errorf("present = 0x%08X", tel.Present)
	}

	r.SetSilent(0)
	tel, _ = decodeOne(t, r.Handle(decodeOne(t, data))).TelemetryFrame()
	if tel.Present != wire.AllAxesMask {
		t.Errorf("present after unsilence = 0x%08X", tel.Present)
	}
}

func TestResponder_InactiveSlotsNotReported(t *testing.T) {
	r := NewResponder(DefaultResponderConfig(), nil)
	cmd := sampleCommand(1)
	cmd.Active = wire.AllAxesMask &^ 1

	data, _ := wire.NewAxisCommand(wire.AddressBroadcast, cmd)
	tel, err := decodeOne(t, r.Handle(decodeOne(t, data))).TelemetryFrame()
	if err != nil {
		t.Fatal(err)
	}
	if tel.IsPresent(0) {
		t.Error("inactive slot reported")
	}
	if tel.Axes[0] != (wire.AxisTelemetry{}) {
		t.Errorf("inactive slot carries data: %+v", tel.Axes[0])
	}
}

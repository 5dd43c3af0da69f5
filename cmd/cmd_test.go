// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/axis"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/master"
	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		ms   uint64
		want string
	}{
		{0, "0 seconds"},
		{999, "0 seconds"},
		{1000, "1 second"},
		{59000, "59 seconds"},
		{60000, "1 minute"},
		{61000, "1 minute and 1 second"},
		{3600000, "1 hour"},
		{3723000, "1 hour, 2 minutes, and 3 seconds"},
		{2*86400000 + 5000, "2 days and 5 seconds"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.ms); got != tt.want {
			t.Errorf("formatUptime(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestNewStatePayload_SanitizesNonFinite(t *testing.T) {
	var st axis.StateFrame
	st.Motors[0] = axis.MotorTelemetry{State: axis.Enabled, Q: 1.5, DQ: float32(math.NaN()), DDQ: float32(math.Inf(1))}
	st.Motors[1] = axis.MotorTelemetry{State: axis.Disabled, TauEst: float32(math.Inf(-1)), QRaw: -2}

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	p := newStatePayload(st, master.Statistics{Cycles: 42, Missed: 3}, now)

	if p.Cycles != 42 || p.Missed != 3 || !p.Timestamp.Equal(now) {
		t.Errorf("header = %d/%d/%v", p.Cycles, p.Missed, p.Timestamp)
	}
	if p.Motors[0].Q != 1.5 || p.Motors[0].DQ != 0 || p.Motors[0].DDQ != 0 {
		t.Errorf("motor 0 = %+v", p.Motors[0])
	}
	if p.Motors[1].TauEst != 0 || p.Motors[1].QRaw != -2 {
		t.Errorf("motor 1 = %+v", p.Motors[1])
	}
	// The source frame is untouched
	if !math.IsNaN(float64(st.Motors[0].DQ)) {
		t.Errorf("source frame modified")
	}

	if _, err := json.Marshal(p); err != nil {
		t.Errorf("json.Marshal() error = %v", err)
	}
}

func TestMonitorRows(t *testing.T) {
	servo := axis.DefaultServoConfig()
	servo.Axes[2].Virtual = true

	var st axis.StateFrame
	st.Motors[1] = axis.MotorTelemetry{State: axis.Enabled, Mode: axis.ModeMIT, Q: 0.25, BusVoltage: 48, Version: 0x0102}
	st.Motors[2] = axis.MotorTelemetry{State: axis.Disabled, IsVirtual: true}

	rows := monitorRows(&st, &servo)
	if len(rows) != axis.MaxAxes {
		t.Fatalf("len(rows) = %d, want %d", len(rows), axis.MaxAxes)
	}
	for i, row := range rows {
		if len(row) != len(monitorColumns) {
			t.Fatalf("row %d has %d cells, want %d", i, len(row), len(monitorColumns))
		}
	}

	if rows[0][1] != "OFFLINE" || rows[0][3] != "-" {
		t.Errorf("offline row = %v", rows[0])
	}
	if rows[1][0] != "1" || rows[1][1] != "ENABLED" || rows[1][3] != "+0.2500" || rows[1][9] != "1.2" {
		t.Errorf("enabled row = %v", rows[1])
	}
	if rows[2][0] != "2v" {
		t.Errorf("virtual label = %q, want \"2v\"", rows[2][0])
	}
}

func TestParseDiscoveryAnnounce(t *testing.T) {
	tests := []struct {
		name    string
		address uint64
		axes    uint8
		version uint16
		end     bool
	}{
		{"slave", 0x0000000000000007, 12, 0x0203, false},
		{"end marker", wire.AddressBroadcast, 0, 0, true},
		{"slave without axes", 0x0000000000000008, 0, 0x0100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packets, err := wire.NewDecoder().Decode(wire.NewDeviceAnnounce(tt.address, tt.axes, tt.version))
			if err != nil || len(packets) != 1 {
				t.Fatalf("Decode() = %d packets, %v", len(packets), err)
			}

			d, err := parseDiscoveryAnnounce(packets[0])
			if err != nil {
				t.Fatalf("parseDiscoveryAnnounce() error = %v", err)
			}
			if d.address != tt.address || d.axisCount != uint64(tt.axes) || d.version != uint64(tt.version) {
				t.Errorf("device = %+v", d)
			}
			if d.isEndMarker() != tt.end {
				t.Errorf("isEndMarker() = %v, want %v", d.isEndMarker(), tt.end)
			}
		})
	}
}

func TestParseMsgType(t *testing.T) {
	tests := []struct {
		in      string
		want    uint8
		wantErr bool
	}{
		{"0x31", wire.MsgAxisTelemetry, false},
		{"0X3F", wire.MsgPingResponse, false},
		{"33", wire.MsgAxisCommand, false},
		{" 0xE0 ", wire.MsgErrorInvalidCmd, false},
		{"0x100", 0, true},
		{"telemetry", 0, true},
		{"-1", 0, true},
	}

	for _, tt := range tests {
		got, err := parseMsgType(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMsgType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMsgType(%q) = 0x%02X, want 0x%02X", tt.in, got, tt.want)
		}
	}
}

func TestPacketFilter(t *testing.T) {
	var tel wire.TelemetryFrame
	tel.Present = 0b111
	for i := 0; i < 3; i++ {
		tel.Axes[i] = wire.AxisTelemetry{State: wire.AxisEnabled, Q: int16(100 + i), BusVoltage: 48}
	}
	data, err := wire.NewAxisTelemetry(0x0000000000000005, &tel)
	if err != nil {
		t.Fatalf("NewAxisTelemetry: %v", err)
	}
	raw := append(data, wire.NewPingResponse(0x0000000000000006, 1500)...)
	packets, err := wire.NewDecoder().Decode(raw)
	if err != nil || len(packets) != 2 {
		t.Fatalf("Decode() = %d packets, %v", len(packets), err)
	}
	telemetry, ping := packets[0], packets[1]

	tests := []struct {
		name      string
		filter    packetFilter
		telemetry bool
		ping      bool
	}{
		{"all", packetFilter{axes: wire.AllAxesMask}, true, true},
		{"type", packetFilter{msgType: wire.MsgPingResponse, hasType: true}, false, true},
		{"address", packetFilter{address: 5, hasAddress: true}, true, false},
		{"type and address", packetFilter{msgType: wire.MsgPingResponse, hasType: true, address: 5, hasAddress: true}, false, false},
	}
	for _, tt := range tests {
		if got := tt.filter.match(telemetry); got != tt.telemetry {
			t.Errorf("%s: match(telemetry) = %v, want %v", tt.name, got, tt.telemetry)
		}
		if got := tt.filter.match(ping); got != tt.ping {
			t.Errorf("%s: match(ping) = %v, want %v", tt.name, got, tt.ping)
		}
	}

	out := packetFilter{axes: 0b010}.render(telemetry)
	if !strings.Contains(out, "AXIS_TELEMETRY") || !strings.Contains(out, "Present: 0x00000002") {
		t.Errorf("render header:\n%s", out)
	}
	if !strings.Contains(out, "Axis  1:") || strings.Contains(out, "Axis  0:") || strings.Contains(out, "Axis  2:") {
		t.Errorf("render listed the wrong axes:\n%s", out)
	}
	if out := (packetFilter{}).render(ping); !strings.Contains(out, "Uptime: 1500 ms") {
		t.Errorf("render(ping):\n%s", out)
	}
}

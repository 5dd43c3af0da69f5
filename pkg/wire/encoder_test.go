// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import (
	"bytes"
	"strings"
	"testing"
)

func sampleCommandFrame() CommandFrame {
	f := CommandFrame{Seq: 77, Active: 0x3FFFFFFE}
	for i := range f.Axes {
		f.Axes[i] = AxisCommand{
			Mode:  ModeMIT,
			Flags: FlagEnable,
			Q:     int16(i*1000 - 15000),
			DQ:    int16(-i * 3),
			Tau:   int16(i),
			KP:    FullScale,
			KD:    -FullScale,
		}
	}
	f.Axes[5].Flags = FlagReset | FlagHome
	return f
}

func sampleTelemetryFrame() TelemetryFrame {
	f := TelemetryFrame{Seq: 9, Present: AllAxesMask}
	for i := range f.Axes {
		f.Axes[i] = AxisTelemetry{
			State:      AxisEnabled,
			Mode:       ModeMIT,
			Q:          int16(-i * 900),
			DQ:         int16(i * 11),
			Tau:        int16(i - 15),
			DDQ:        EncodeHalf(float32(i) * 0.5),
			MCUTemp:    uint8(30 + i),
			MOSTemp:    uint8(35 + i),
			MotorTemp:  uint8(40 + i),
			BusVoltage: 48,
			ErrorCode:  uint16(i << 4),
			Version:    0x0102,
		}
	}
	return f
}

func TestEncodePacket_CommandFrameRoundTrip(t *testing.T) {
	want := sampleCommandFrame()
	data, err := NewAxisCommand(0x0102030405060708, &want)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if len(data) > 2*MaxPacketSize+2 {
		t.Fatalf("packet unexpectedly large: %d bytes", len(data))
	}

	packets := decodeAll(t, data)
	if len(packets) != 1 {
		t.Fatalf("Expected 1 packet, got %d", len(packets))
	}
	if packets[0].Type() != MsgAxisCommand {
		t.Fatalf("Expected AXIS_COMMAND, got 0x%02X", packets[0].Type())
	}
	got, err := packets[0].CommandFrame()
	if err != nil {
		t.Fatalf("CommandFrame error: %v", err)
	}
	if got != want {
		t.Errorf("frame mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestEncodePacket_TelemetryFrameRoundTrip(t *testing.T) {
	want := sampleTelemetryFrame()
	data, err := NewAxisTelemetry(AddressStateless, &want)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	packets := decodeAll(t, data)
	if len(packets) != 1 {
		t.Fatalf("Expected 1 packet, got %d", len(packets))
	}
	if !packets[0].IsStateless() {
		t.Error("Expected stateless address")
	}
	got, err := packets[0].TelemetryFrame()
	if err != nil {
		t.Fatalf("TelemetryFrame error: %v", err)
	}
	if got != want {
		t.Errorf("frame mismatch:\n got %+v\nwant %+v", got, want)
	}
	if errs := ValidatePacket(packets[0]); len(errs) != 0 {
		t.Errorf("Expected valid telemetry, got %v", errs)
	}
}

func TestEncodePacket_FitsPayloadLimit(t *testing.T) {
	// worst case values take the widest CBOR integer encodings
	cmd := CommandFrame{Seq: 0xFFFFFFFF, Active: AllAxesMask}
	for i := range cmd.Axes {
		cmd.Axes[i] = AxisCommand{Mode: 255, Flags: 255, Q: -FullScale, DQ: -FullScale, Tau: -FullScale, KP: -FullScale, KD: -FullScale}
	}
	if _, err := NewAxisCommand(0, &cmd); err != nil {
		t.Errorf("worst case command frame: %v", err)
	}

	tel := TelemetryFrame{Seq: 0xFFFFFFFF, Present: AllAxesMask}
	for i := range tel.Axes {
		tel.Axes[i] = AxisTelemetry{State: 255, Mode: 255, Q: -FullScale, DQ: -FullScale, Tau: -FullScale, DDQ: 0xFFFF,
			MCUTemp: 255, MOSTemp: 255, MotorTemp: 255, BusVoltage: 255, ErrorCode: 0xFFFF, Version: 0xFFFF}
	}
	if _, err := NewAxisTelemetry(0, &tel); err != nil {
		t.Errorf("worst case telemetry frame: %v", err)
	}
}

func TestEncodePacket_TooLarge(t *testing.T) {
	_, err := EncodePacketFromValues(0, MsgPingResponse, map[int]interface{}{0: strings.Repeat("x", MaxPayloadSize)})
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected payload too large error, got %v", err)
	}
}

func TestEncoder_ReusesBuffer(t *testing.T) {
	enc := NewEncoder()
	first, err := enc.Encode(1, MsgPingRequest, nil)
	if err != nil {
		t.Fatal(err)
	}
	firstCopy := append([]byte{}, first...)

	second, err := enc.Encode(1, MsgPingRequest, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(firstCopy, second) {
		t.Error("identical inputs should encode identically")
	}
}

func TestMessageBuilders(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		msgType uint8
		check   func(t *testing.T, m map[int]interface{})
	}{
		{"ping request", NewPingRequest(3), MsgPingRequest, nil},
		{"discovery", NewDiscoveryRequest(AddressBroadcast), MsgDiscoveryRequest, nil},
		{"ping response", NewPingResponse(3, 123456), MsgPingResponse, func(t *testing.T, m map[int]interface{}) {
			if v, _ := GetMapUint(m, 0); v != 123456 {
				t.Errorf("uptime = %d", v)
			}
		}},
		{"announce", NewDeviceAnnounce(3, 28, 0x0203), MsgDeviceAnnounce, func(t *testing.T, m map[int]interface{}) {
			axes, _ := GetMapUint(m, 0)
			version, _ := GetMapUint(m, 1)
			if axes != 28 || version != 0x0203 {
				t.Errorf("announce = %d axes, version %d", axes, version)
			}
		}},
		{"invalid command", NewInvalidCommand(3, 0x55), MsgErrorInvalidCmd, func(t *testing.T, m map[int]interface{}) {
			if v, _ := GetMapUint(m, 0); v != 0x55 {
				t.Errorf("rejected = 0x%02X", v)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packets := decodeAll(t, tt.data)
			if len(packets) != 1 {
				t.Fatalf("Expected 1 packet, got %d", len(packets))
			}
			if packets[0].Type() != tt.msgType {
				t.Fatalf("type = 0x%02X, want 0x%02X", packets[0].Type(), tt.msgType)
			}
			m, err := packets[0].PayloadMap()
			if err != nil {
				t.Fatal(err)
			}
			if tt.check != nil {
				tt.check(t, m)
			}
			if out := FormatPacket(packets[0]); !strings.Contains(out, FormatMessageType(tt.msgType)) {
				t.Errorf("formatted packet missing type name: %q", out)
			}
		})
	}
}

func TestPacket_WrongBodyType(t *testing.T) {
	packets := decodeAll(t, NewPingRequest(0))
	if _, err := packets[0].CommandFrame(); err == nil {
		t.Error("Expected error decoding PING_REQUEST as command frame")
	}
}

func TestUnstuffBytes(t *testing.T) {
	raw := []byte{0x01, StartByte, 0x02, EndByte, EscByte, 0x03}
	stuffed := appendStuffed(nil, raw)
	if len(stuffed) != len(raw)+3 {
		t.Fatalf("Expected 3 escapes, got %d bytes", len(stuffed))
	}
	got, err := UnstuffBytes(stuffed)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("got %X, want %X", got, raw)
	}

	if _, err := UnstuffBytes([]byte{0x01, EscByte}); err == nil {
		t.Error("Expected error for dangling escape")
	}
}

func TestFormatTelemetryFrame(t *testing.T) {
	f := sampleTelemetryFrame()
	f.Present = 1 << 4
	out := FormatTelemetryFrame(&f)
	if !strings.Contains(out, "Axis  4: ENABLED") {
		t.Errorf("unexpected output: %q", out)
	}
	if strings.Contains(out, "Axis  3") {
		t.Errorf("absent axis rendered: %q", out)
	}
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import (
	"fmt"
	"strings"
)

// FormatPacket formats a packet into a human-readable string
func FormatPacket(p *Packet) string {
	timestamp := p.timestamp.Format("15:04:05.000")
	msgType := FormatMessageType(p.Type())

	result := fmt.Sprintf("[%s] %s (0x%02X) addr=%016X len=%d\n", timestamp, msgType, p.Type(), p.address, p.length)
	if err := p.ParseError(); err != nil {
		return result + fmt.Sprintf("  Parse error: %v\n", err)
	}

	switch p.Type() {
	case MsgAxisCommand:
		frame, err := p.CommandFrame()
		if err != nil {
			return result + fmt.Sprintf("  Body error: %v\n", err)
		}
		return result + FormatCommandFrame(&frame)
	case MsgAxisTelemetry:
		frame, err := p.TelemetryFrame()
		if err != nil {
			return result + fmt.Sprintf("  Body error: %v\n", err)
		}
		return result + FormatTelemetryFrame(&frame)
	}

	payloadMap, err := p.PayloadMap()
	if err != nil {
		return result + fmt.Sprintf("  Body error: %v\n", err)
	}
	return result + FormatPayloadMap(p.Type(), payloadMap)
}

// FormatMessageType returns the human-readable name for a message type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgDiscoveryRequest:
		return "DISCOVERY_REQUEST"
	case MsgAxisCommand:
		return "AXIS_COMMAND"
	case MsgPingRequest:
		return "PING_REQUEST"
	case MsgAxisTelemetry:
		return "AXIS_TELEMETRY"
	case MsgDeviceAnnounce:
		return "DEVICE_ANNOUNCE"
	case MsgPingResponse:
		return "PING_RESPONSE"
	case MsgErrorInvalidCmd:
		return "ERROR_INVALID_CMD"
	default:
		return "UNKNOWN"
	}
}

// FormatAxisState returns the human-readable name for an axis state
func FormatAxisState(s AxisState) string {
	switch s {
	case AxisOffline:
		return "OFFLINE"
	case AxisFault:
		return "FAULT"
	case AxisDisabled:
		return "DISABLED"
	case AxisEnabled:
		return "ENABLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// FormatFlags renders command flag bits
func FormatFlags(flags uint8) string {
	if flags == 0 {
		return "-"
	}
	var names []string
	if flags&FlagEnable != 0 {
		names = append(names, "EN")
	}
	if flags&FlagReset != 0 {
		names = append(names, "RST")
	}
	if flags&FlagCalibrate != 0 {
		names = append(names, "CAL")
	}
	if flags&FlagHome != 0 {
		names = append(names, "HOME")
	}
	return strings.Join(names, "|")
}

// FormatCommandFrame lists the active slots of a command frame
func FormatCommandFrame(f *CommandFrame) string {
	var s strings.Builder
	fmt.Fprintf(&s, "  Seq: %d, Active: 0x%08X\n", f.Seq, f.Active)
	for i := range f.Axes {
		if !f.IsActive(i) {
			continue
		}
		c := &f.Axes[i]
		fmt.Fprintf(&s, "    Axis %2d: mode=%d flags=%s q=%d dq=%d tau=%d kp=%d kd=%d\n",
			i, c.Mode, FormatFlags(c.Flags), c.Q, c.DQ, c.Tau, c.KP, c.KD)
	}
	return s.String()
}

// FormatTelemetryFrame lists the present slots of a telemetry frame
func FormatTelemetryFrame(f *TelemetryFrame) string {
	var s strings.Builder
	fmt.Fprintf(&s, "  Seq: %d, Present: 0x%08X\n", f.Seq, f.Present)
	for i := range f.Axes {
		if !f.IsPresent(i) {
			continue
		}
		a := &f.Axes[i]
		fmt.Fprintf(&s, "    Axis %2d: %s mode=%d q=%d dq=%d tau=%d ddq=%.3f temp=%d/%d/%d°C bus=%dV err=0x%04X fw=%d\n",
			i, FormatAxisState(a.State), a.Mode, a.Q, a.DQ, a.Tau, DecodeHalf(a.DDQ),
			a.MCUTemp, a.MOSTemp, a.MotorTemp, a.BusVoltage, a.ErrorCode, a.Version)
	}
	return s.String()
}

// FormatPayloadMap formats map-bodied messages
func FormatPayloadMap(msgType uint8, payload map[int]interface{}) string {
	switch msgType {
	case MsgPingRequest, MsgDiscoveryRequest:
		return "  (no payload)\n"

	case MsgPingResponse:
		if uptime, ok := GetMapUint(payload, 0); ok {
			return fmt.Sprintf("  Uptime: %d ms (%.2f sec)\n", uptime, float64(uptime)/1000.0)
		}

	case MsgDeviceAnnounce:
		axes, _ := GetMapUint(payload, 0)
		version, _ := GetMapUint(payload, 1)
		return fmt.Sprintf("  Axes: %d, Firmware: %d\n", axes, version)

	case MsgErrorInvalidCmd:
		if rejected, ok := GetMapUint(payload, 0); ok {
			return fmt.Sprintf("  Rejected: %s (0x%02X)\n", FormatMessageType(uint8(rejected)), rejected)
		}
	}

	if payload == nil {
		return "  (no payload)\n"
	}
	return fmt.Sprintf("  Payload: %v\n", payload)
}

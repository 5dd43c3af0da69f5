// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

// Builders for the fixed message set. Each returns a framed packet ready to be
// written to a connection.

// NewAxisCommand frames an AXIS_COMMAND packet (0x21).
func NewAxisCommand(address uint64, frame *CommandFrame) ([]byte, error) {
	return EncodePacketFromValues(address, MsgAxisCommand, frame)
}

// NewAxisTelemetry frames an AXIS_TELEMETRY packet (0x31).
func NewAxisTelemetry(address uint64, frame *TelemetryFrame) ([]byte, error) {
	return EncodePacketFromValues(address, MsgAxisTelemetry, frame)
}

// NewPingRequest frames a PING_REQUEST packet (0x2F).
// Slaves respond with PING_RESPONSE containing uptime.
func NewPingRequest(address uint64) []byte {
	return MustEncodePacket(address, MsgPingRequest, nil)
}

// NewPingResponse frames a PING_RESPONSE packet (0x3F) carrying the uptime in
// milliseconds under key 0.
func NewPingResponse(address uint64, uptimeMs uint64) []byte {
	return MustEncodePacket(address, MsgPingResponse, map[int]interface{}{
		0: uptimeMs,
	})
}

// NewDiscoveryRequest frames a DISCOVERY_REQUEST packet (0x1F).
// Slaves answer with DEVICE_ANNOUNCE.
func NewDiscoveryRequest(address uint64) []byte {
	return MustEncodePacket(address, MsgDiscoveryRequest, nil)
}

// NewDeviceAnnounce frames a DEVICE_ANNOUNCE packet (0x35).
// Key 0 is the number of physical axes served, key 1 the firmware version.
func NewDeviceAnnounce(address uint64, axisCount uint8, version uint16) []byte {
	return MustEncodePacket(address, MsgDeviceAnnounce, map[int]interface{}{
		0: uint64(axisCount),
		1: uint64(version),
	})
}

// NewInvalidCommand frames an ERROR_INVALID_CMD packet (0xE0) naming the
// rejected message type.
func NewInvalidCommand(address uint64, msgType uint8) []byte {
	return MustEncodePacket(address, MsgErrorInvalidCmd, map[int]interface{}{
		0: uint64(msgType),
	})
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

// Package wire implements the master/slave frame protocol spoken on the servo
// link.
//
// A packet on the wire is:
//
//	START | stuffed(len_lo len_hi | address[8] | CBOR payload | crc_hi crc_lo) | END
//
// The length and address are little-endian, the CRC-16-CCITT trailer is
// big-endian and covers the unstuffed length, address and payload. The CBOR
// payload is always a two element array [msg_type, body].
//
// Axis quantities travel as signed 16-bit values scaled so that the
// configured engineering bound maps to FullScale. Acceleration has no
// configured bound and travels as an IEEE-754 half precision float.
package wire

// Protocol framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// Packet size limits
const (
	MaxPayloadSize = 1400 // one datagram on a 1500 byte MTU
	LengthSize     = 2
	AddressSize    = 8
	CRCSize        = 2
	MaxPacketSize  = LengthSize + AddressSize + MaxPayloadSize + CRCSize
)

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// Special addresses
const (
	AddressBroadcast = 0x0000000000000000 // All slaves
	AddressStateless = 0xFFFFFFFFFFFFFFFF // Bridges and routers
)

// MaxAxes is the number of axis slots carried by every frame.
const MaxAxes = 30

// FullScale is the wire value that represents the configured maximum of a
// quantity. The range is symmetric: -FullScale represents -max.
const FullScale = 32767

// Message types - Discovery (Master → Slave) 0x10-0x1F
const (
	MsgDiscoveryRequest = 0x1F
)

// Message types - Control (Master → Slave) 0x20-0x2F
const (
	MsgAxisCommand = 0x21
	MsgPingRequest = 0x2F
)

// Message types - Telemetry (Slave → Master) 0x30-0x3F
const (
	MsgAxisTelemetry  = 0x31
	MsgDeviceAnnounce = 0x35
	MsgPingResponse   = 0x3F
)

// Message types - Errors (Bidirectional) 0xE0-0xEF
const (
	MsgErrorInvalidCmd = 0xE0
)

// Decoder states (internal)
const (
	stateIdle = iota
	stateLength1
	stateLength2
	stateAddress
	statePayload
	stateCRC1
	stateCRC2
)

// Command flag bits carried in AxisCommand.Flags
const (
	FlagEnable    uint8 = 1 << 0
	FlagReset     uint8 = 1 << 1
	FlagCalibrate uint8 = 1 << 2
	FlagHome      uint8 = 1 << 3
)

// AxisState is the slave-reported state of one axis.
type AxisState uint8

// Axis state values
const (
	AxisOffline  AxisState = 0
	AxisFault    AxisState = 1
	AxisDisabled AxisState = 2
	AxisEnabled  AxisState = 3
)

// ModeMIT selects combined position/velocity/torque/gain control.
const ModeMIT = 11

// Telemetry sanity limits used by the validator
const (
	maxTemperature = 120 // °C
)

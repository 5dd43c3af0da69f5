// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import (
	"fmt"
	"time"
)

// Packet is a decoded frame. The CBOR payload is parsed lazily.
type Packet struct {
	length      uint16
	address     uint64
	cborPayload []byte // [msg_type, body]
	crc         uint16
	timestamp   time.Time

	msgType  uint8
	body     []byte // raw CBOR of the body element
	parsed   bool
	parseErr error
}

// NewPacket creates a packet from already-decoded fields
func NewPacket(address uint64, cborPayload []byte, crc uint16) *Packet {
	return &Packet{
		length:      uint16(len(cborPayload)),
		address:     address,
		cborPayload: cborPayload,
		crc:         crc,
		timestamp:   time.Now(),
	}
}

func (p *Packet) ensureParsed() {
	if p.parsed {
		return
	}
	p.parsed = true
	if len(p.cborPayload) == 0 {
		p.parseErr = fmt.Errorf("empty CBOR payload")
		return
	}
	p.msgType, p.body, p.parseErr = splitMessage(p.cborPayload)
}

// Length returns the CBOR payload length
func (p *Packet) Length() uint16 {
	return p.length
}

// Address returns the 64-bit slave address
func (p *Packet) Address() uint64 {
	return p.address
}

// Type returns the message type
func (p *Packet) Type() uint8 {
	p.ensureParsed()
	return p.msgType
}

// Payload returns the raw CBOR payload bytes
func (p *Packet) Payload() []byte {
	return p.cborPayload
}

// ParseError returns any error from splitting the CBOR payload
func (p *Packet) ParseError() error {
	p.ensureParsed()
	return p.parseErr
}

// CRC returns the packet's CRC value
func (p *Packet) CRC() uint16 {
	return p.crc
}

// Timestamp returns the decode timestamp
func (p *Packet) Timestamp() time.Time {
	return p.timestamp
}

// IsBroadcast returns true if the packet is addressed to all slaves
func (p *Packet) IsBroadcast() bool {
	return p.address == AddressBroadcast
}

// IsStateless returns true if the packet uses the stateless address
func (p *Packet) IsStateless() bool {
	return p.address == AddressStateless
}

// PayloadMap decodes the body as an integer-keyed map. Nil bodies yield nil.
func (p *Packet) PayloadMap() (map[int]interface{}, error) {
	p.ensureParsed()
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	return decodeBodyMap(p.body)
}

// CommandFrame decodes the body of an AXIS_COMMAND packet.
func (p *Packet) CommandFrame() (CommandFrame, error) {
	var f CommandFrame
	if err := p.decodeBody(MsgAxisCommand, &f); err != nil {
		return CommandFrame{}, err
	}
	return f, nil
}

// TelemetryFrame decodes the body of an AXIS_TELEMETRY packet.
func (p *Packet) TelemetryFrame() (TelemetryFrame, error) {
	var f TelemetryFrame
	if err := p.decodeBody(MsgAxisTelemetry, &f); err != nil {
		return TelemetryFrame{}, err
	}
	return f, nil
}

func (p *Packet) decodeBody(want uint8, v interface{}) error {
	p.ensureParsed()
	if p.parseErr != nil {
		return p.parseErr
	}
	if p.msgType != want {
		return fmt.Errorf("message type 0x%02X is not %s", p.msgType, FormatMessageType(want))
	}
	return decodeBody(p.body, v)
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import (
	"errors"
	"fmt"
	"time"
)

// ErrCRCMismatch is wrapped by the error returned for a packet whose trailer
// does not match its contents.
var ErrCRCMismatch = errors.New("CRC mismatch")

// stateEnd waits for the END byte after both CRC bytes
const stateEnd = stateCRC2 + 1

// Decoder implements the packet decoder state machine
type Decoder struct {
	state        int
	buffer       [MaxPacketSize]byte
	bufferIndex  int
	escapeNext   bool
	length       uint16
	address      uint64
	addressBytes int
	crc          uint16
	rawBuffer    []byte // raw bytes including framing, for diagnostics
}

// NewDecoder creates a new protocol decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:     stateIdle,
		rawBuffer: make([]byte, 0, 2*MaxPacketSize+2),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.bufferIndex = 0
	d.escapeNext = false
	d.length = 0
	d.address = 0
	d.addressBytes = 0
	d.crc = 0
	d.rawBuffer = d.rawBuffer[:0]
}

// GetRawBytes returns the raw bytes accumulated since the last START byte
func (d *Decoder) GetRawBytes() []byte {
	return d.rawBuffer
}

// Decode feeds a chunk of bytes and returns every packet completed by it.
// Decode errors do not stop processing; the first one is returned.
func (d *Decoder) Decode(data []byte) ([]*Packet, error) {
	var packets []*Packet
	var firstErr error
	for _, b := range data {
		packet, err := d.DecodeByte(b)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if packet != nil {
			packets = append(packets, packet)
		}
	}
	return packets, firstErr
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns a completed packet, or nil if the packet is incomplete.
// Returns an error if decoding fails.
func (d *Decoder) DecodeByte(b byte) (*Packet, error) {
	if len(d.rawBuffer) < cap(d.rawBuffer) {
		d.rawBuffer = append(d.rawBuffer, b)
	}

	if d.escapeNext {
		d.escapeNext = false
		return d.consume(b ^ EscXor)
	}

	switch b {
	case EscByte:
		if d.state != stateIdle {
			d.escapeNext = true
		}
		return nil, nil

	case StartByte:
		d.Reset()
		d.rawBuffer = append(d.rawBuffer, b)
		d.state = stateLength1
		return nil, nil

	case EndByte:
		if d.state == stateIdle {
			return nil, nil
		}
		if d.state != stateEnd {
			state := d.state
			d.Reset()
			return nil, fmt.Errorf("unexpected END byte in state %d", state)
		}
		return d.finish()
	}

	return d.consume(b)
}

func (d *Decoder) consume(b byte) (*Packet, error) {
	switch d.state {
	case stateIdle:
		// Waiting for START byte
		return nil, nil

	case stateLength1:
		d.length = uint16(b)
		d.push(b)
		d.state = stateLength2

	case stateLength2:
		d.length |= uint16(b) << 8
		if d.length > MaxPayloadSize {
			length := d.length
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", length, MaxPayloadSize)
		}
		d.push(b)
		d.addressBytes = 0
		d.state = stateAddress

	case stateAddress:
		// little-endian
		d.address |= uint64(b) << (d.addressBytes * 8)
		d.push(b)
		d.addressBytes++
		if d.addressBytes == AddressSize {
			if d.length == 0 {
				d.state = stateCRC1
			} else {
				d.state = statePayload
			}
		}

	case statePayload:
		d.push(b)
		if d.bufferIndex == LengthSize+AddressSize+int(d.length) {
			d.state = stateCRC1
		}

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd

	case stateEnd:
		d.Reset()
		return nil, fmt.Errorf("expected END byte, got 0x%02X", b)

	default:
		state := d.state
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", state)
	}
	return nil, nil
}

// push appends an unstuffed byte to the CRC'd section. The length check in
// stateLength2 keeps bufferIndex below MaxPacketSize.
func (d *Decoder) push(b byte) {
	d.buffer[d.bufferIndex] = b
	d.bufferIndex++
}

func (d *Decoder) finish() (*Packet, error) {
	calculated := CalculateCRC(d.buffer[:d.bufferIndex])
	if d.crc != calculated {
		err := fmt.Errorf("%w: expected 0x%04X, got 0x%04X", ErrCRCMismatch, calculated, d.crc)
		d.Reset()
		return nil, err
	}

	payload := make([]byte, d.length)
	copy(payload, d.buffer[LengthSize+AddressSize:d.bufferIndex])

	packet := &Packet{
		length:      d.length,
		address:     d.address,
		cborPayload: payload,
		crc:         d.crc,
		timestamp:   time.Now(),
	}
	d.Reset()
	return packet, nil
}

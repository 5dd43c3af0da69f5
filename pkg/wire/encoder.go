// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import (
	"encoding/binary"
	"fmt"
)

// Encoder encodes packets for transmission. It reuses its scratch buffers,
// so one Encoder must not be shared between goroutines.
type Encoder struct {
	data    []byte
	stuffed []byte
}

// NewEncoder creates a new packet encoder.
func NewEncoder() *Encoder {
	return &Encoder{
		data:    make([]byte, 0, MaxPacketSize),
		stuffed: make([]byte, 0, 2*MaxPacketSize+2),
	}
}

// Encode builds a framed packet. The returned slice is only valid until the
// next call to Encode.
func (e *Encoder) Encode(address uint64, msgType uint8, body interface{}) ([]byte, error) {
	cborPayload, err := encodeCBORPayload(msgType, body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR payload: %w", err)
	}
	if len(cborPayload) > MaxPayloadSize {
		return nil, fmt.Errorf("CBOR payload too large: %d bytes (max %d)", len(cborPayload), MaxPayloadSize)
	}

	// length + address + payload is what gets CRC'd and stuffed
	e.data = e.data[:LengthSize+AddressSize]
	binary.LittleEndian.PutUint16(e.data[0:2], uint16(len(cborPayload)))
	binary.LittleEndian.PutUint64(e.data[2:10], address)
	e.data = append(e.data, cborPayload...)

	crc := CalculateCRC(e.data)
	e.data = append(e.data, byte(crc>>8), byte(crc&0xFF))

	e.stuffed = append(e.stuffed[:0], StartByte)
	e.stuffed = appendStuffed(e.stuffed, e.data)
	e.stuffed = append(e.stuffed, EndByte)
	return e.stuffed, nil
}

// EncodePacketFromValues creates a complete wire-formatted packet in a freshly
// allocated slice.
func EncodePacketFromValues(address uint64, msgType uint8, body interface{}) ([]byte, error) {
	packet, err := NewEncoder().Encode(address, msgType, body)
	if err != nil {
		return nil, err
	}
	return packet, nil
}

// MustEncodePacket is EncodePacketFromValues for bodies known to fit.
// Panics on encoding error.
func MustEncodePacket(address uint64, msgType uint8, body interface{}) []byte {
	data, err := EncodePacketFromValues(address, msgType, body)
	if err != nil {
		panic(fmt.Sprintf("wire: encode error: %v", err))
	}
	return data
}

// appendStuffed escapes START, END and ESC as ESC + (byte XOR EscXor).
func appendStuffed(dst, data []byte) []byte {
	for _, b := range data {
		if b == StartByte || b == EndByte || b == EscByte {
			dst = append(dst, EscByte, b^EscXor)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// UnstuffBytes removes byte stuffing from escaped data.
func UnstuffBytes(data []byte) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		switch {
		case escapeNext:
			result = append(result, b^EscXor)
			escapeNext = false
		case b == EscByte:
			escapeNext = true
		default:
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, fmt.Errorf("incomplete escape sequence at end of data")
	}
	return result, nil
}

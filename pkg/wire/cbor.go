// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborNull is the single-byte CBOR encoding of null
var cborNull = []byte{0xF6}

// splitMessage splits a CBOR message [msg_type, body] into the message type
// and the raw CBOR of the body.
func splitMessage(data []byte) (uint8, []byte, error) {
	var msg []cbor.RawMessage
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return 0, nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	if len(msg) != 2 {
		return 0, nil, fmt.Errorf("expected 2-element array, got %d elements", len(msg))
	}

	var msgType uint64
	if err := cbor.Unmarshal(msg[0], &msgType); err != nil {
		return 0, nil, fmt.Errorf("expected uint for message type: %w", err)
	}
	if msgType > 255 {
		return 0, nil, fmt.Errorf("message type out of range: %d", msgType)
	}
	return uint8(msgType), msg[1], nil
}

// ParseCBORMessage parses a CBOR message [msg_type, payload_map] whose body is
// an integer-keyed map or null.
func ParseCBORMessage(data []byte) (uint8, map[int]interface{}, error) {
	if len(data) == 0 {
		return 0, nil, fmt.Errorf("empty CBOR payload")
	}
	msgType, body, err := splitMessage(data)
	if err != nil {
		return 0, nil, err
	}
	payload, err := decodeBodyMap(body)
	if err != nil {
		return 0, nil, err
	}
	return msgType, payload, nil
}

func decodeBodyMap(body []byte) (map[int]interface{}, error) {
	if len(body) == 0 || bytes.Equal(body, cborNull) {
		return nil, nil
	}

	var raw interface{}
	if err := cbor.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR body: %w", err)
	}

	m, ok := raw.(map[interface{}]interface{})
	if !ok {
		return nil, fmt.Errorf("expected map or nil for payload, got %T", raw)
	}

	payload := make(map[int]interface{}, len(m))
	for key, val := range m {
		switch k := key.(type) {
		case uint64:
			payload[int(k)] = val
		case int64:
			payload[int(k)] = val
		default:
			return nil, fmt.Errorf("expected integer map key, got %T", key)
		}
	}
	return payload, nil
}

func decodeBody(body []byte, v interface{}) error {
	if len(body) == 0 || bytes.Equal(body, cborNull) {
		return fmt.Errorf("missing message body")
	}
	if err := cbor.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode CBOR body: %w", err)
	}
	return nil
}

// encodeCBORPayload creates the CBOR payload [msg_type, body] for a message.
// A nil body or empty map is encoded as null.
func encodeCBORPayload(msgType uint8, body interface{}) ([]byte, error) {
	if m, ok := body.(map[int]interface{}); ok && len(m) == 0 {
		body = nil
	}
	return cbor.Marshal([]interface{}{uint64(msgType), body})
}

// Map value extraction helpers

// GetMapUint extracts a uint64 from a CBOR map by key
func GetMapUint(m map[int]interface{}, key int) (uint64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case uint64:
		return val, true
	case int64:
		if val >= 0 {
			return uint64(val), true
		}
	}
	return 0, false
}

// GetMapInt extracts an int64 from a CBOR map by key
func GetMapInt(m map[int]interface{}, key int) (int64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case uint64:
		return int64(val), true
	}
	return 0, false
}

// GetMapBool extracts a bool from a CBOR map by key
func GetMapBool(m map[int]interface{}, key int) (bool, bool) {
	v, ok := m[key]
	if !ok {
		return false, false
	}
	val, ok := v.(bool)
	return val, ok
}

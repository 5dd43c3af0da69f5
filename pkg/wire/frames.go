// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

// AxisCommand is the quantized command for one axis.
type AxisCommand struct {
	_     struct{} `cbor:",toarray"`
	Mode  uint8
	Flags uint8
	Q     int16
	DQ    int16
	Tau   int16
	KP    int16
	KD    int16
}

// Has reports whether all bits of flag are set.
func (c AxisCommand) Has(flag uint8) bool {
	return c.Flags&flag == flag
}

// CommandFrame carries one command per axis slot. Bit i of Active is set when
// slot i addresses a physical axis; slaves ignore inactive slots.
type CommandFrame struct {
	_      struct{} `cbor:",toarray"`
	Seq    uint32
	Active uint32
	Axes   [MaxAxes]AxisCommand
}

// IsActive reports whether slot i is addressed to a physical axis.
func (f *CommandFrame) IsActive(i int) bool {
	return i >= 0 && i < MaxAxes && f.Active&(1<<uint(i)) != 0
}

// AxisTelemetry is the quantized feedback of one axis. Q, DQ and Tau are
// motor-side values scaled like the command; DDQ is binary16 bits.
type AxisTelemetry struct {
	_          struct{} `cbor:",toarray"`
	State      AxisState
	Mode       uint8
	Q          int16
	DQ         int16
	Tau        int16
	DDQ        uint16
	MCUTemp    uint8
	MOSTemp    uint8
	MotorTemp  uint8
	BusVoltage uint8
	ErrorCode  uint16
	Version    uint16
}

// TelemetryFrame carries feedback for the axes flagged in Present.
type TelemetryFrame struct {
	_       struct{} `cbor:",toarray"`
	Seq     uint32
	Present uint32
	Axes    [MaxAxes]AxisTelemetry
}

// IsPresent reports whether slot i carries feedback.
func (f *TelemetryFrame) IsPresent(i int) bool {
	return i >= 0 && i < MaxAxes && f.Present&(1<<uint(i)) != 0
}

// AllAxesMask has one bit set per axis slot.
const AllAxesMask uint32 = 1<<MaxAxes - 1

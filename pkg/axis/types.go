// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

// Package axis holds the per-axis data model of the servo master and the
// transform between engineering units and the quantized wire representation.
//
// Joint-side values are what the application sees (after the gearbox),
// motor-side values are what the servo drive sees. For an axis with reduction
// ratio r and inversion sign s:
//
//	motor = joint / r * s
//	joint = motor * s * r
package axis

import (
	"fmt"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
)

// MaxAxes is the fixed number of axis slots.
const MaxAxes = wire.MaxAxes

// ModeMIT selects combined position/velocity/torque/gain control.
const ModeMIT = wire.ModeMIT

// Index addresses one axis slot.
type Index int

// Valid reports whether i is within [0, MaxAxes).
func (i Index) Valid() bool {
	return i >= 0 && i < MaxAxes
}

// MotorCommand is the joint-side command for one axis.
type MotorCommand struct {
	Mode uint8   `json:"mode"`
	Q    float32 `json:"q"`   // rad
	DQ   float32 `json:"dq"`  // rad/s
	Tau  float32 `json:"tau"` // Nm
	KP   float32 `json:"kp"`
	KD   float32 `json:"kd"`

	Enable    bool `json:"enable"`
	Reset     bool `json:"reset"`
	Calibrate bool `json:"calibrate"`
	Home      bool `json:"home"`
}

// MotorState is the drive-reported state of an axis.
type MotorState uint8

const (
	Offline  MotorState = MotorState(wire.AxisOffline)
	Fault    MotorState = MotorState(wire.AxisFault)
	Disabled MotorState = MotorState(wire.AxisDisabled)
	Enabled  MotorState = MotorState(wire.AxisEnabled)
)

func (s MotorState) String() string {
	switch s {
	case Offline:
		return "offline"
	case Fault:
		return "fault"
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// stateFromWire maps a drive-reported state. Values the protocol does not
// define are reported as Fault so callers never see an unknown state.
func stateFromWire(s wire.AxisState) MotorState {
	if s > wire.AxisEnabled {
		return Fault
	}
	return MotorState(s)
}

// MotorTelemetry is the feedback of one axis. Q, DQ, DDQ and TauEst are
// joint-side; the Raw fields keep the motor-side values.
type MotorTelemetry struct {
	State  MotorState `json:"state"`
	Mode   uint8      `json:"mode"`
	Q      float32    `json:"q"`
	DQ     float32    `json:"dq"`
	DDQ    float32    `json:"ddq"`
	TauEst float32    `json:"tau_est"`

	QRaw   float32 `json:"q_raw"`
	DQRaw  float32 `json:"dq_raw"`
	DDQRaw float32 `json:"ddq_raw"`

	MCUTemp    uint8 `json:"mcu_temp"`
	MOSTemp    uint8 `json:"mos_temp"`
	MotorTemp  uint8 `json:"motor_temp"`
	BusVoltage uint8 `json:"bus_voltage"`

	IsVirtual bool   `json:"is_virtual"`
	ErrorCode uint16 `json:"error_code"`
	Version   uint16 `json:"version"`
}

// CommandFrame is one snapshot of commands for every axis.
type CommandFrame struct {
	Motors [MaxAxes]MotorCommand `json:"motors"`
}

// StateFrame is one snapshot of telemetry for every axis. The zero value
// reports every axis Offline.
type StateFrame struct {
	Motors [MaxAxes]MotorTelemetry `json:"motors"`
}

// HoldFrame returns a frame commanding every axis to hold q with the given
// gains in MIT mode. Axes are enabled only when enable is set.
func HoldFrame(q []float32, kp, kd float32, enable bool) CommandFrame {
	var f CommandFrame
	for i := range f.Motors {
		m := &f.Motors[i]
		m.Mode = ModeMIT
		m.KP = kp
		m.KD = kd
		m.Enable = enable
		if i < len(q) {
			m.Q = q[i]
		}
	}
	return f
}

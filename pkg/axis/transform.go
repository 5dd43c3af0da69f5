// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package axis

import (
	"fmt"
	"math"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/wire"
)

// Transform converts between joint-side engineering units and wire units for
// every axis. It holds no state beyond its configuration and is safe for
// concurrent use.
type Transform struct {
	profile ConversionProfile
	virtual [MaxAxes]bool
	toMotor [MaxAxes]float64 // sign / ratio
	toJoint [MaxAxes]float64 // sign * ratio
}

// NewTransform validates servo and profile and precomputes per-axis scales.
func NewTransform(servo ServoConfig, profile ConversionProfile) (*Transform, error) {
	if err := servo.Validate(); err != nil {
		return nil, fmt.Errorf("invalid servo config: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversion profile: %w", err)
	}

	t := &Transform{profile: profile}
	for i, a := range servo.Axes {
		t.virtual[i] = a.Virtual
		t.toMotor[i] = a.Sign() / a.Ratio()
		t.toJoint[i] = a.Sign() * a.Ratio()
	}
	return t, nil
}

// Profile returns the conversion bounds in use.
func (t *Transform) Profile() ConversionProfile {
	return t.profile
}

// IsVirtual reports whether axis i has no physical drive.
func (t *Transform) IsVirtual(i Index) bool {
	return i.Valid() && t.virtual[i]
}

// ToWire converts a joint-side command to its quantized motor-side form.
// Out-of-range values saturate. Gains are magnitudes applied at the motor
// and are neither scaled nor sign-flipped. An invalid index yields a zero
// command.
func (t *Transform) ToWire(i Index, cmd MotorCommand) wire.AxisCommand {
	if !i.Valid() {
		return wire.AxisCommand{}
	}
	k := t.toMotor[i]
	p := &t.profile

	var flags uint8
	if cmd.Enable {
		flags |= wire.FlagEnable
	}
	if cmd.Reset {
		flags |= wire.FlagReset
	}
	if cmd.Calibrate {
		flags |= wire.FlagCalibrate
	}
	if cmd.Home {
		flags |= wire.FlagHome
	}

	return wire.AxisCommand{
		Mode:  cmd.Mode,
		Flags: flags,
		Q:     wire.Quantize(float64(cmd.Q)*k, p.MaxPosition),
		DQ:    wire.Quantize(float64(cmd.DQ)*k, p.MaxVelocity),
		Tau:   wire.Quantize(float64(cmd.Tau)*k, p.MaxTorque),
		KP:    wire.Quantize(float64(cmd.KP), p.MaxPositionGain),
		KD:    wire.Quantize(float64(cmd.KD), p.MaxVelocityGain),
	}
}

// FromWire converts quantized telemetry to joint-side units. The Raw fields
// carry the dequantized motor-side values.
func (t *Transform) FromWire(i Index, tel wire.AxisTelemetry) MotorTelemetry {
	if !i.Valid() {
		return MotorTelemetry{}
	}
	k := t.toJoint[i]
	p := &t.profile

	q := wire.Dequantize(tel.Q, p.MaxPosition)
	dq := wire.Dequantize(tel.DQ, p.MaxVelocity)
	tau := wire.Dequantize(tel.Tau, p.MaxTorque)
	ddq := float64(wire.DecodeHalf(tel.DDQ))

	return MotorTelemetry{
		State:      stateFromWire(tel.State),
		Mode:       tel.Mode,
		Q:          float32(q * k),
		DQ:         float32(dq * k),
		DDQ:        float32(ddq * k),
		TauEst:     float32(tau * k),
		QRaw:       float32(q),
		DQRaw:      float32(dq),
		DDQRaw:     float32(ddq),
		MCUTemp:    tel.MCUTemp,
		MOSTemp:    tel.MOSTemp,
		MotorTemp:  tel.MotorTemp,
		BusVoltage: tel.BusVoltage,
		IsVirtual:  t.virtual[i],
		ErrorCode:  tel.ErrorCode,
		Version:    tel.Version,
	}
}

// Echo synthesizes telemetry for an axis without a drive by reflecting the
// command back. The axis reports Enabled while the enable flag is set.
func (t *Transform) Echo(i Index, c wire.AxisCommand) wire.AxisTelemetry {
	state := wire.AxisDisabled
	if c.Has(wire.FlagEnable) {
		state = wire.AxisEnabled
	}
	return wire.AxisTelemetry{
		State: state,
		Mode:  c.Mode,
		Q:     c.Q,
		DQ:    c.DQ,
		Tau:   c.Tau,
	}
}

// Tolerance returns the joint-side resolution of position, velocity and
// torque on axis i: one quantization step scaled by the ratio.
func (t *Transform) Tolerance(i Index) (q, dq, tau float64) {
	if !i.Valid() {
		return 0, 0, 0
	}
	k := math.Abs(t.toJoint[i])
	p := &t.profile
	return wire.Step(p.MaxPosition) * k, wire.Step(p.MaxVelocity) * k, wire.Step(p.MaxTorque) * k
}

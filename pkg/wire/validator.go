// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import "fmt"

// AnomalyType represents different types of packet anomalies
type AnomalyType int

const (
	AnomalyDecodeError AnomalyType = iota
	AnomalyCRCError
	AnomalyInvalidValue
	AnomalyInvalidState
	AnomalyOverTemp
	AnomalyNoBusVoltage
	AnomalyUnknownAxis
)

// ValidationError represents a packet validation failure
type ValidationError struct {
	Type    AnomalyType
	Axis    int // -1 when not axis specific
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePacket validates packet structure and detects anomalies.
// Returns a slice of validation errors (empty if packet is valid).
func ValidatePacket(p *Packet) []ValidationError {
	if err := p.ParseError(); err != nil {
		return []ValidationError{{
			Type:    AnomalyDecodeError,
			Axis:    -1,
			Message: fmt.Sprintf("Payload parse error: %v", err),
		}}
	}

	switch p.Type() {
	case MsgAxisTelemetry:
		frame, err := p.TelemetryFrame()
		if err != nil {
			return []ValidationError{{
				Type:    AnomalyDecodeError,
				Axis:    -1,
				Message: fmt.Sprintf("AXIS_TELEMETRY body: %v", err),
			}}
		}
		return ValidateTelemetry(&frame)
	case MsgAxisCommand:
		frame, err := p.CommandFrame()
		if err != nil {
			return []ValidationError{{
				Type:    AnomalyDecodeError,
				Axis:    -1,
				Message: fmt.Sprintf("AXIS_COMMAND body: %v", err),
			}}
		}
		return validateCommand(&frame)
	}
	return nil
}

// ValidateTelemetry checks a telemetry frame for out-of-range values
func ValidateTelemetry(f *TelemetryFrame) []ValidationError {
	var errors []ValidationError

	if extra := f.Present &^ AllAxesMask; extra != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownAxis,
			Axis:    -1,
			Message: fmt.Sprintf("Present mask 0x%08X flags axes beyond %d", f.Present, MaxAxes-1),
			Details: map[string]interface{}{"present": f.Present},
		})
	}

	for i := range f.Axes {
		if !f.IsPresent(i) {
			continue
		}
		a := &f.Axes[i]

		if a.State > AxisEnabled {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidState,
				Axis:    i,
				Message: fmt.Sprintf("Axis %d: invalid state=%d (max %d)", i, a.State, AxisEnabled),
				Details: map[string]interface{}{"state": a.State},
			})
		}

		for _, t := range []struct {
			name  string
			value uint8
		}{
			{"mcu_temp", a.MCUTemp},
			{"mos_temp", a.MOSTemp},
			{"motor_temp", a.MotorTemp},
		} {
			if t.value > maxTemperature {
				errors = append(errors, ValidationError{
					Type:    AnomalyOverTemp,
					Axis:    i,
					Message: fmt.Sprintf("Axis %d: %s=%d°C above %d°C", i, t.name, t.value, maxTemperature),
					Details: map[string]interface{}{t.name: t.value, "max": maxTemperature},
				})
			}
		}

		if a.State == AxisEnabled && a.BusVoltage == 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyNoBusVoltage,
				Axis:    i,
				Message: fmt.Sprintf("Axis %d: enabled with zero bus voltage", i),
			})
		}
	}

	return errors
}

func validateCommand(f *CommandFrame) []ValidationError {
	var errors []ValidationError
	if extra := f.Active &^ AllAxesMask; extra != 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyUnknownAxis,
			Axis:    -1,
			Message: fmt.Sprintf("Active mask 0x%08X flags axes beyond %d", f.Active, MaxAxes-1),
			Details: map[string]interface{}{"active": f.Active},
		})
	}
	for i := range f.Axes {
		if f.IsActive(i) && f.Axes[i].Q == -FullScale-1 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidValue,
				Axis:    i,
				Message: fmt.Sprintf("Axis %d: position outside symmetric range", i),
			})
		}
	}
	return errors
}

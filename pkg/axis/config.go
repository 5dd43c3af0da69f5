// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package axis

import (
	"errors"
	"fmt"
	"math"
)

// ConfigError describes one invalid configuration field. Axis is -1 for
// fields of the conversion profile.
type ConfigError struct {
	Axis   int
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Axis < 0 {
		return fmt.Sprintf("profile: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("axis %d: %s: %s", e.Axis, e.Field, e.Reason)
}

// AxisConfig describes the mechanics of one axis.
type AxisConfig struct {
	Inverted int  `yaml:"inverted"` // +1 or -1
	Virtual  bool `yaml:"virtual"`
	RatioNum int  `yaml:"ratio_num"`
	RatioDen int  `yaml:"ratio_den"`
}

// Ratio returns the reduction ratio. The config must have been validated.
func (c AxisConfig) Ratio() float64 {
	return float64(c.RatioNum) / float64(c.RatioDen)
}

// Sign returns the inversion sign as a float.
func (c AxisConfig) Sign() float64 {
	if c.Inverted < 0 {
		return -1
	}
	return 1
}

func (c AxisConfig) validate(i int) error {
	var errs []error
	if c.Inverted != 1 && c.Inverted != -1 {
		errs = append(errs, &ConfigError{i, "inverted", fmt.Sprintf("must be 1 or -1, got %d", c.Inverted)})
	}
	if c.RatioDen == 0 {
		errs = append(errs, &ConfigError{i, "ratio_den", "must be non-zero"})
	}
	if c.RatioNum == 0 {
		errs = append(errs, &ConfigError{i, "ratio_num", "must be non-zero"})
	}
	return errors.Join(errs...)
}

// ServoConfig holds the mechanics of every axis slot.
type ServoConfig struct {
	Axes [MaxAxes]AxisConfig
}

// DefaultServoConfig returns a config with every axis physical, not
// inverted and without reduction.
func DefaultServoConfig() ServoConfig {
	var c ServoConfig
	for i := range c.Axes {
		c.Axes[i] = AxisConfig{Inverted: 1, RatioNum: 1, RatioDen: 1}
	}
	return c
}

// Validate checks every axis and returns all problems found.
func (c *ServoConfig) Validate() error {
	var errs []error
	for i, a := range c.Axes {
		if err := a.validate(i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// VirtualMask returns a bitmask with bit i set for each virtual axis.
func (c *ServoConfig) VirtualMask() uint32 {
	var mask uint32
	for i, a := range c.Axes {
		if a.Virtual {
			mask |= 1 << uint(i)
		}
	}
	return mask
}

// ConversionProfile bounds each quantity. [-max, +max] maps onto the full
// wire range.
type ConversionProfile struct {
	MaxPosition     float64 `yaml:"max_position"`      // rad
	MaxVelocity     float64 `yaml:"max_velocity"`      // rad/s
	MaxTorque       float64 `yaml:"max_torque"`        // Nm
	MaxPositionGain float64 `yaml:"max_position_gain"` // kp
	MaxVelocityGain float64 `yaml:"max_velocity_gain"` // kd
}

// Validate checks that every bound is positive and finite.
func (p *ConversionProfile) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"max_position", p.MaxPosition},
		{"max_velocity", p.MaxVelocity},
		{"max_torque", p.MaxTorque},
		{"max_position_gain", p.MaxPositionGain},
		{"max_velocity_gain", p.MaxVelocityGain},
	}

	var errs []error
	for _, f := range fields {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			errs = append(errs, &ConfigError{-1, f.name, fmt.Sprintf("must be positive and finite, got %v", f.v)})
		}
	}
	return errors.Join(errs...)
}

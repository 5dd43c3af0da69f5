// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/axis"
	"gopkg.in/yaml.v3"
)

func TestParseServoConfig_Empty(t *testing.T) {
	s, err := parseServoConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("parseServoConfig() error = %v", err)
	}
	if s.ProfileName != defaultProfile {
		t.Errorf("ProfileName = %q, want %q", s.ProfileName, defaultProfile)
	}
	if s.Profile != axis.HumanoidProfile() {
		t.Errorf("Profile = %+v, want humanoid preset", s.Profile)
	}
	if s.IntervalMs != defaultIntervalMs {
		t.Errorf("IntervalMs = %v, want %v", s.IntervalMs, defaultIntervalMs)
	}
	if s.Servo != axis.DefaultServoConfig() {
		t.Errorf("Servo differs from default config")
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParseServoConfig_Axes(t *testing.T) {
	doc := `
interval_ms: 2.5
profile: quadruped
axes:
  - index: 0
    inverted: -1
    ratio: [2, 1]
  - index: 29
    virtual: true
`
	s, err := parseServoConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parseServoConfig() error = %v", err)
	}
	if s.IntervalMs != 2.5 {
		t.Errorf("IntervalMs = %v, want 2.5", s.IntervalMs)
	}
	if s.Profile != axis.QuadrupedProfile() {
		t.Errorf("Profile = %+v, want quadruped preset", s.Profile)
	}

	a0 := s.Servo.Axes[0]
	if a0.Inverted != -1 || a0.RatioNum != 2 || a0.RatioDen != 1 || a0.Virtual {
		t.Errorf("axis 0 = %+v", a0)
	}
	if !s.Servo.Axes[29].Virtual {
		t.Errorf("axis 29 not virtual")
	}
	// Unlisted axes keep defaults
	if s.Servo.Axes[5] != (axis.AxisConfig{Inverted: 1, RatioNum: 1, RatioDen: 1}) {
		t.Errorf("axis 5 = %+v, want default", s.Servo.Axes[5])
	}
}

func TestParseServoConfig_ExplicitBounds(t *testing.T) {
	doc := `
profile:
  max_position: 10
  max_velocity: 20
  max_torque: 30
  max_position_gain: 400
  max_velocity_gain: 4
`
	s, err := parseServoConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parseServoConfig() error = %v", err)
	}
	want := axis.ConversionProfile{MaxPosition: 10, MaxVelocity: 20, MaxTorque: 30, MaxPositionGain: 400, MaxVelocityGain: 4}
	if s.Profile != want {
		t.Errorf("Profile = %+v, want %+v", s.Profile, want)
	}
	if s.ProfileName != "" {
		t.Errorf("ProfileName = %q, want empty", s.ProfileName)
	}
}

func TestParseServoConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown preset", "profile: hexapod\n", "unknown profile"},
		{"index out of range", "axes:\n  - index: 30\n", "out of range"},
		{"negative index", "axes:\n  - index: -1\n", "out of range"},
		{"duplicate index", "axes:\n  - index: 3\n  - index: 3\n", "listed twice"},
		{"short ratio", "axes:\n  - index: 3\n    ratio: [2]\n", "ratio must be"},
		{"unknown field", "axes:\n  - index: 3\n    gear: 2\n", "failed to parse"},
		{"not yaml", "axes: [\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseServoConfig(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatalf("parseServoConfig() succeeded, want error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestServoSettings_Validate(t *testing.T) {
	doc := `
interval_ms: -1
axes:
  - index: 4
    inverted: 0
  - index: 7
    ratio: [0, 1]
`
	s, err := parseServoConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parseServoConfig() error = %v", err)
	}

	err = s.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}

	var ce *axis.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("Validate() error does not carry a ConfigError: %v", err)
	}
	for _, want := range []string{"axis 4: inverted", "axis 7: ratio_num", "interval_ms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q:\n%v", want, err)
		}
	}
}

func TestServoSettings_ToFileRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"preset", "profile: quadruped\naxes:\n  - index: 2\n    inverted: -1\n    ratio: [9, 2]\n"},
		{"bounds", "profile:\n  max_position: 1\n  max_velocity: 2\n  max_torque: 3\n  max_position_gain: 4\n  max_velocity_gain: 5\naxes:\n  - index: 11\n    virtual: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig, err := parseServoConfig(strings.NewReader(tt.doc))
			if err != nil {
				t.Fatalf("parseServoConfig() error = %v", err)
			}

			var buf bytes.Buffer
			enc := yaml.NewEncoder(&buf)
			fc := orig.toFile()
			if err := enc.Encode(&fc); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			enc.Close()

			got, err := parseServoConfig(&buf)
			if err != nil {
				t.Fatalf("re-parse error = %v\n%s", err, buf.String())
			}
			if got != orig {
				t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, orig)
			}
		})
	}
}

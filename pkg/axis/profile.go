// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package axis

import "sort"

// HumanoidProfile returns the bounds used by the humanoid joint drives.
func HumanoidProfile() ConversionProfile {
	return ConversionProfile{
		MaxPosition:     12.5,
		MaxVelocity:     45,
		MaxTorque:       36,
		MaxPositionGain: 500,
		MaxVelocityGain: 5,
	}
}

// QuadrupedProfile returns the bounds used by the quadruped leg drives.
func QuadrupedProfile() ConversionProfile {
	return ConversionProfile{
		MaxPosition:     95.5,
		MaxVelocity:     30,
		MaxTorque:       48,
		MaxPositionGain: 500,
		MaxVelocityGain: 10,
	}
}

var presets = map[string]func() ConversionProfile{
	"humanoid":  HumanoidProfile,
	"quadruped": QuadrupedProfile,
}

// Preset looks up a named profile.
func Preset(name string) (ConversionProfile, bool) {
	fn, ok := presets[name]
	if !ok {
		return ConversionProfile{}, false
	}
	return fn(), true
}

// PresetNames lists the known profile names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

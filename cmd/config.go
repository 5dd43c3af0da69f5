// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Dobot Team

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Dobot-Team/dobot-ethernet-master-sdk/pkg/axis"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	defaultProfile    = "humanoid"
	defaultIntervalMs = 1.0
)

// fileConfig is the on-disk servo configuration.
//
//	interval_ms: 1
//	profile: humanoid          # or a mapping of explicit bounds
//	axes:
//	  - index: 0
//	    inverted: -1
//	    ratio: [2, 1]
//	  - index: 29
//	    virtual: true
//
// Axes not listed keep the defaults: not inverted, physical, ratio 1/1.
type fileConfig struct {
	IntervalMs float64     `yaml:"interval_ms,omitempty"`
	Profile    profileSpec `yaml:"profile,omitempty"`
	Axes       []axisEntry `yaml:"axes,omitempty"`
}

type axisEntry struct {
	Index    int   `yaml:"index"`
	Inverted *int  `yaml:"inverted,omitempty"`
	Virtual  bool  `yaml:"virtual,omitempty"`
	Ratio    []int `yaml:"ratio,flow,omitempty"`
}

// profileSpec is either a preset name or explicit bounds.
type profileSpec struct {
	Preset string
	Bounds *axis.ConversionProfile
}

func (p *profileSpec) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		p.Preset = value.Value
		p.Bounds = nil
		return nil
	}
	var bounds axis.ConversionProfile
	if err := value.Decode(&bounds); err != nil {
		return err
	}
	p.Preset = ""
	p.Bounds = &bounds
	return nil
}

func (p profileSpec) MarshalYAML() (interface{}, error) {
	if p.Bounds != nil {
		return p.Bounds, nil
	}
	return p.Preset, nil
}

func (p profileSpec) IsZero() bool {
	return p.Preset == "" && p.Bounds == nil
}

// servoSettings is the effective configuration after applying flags.
type servoSettings struct {
	Servo       axis.ServoConfig
	Profile     axis.ConversionProfile
	ProfileName string // empty for explicit bounds
	IntervalMs  float64
}

// parseServoConfig reads a configuration document. Structural problems
// (unknown preset, bad axis index, malformed ratio) are errors here; value
// ranges are left to Validate.
func parseServoConfig(r io.Reader) (servoSettings, error) {
	s := servoSettings{
		Servo:      axis.DefaultServoConfig(),
		IntervalMs: defaultIntervalMs,
	}

	var fc fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return s, fmt.Errorf("failed to parse config: %w", err)
	}

	if fc.IntervalMs != 0 {
		s.IntervalMs = fc.IntervalMs
	}

	switch {
	case fc.Profile.Bounds != nil:
		s.Profile = *fc.Profile.Bounds
	case fc.Profile.Preset != "":
		if err := s.usePreset(fc.Profile.Preset); err != nil {
			return s, err
		}
	default:
		if err := s.usePreset(defaultProfile); err != nil {
			return s, err
		}
	}

	seen := make(map[int]bool)
	for _, e := range fc.Axes {
		if !axis.Index(e.Index).Valid() {
			return s, fmt.Errorf("axis index %d out of range [0, %d)", e.Index, axis.MaxAxes)
		}
		if seen[e.Index] {
			return s, fmt.Errorf("axis %d listed twice", e.Index)
		}
		seen[e.Index] = true

		a := &s.Servo.Axes[e.Index]
		if e.Inverted != nil {
			a.Inverted = *e.Inverted
		}
		a.Virtual = e.Virtual
		if e.Ratio != nil {
			if len(e.Ratio) != 2 {
				return s, fmt.Errorf("axis %d: ratio must be [numerator, denominator]", e.Index)
			}
			a.RatioNum, a.RatioDen = e.Ratio[0], e.Ratio[1]
		}
	}

	return s, nil
}

func (s *servoSettings) usePreset(name string) error {
	p, ok := axis.Preset(name)
	if !ok {
		return fmt.Errorf("unknown profile %q (known: %s)", name, strings.Join(axis.PresetNames(), ", "))
	}
	s.Profile = p
	s.ProfileName = name
	return nil
}

// Validate reports every invalid value.
func (s *servoSettings) Validate() error {
	var errs []error
	if err := s.Servo.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Profile.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !(s.IntervalMs > 0) {
		errs = append(errs, fmt.Errorf("interval_ms must be positive, got %v", s.IntervalMs))
	}
	return errors.Join(errs...)
}

// toFile renders the settings with every axis listed.
func (s *servoSettings) toFile() fileConfig {
	fc := fileConfig{IntervalMs: s.IntervalMs}
	if s.ProfileName != "" {
		fc.Profile.Preset = s.ProfileName
	} else {
		p := s.Profile
		fc.Profile.Bounds = &p
	}
	for i, a := range s.Servo.Axes {
		inv := a.Inverted
		fc.Axes = append(fc.Axes, axisEntry{
			Index:    i,
			Inverted: &inv,
			Virtual:  a.Virtual,
			Ratio:    []int{a.RatioNum, a.RatioDen},
		})
	}
	return fc
}

// loadSettings reads --config if given and applies the flag overrides.
func loadSettings() (servoSettings, error) {
	var (
		s   servoSettings
		err error
	)
	if configPath != "" {
		f, openErr := os.Open(configPath)
		if openErr != nil {
			return s, fmt.Errorf("failed to open config: %w", openErr)
		}
		defer f.Close()
		s, err = parseServoConfig(f)
	} else {
		s, err = parseServoConfig(strings.NewReader(""))
	}
	if err != nil {
		return s, err
	}

	if profileName != "" {
		if err := s.usePreset(profileName); err != nil {
			return s, err
		}
	}
	if intervalMs != 0 {
		s.IntervalMs = intervalMs
	}
	return s, nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the servo configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(s.toFile()); err != nil {
			return err
		}
		return enc.Close()
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long: `Validate the servo configuration the same way Init does, reporting every
problem found.

Exit codes:
  0 - Configuration valid
  1 - Configuration invalid`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if err := s.Validate(); err != nil {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(os.Stderr, "  %s\n", line)
			}
			os.Exit(1)
		}

		virtual := 0
		for _, a := range s.Servo.Axes {
			if a.Virtual {
				virtual++
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d axes (%d virtual), interval %v ms\n", axis.MaxAxes, virtual, s.IntervalMs)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configCheckCmd)
}

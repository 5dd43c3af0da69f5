// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package master

import (
	"fmt"
	"strings"
	"time"
)

// Statistics tracks cycle engine health
type Statistics struct {
	StartTime time.Time

	// Counters
	Cycles      uint64 // ticks executed
	Missed      uint64 // ticks whose transmit failed or ran past the deadline
	LinkErrors  uint64 // transmit errors, including deadline expiry
	StaleFrames uint64 // ticks without fresh telemetry for some physical axis
	Overruns    uint64 // ticks that ended after the next boundary
	OfflineAxes int    // axes forced Offline after the last tick

	// Timing
	LastCycle time.Duration // duration of the last tick
	MaxCycle  time.Duration
	MaxJitter time.Duration // worst lateness of a tick start

	// Rates (calculated)
	CycleRate float64 // ticks/sec
	MissRate  float64 // percentage
}

// CalculateRates updates the derived rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.CycleRate = float64(s.Cycles) / elapsed
	}
	if s.Cycles > 0 {
		s.MissRate = float64(s.Missed) / float64(s.Cycles) * 100
	}
}

// String returns a formatted statistics summary
func (s Statistics) String() string {
	var b strings.Builder

	b.WriteString("\n=== Cycle Statistics ===\n")
	if !s.StartTime.IsZero() {
		b.WriteString(fmt.Sprintf("Duration: %v\n", time.Since(s.StartTime).Round(time.Second)))
	}
	b.WriteString(fmt.Sprintf("Cycles: %d (%.1f/s)\n", s.Cycles, s.CycleRate))
	b.WriteString(fmt.Sprintf("Missed: %d (%.2f%%)\n", s.Missed, s.MissRate))
	b.WriteString(fmt.Sprintf("Link Errors: %d\n", s.LinkErrors))
	b.WriteString(fmt.Sprintf("Stale Frames: %d\n", s.StaleFrames))
	b.WriteString(fmt.Sprintf("Overruns: %d\n", s.Overruns))
	b.WriteString(fmt.Sprintf("Offline Axes: %d\n", s.OfflineAxes))
	b.WriteString(fmt.Sprintf("Cycle Time: last %v, max %v\n", s.LastCycle, s.MaxCycle))
	b.WriteString(fmt.Sprintf("Max Jitter: %v\n", s.MaxJitter))

	return b.String()
}

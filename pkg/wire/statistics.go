// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks decoded traffic and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalPackets    uint64
	ValidPackets    uint64
	CRCErrors       uint64
	DecodeErrors    uint64
	InvalidStates   uint64
	OverTemps       uint64
	UnknownAxes     uint64
	AnomalousValues uint64

	// Rates (calculated)
	PacketRate float64 // packets/sec
	ErrorRate  float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one decoder result
func (s *Statistics) Update(packet *Packet, decodeErr error, validationErrors []ValidationError) {
	s.TotalPackets++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrCRCMismatch) {
			s.CRCErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	if len(validationErrors) == 0 {
		s.ValidPackets++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyDecodeError:
			s.DecodeErrors++
		case AnomalyCRCError:
			s.CRCErrors++
		case AnomalyInvalidState:
			s.InvalidStates++
			s.AnomalousValues++
		case AnomalyOverTemp:
			s.OverTemps++
			s.AnomalousValues++
		case AnomalyUnknownAxis:
			s.UnknownAxes++
			s.AnomalousValues++
		default:
			s.AnomalousValues++
		}
	}
}

// CalculateRates calculates packet and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.PacketRate = float64(s.TotalPackets) / elapsed
		s.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
}

// ErrorCount is the sum of all error counters
func (s *Statistics) ErrorCount() uint64 {
	return s.CRCErrors + s.DecodeErrors + s.AnomalousValues
}

// SuccessRate returns the percentage of packets without errors
func (s *Statistics) SuccessRate() float64 {
	if s.TotalPackets == 0 {
		return 0
	}
	return float64(s.ValidPackets) / float64(s.TotalPackets) * 100
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()
	return fmt.Sprintf(
		"Packets: %d (%.1f/s) | Valid: %d (%.1f%%) | CRC: %d | Decode: %d | Anomalies: %d (state %d, temp %d, axis %d)",
		s.TotalPackets, s.PacketRate, s.ValidPackets, s.SuccessRate(),
		s.CRCErrors, s.DecodeErrors, s.AnomalousValues, s.InvalidStates, s.OverTemps, s.UnknownAxes,
	)
}

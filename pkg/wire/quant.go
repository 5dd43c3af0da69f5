// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Dobot Team

package wire

import (
	"math"

	"github.com/x448/float16"
)

// Quantize maps v from [-max, +max] onto [-FullScale, +FullScale].
// Values outside the range saturate. NaN maps to zero. max must be positive.
func Quantize(v, max float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	if v > max {
		v = max
	} else if v < -max {
		v = -max
	}
	return int16(math.Round(v / max * FullScale))
}

// Dequantize is the inverse of Quantize.
func Dequantize(w int16, max float64) float64 {
	// -32768 is outside the symmetric range; treat it as -FullScale
	if w < -FullScale {
		w = -FullScale
	}
	return float64(w) / FullScale * max
}

// Step returns the engineering value of one quantization step for max.
func Step(max float64) float64 {
	return max / FullScale
}

// EncodeHalf packs f into IEEE-754 binary16 bits.
func EncodeHalf(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}

// DecodeHalf unpacks IEEE-754 binary16 bits.
func DecodeHalf(b uint16) float32 {
	return float16.Frombits(b).Float32()
}

// Package dsp extracts loudness, clipping and pitch features from mono
// time-domain sample buffers in the range [-1, 1].
package dsp

import "math"

const (
	// ClipThreshold is the absolute sample value counted as clipped.
	ClipThreshold = 0.98
	// DefaultNoiseFloor is used until a calibration has been run.
	DefaultNoiseFloor = 0.02
	// MaxNoiseFloor caps a calibrated noise floor.
	MaxNoiseFloor = 0.2

	noiseFloorMargin = 1.2
)

// Frame holds the features of one sample buffer.
type Frame struct {
	RMS     float64
	Peak    float64
	Clips   int
	Samples int
}

// Analyze computes RMS, absolute peak and clipped sample count of buf.
func Analyze(buf []float32) Frame {
	f := Frame{Samples: len(buf)}
	if len(buf) == 0 {
		return f
	}

	var sum float64
	for _, s := range buf {
		v := float64(s)
		sum += v * v
		a := math.Abs(v)
		if a > f.Peak {
			f.Peak = a
		}
		if a >= ClipThreshold {
			f.Clips++
		}
	}
	f.RMS = math.Sqrt(sum / float64(len(buf)))
	return f
}

// RelativeLoudness normalizes value above the noise floor into [0, 1] for
// inputs in [0, 1].
func RelativeLoudness(value, noiseFloor float64) float64 {
	if noiseFloor >= 1 {
		return 0
	}
	return math.Max(0, (value-noiseFloor)/(1-noiseFloor))
}

// Calibrator derives a noise floor from frames recorded in a quiet room.
// The zero value is ready to use.
type Calibrator struct {
	sum float64
	n   int
}

// Add records one ambient frame.
func (c *Calibrator) Add(f Frame) {
	c.sum += f.RMS
	c.n++
}

// Frames returns the number of recorded frames.
func (c *Calibrator) Frames() int { return c.n }

// NoiseFloor is the mean ambient RMS with a 20% margin, capped at MaxNoiseFloor.
// Without frames it returns DefaultNoiseFloor.
func (c *Calibrator) NoiseFloor() float64 {
	if c.n == 0 {
		return DefaultNoiseFloor
	}
	return math.Min(MaxNoiseFloor, c.sum/float64(c.n)*noiseFloorMargin)
}

// Package scoring turns per-frame audio features into the composite round score.
package scoring

import (
	"math"

	"github.com/vovakirdan/groupshout/internal/dsp"
)

// Score ceilings of the sub-metrics.
const (
	MaxLoud        = 40.0
	MaxUnity       = 25.0
	MaxPitch       = 25.0
	MaxClipPenalty = -10.0

	// ReferenceHeadcount is the group size at which the normalization multiplier is 1.
	ReferenceHeadcount = 30

	rmsWeight      = 0.7
	peakWeight     = 0.3
	unityScale     = 3.0
	pitchTolerance = 50.0 // cents
	clipScale      = 40.0
	maxTotal       = 100.0
)

// Inputs are the round aggregates a score is computed from.
type Inputs struct {
	RMSMax     float64
	PeakMax    float64
	NoiseFloor float64
	// MeanSqDelta is the mean squared change of relative RMS between frames.
	MeanSqDelta float64
	// Frames is the number of measured frames; without frames unity is 0.
	Frames    int
	Cents     float64
	ClipRate  float64
	Headcount int
}

// Result is a scored round. All fields are rounded for transmission.
type Result struct {
	Loud        float64
	Unity       float64
	Pitch       float64
	ClipPenalty float64
	ClipRate    float64
	Total       float64
}

// Compute applies the scoring formula.
func Compute(in Inputs) Result {
	loud := (rmsWeight*dsp.RelativeLoudness(in.RMSMax, in.NoiseFloor) +
		peakWeight*dsp.RelativeLoudness(in.PeakMax, in.NoiseFloor)) * MaxLoud

	var unity float64
	if in.Frames > 0 {
		unity = math.Max(0, 1-math.Min(1, math.Sqrt(math.Max(0, in.MeanSqDelta))*unityScale)) * MaxUnity
	}

	pitch := math.Max(0, 1-math.Min(1, math.Abs(in.Cents)/pitchTolerance)) * MaxPitch
	penalty := ClipPenalty(in.ClipRate)
	total := clamp((loud+unity+pitch+penalty)*HeadcountMultiplier(in.Headcount), 0, maxTotal)

	return Result{
		Loud:        Round2(loud),
		Unity:       Round2(unity),
		Pitch:       Round2(pitch),
		ClipPenalty: Round2(penalty),
		ClipRate:    Round4(in.ClipRate),
		Total:       Round2(total),
	}
}

// ClipPenalty is the score deduction for a clipped-sample ratio.
func ClipPenalty(clipRate float64) float64 {
	return math.Max(MaxClipPenalty, -clipRate*clipScale)
}

// HeadcountMultiplier scales the raw score inversely with the declared group size.
func HeadcountMultiplier(headcount int) float64 {
	return float64(ReferenceHeadcount) / float64(max(1, headcount))
}

// Round2 rounds to two decimals.
func Round2(v float64) float64 { return math.Round(v*100) / 100 }

// Round4 rounds to four decimals.
func Round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

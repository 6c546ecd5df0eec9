package scoring

import (
	"math"

	"github.com/vovakirdan/groupshout/internal/dsp"
)

// FrameStats is what one measured frame contributes, for live display.
type FrameStats struct {
	dsp.Frame
	RelRMS  float64
	PitchHz float64
	Cents   float64
}

// Measurement accumulates frames of one round. It is created when measuring
// starts and discarded after the score is computed. Not safe for concurrent use.
type Measurement struct {
	noiseFloor float64
	targetHz   float64
	sampleRate float64

	rmsMax     float64
	peakMax    float64
	clips      int
	samples    int
	deltaSqSum float64
	lastRel    float64
	frames     int
	pitchHz    float64
}

// NewMeasurement starts an empty measurement.
func NewMeasurement(noiseFloor, targetHz, sampleRate float64) *Measurement {
	return &Measurement{
		noiseFloor: noiseFloor,
		targetHz:   targetHz,
		sampleRate: sampleRate,
	}
}

// Add analyzes one capture buffer and folds it into the aggregates.
func (m *Measurement) Add(buf []float32) FrameStats {
	f := dsp.Analyze(buf)
	rel := dsp.RelativeLoudness(f.RMS, m.noiseFloor)
	pitch := dsp.EstimatePitch(buf, m.sampleRate)

	m.rmsMax = math.Max(m.rmsMax, f.RMS)
	m.peakMax = math.Max(m.peakMax, f.Peak)
	m.clips += f.Clips
	m.samples += f.Samples
	d := rel - m.lastRel
	m.deltaSqSum += d * d
	m.lastRel = rel
	m.frames++
	m.pitchHz = pitch

	return FrameStats{
		Frame:   f,
		RelRMS:  rel,
		PitchHz: pitch,
		Cents:   dsp.CentsDiff(pitch, m.targetHz),
	}
}

// Frames returns the number of frames added so far.
func (m *Measurement) Frames() int { return m.frames }

// PitchHz is the estimate of the most recent frame; 0 when it had no reliable pitch.
func (m *Measurement) PitchHz() float64 { return m.pitchHz }

// Inputs returns the aggregates for the declared headcount.
func (m *Measurement) Inputs(headcount int) Inputs {
	in := Inputs{
		RMSMax:     m.rmsMax,
		PeakMax:    m.peakMax,
		NoiseFloor: m.noiseFloor,
		Frames:     m.frames,
		Cents:      dsp.CentsDiff(m.pitchHz, m.targetHz),
		Headcount:  headcount,
	}
	if m.frames > 0 {
		in.MeanSqDelta = m.deltaSqSum / float64(m.frames)
	}
	if m.samples > 0 {
		in.ClipRate = float64(m.clips) / float64(m.samples)
	}
	return in
}

// Result scores the measurement.
func (m *Measurement) Result(headcount int) Result {
	return Compute(m.Inputs(headcount))
}

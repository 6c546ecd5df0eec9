package dsp

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze(t *testing.T) {
	f := Analyze([]float32{0.5, -0.5, 0.99, -1, 0})
	assert.Equal(t, 5, f.Samples)
	assert.Equal(t, 2, f.Clips)
	assert.InDelta(t, 1.0, f.Peak, 1e-9)
	assert.InDelta(t, math.Sqrt((0.25+0.25+0.9801+1)/5), f.RMS, 1e-6)

	assert.Equal(t, Frame{}, Analyze(nil))
}

func TestAnalyzeSineRMS(t *testing.T) {
	f := Analyze(Sine(440, 0.5, 48000, 48000))
	assert.InDelta(t, 0.5/math.Sqrt2, f.RMS, 1e-3)
	assert.InDelta(t, 0.5, f.Peak, 1e-3)
	assert.Zero(t, f.Clips)
}

func TestRelativeLoudness(t *testing.T) {
	assert.Equal(t, 0.0, RelativeLoudness(0.02, 0.02))
	assert.Equal(t, 0.0, RelativeLoudness(0.01, 0.02))
	assert.InDelta(t, 1.0, RelativeLoudness(1, 0.02), 1e-12)
	assert.InDelta(t, 0.5, RelativeLoudness(0.6, 0.2), 1e-12)
	assert.Equal(t, 0.0, RelativeLoudness(0.5, 1))
}

func TestCalibrator(t *testing.T) {
	var c Calibrator
	assert.Equal(t, DefaultNoiseFloor, c.NoiseFloor())

	c.Add(Frame{RMS: 0.01})
	c.Add(Frame{RMS: 0.03})
	assert.Equal(t, 2, c.Frames())
	assert.InDelta(t, 0.024, c.NoiseFloor(), 1e-12)

	var loud Calibrator
	loud.Add(Frame{RMS: 0.5})
	assert.Equal(t, MaxNoiseFloor, loud.NoiseFloor())
}

func TestEstimatePitchSine(t *testing.T) {
	const sampleRate = 44100.0
	for _, freq := range []float64{100, 150, 220, 261.63, 330, 440, 523.25, 660, 800} {
		t.Run(fmt.Sprintf("%.0fHz", freq), func(t *testing.T) {
			got := EstimatePitch(Sine(freq, 0.5, sampleRate, 4096), sampleRate)
			assert.InDelta(t, freq, got, 2, "estimated %.2f Hz", got)
		})
	}
}

func TestEstimatePitchBrowserFrameSize(t *testing.T) {
	const sampleRate = 16000.0
	for _, freq := range []float64{100, 220, 440, 800} {
		got := EstimatePitch(Sine(freq, 0.5, sampleRate, 2048), sampleRate)
		assert.InDelta(t, freq, got, 2, "freq %.0f estimated %.2f Hz", freq, got)
	}
}

func TestEstimatePitchRejects(t *testing.T) {
	assert.Zero(t, EstimatePitch(make([]float32, 2048), 44100), "silence")
	assert.Zero(t, EstimatePitch(Sine(220, 0.005, 44100, 2048), 44100), "below silence threshold")
	assert.Zero(t, EstimatePitch(Sine(220, 0.5, 44100, 2), 44100), "too short")
	assert.Zero(t, EstimatePitch(Sine(220, 0.5, 44100, 2048), 0), "no sample rate")
}

func TestCentsDiff(t *testing.T) {
	assert.InDelta(t, 1200, CentsDiff(440, 220), 1e-9)
	assert.InDelta(t, -1200, CentsDiff(110, 220), 1e-9)
	assert.Equal(t, 0.0, CentsDiff(220, 220))
	assert.Equal(t, 0.0, CentsDiff(0, 220))
	assert.Equal(t, 0.0, CentsDiff(220, 0))
}

func TestOscillatorIsContinuous(t *testing.T) {
	o := Oscillator{Freq: 220, Amplitude: 0.5, SampleRate: 44100}
	a := make([]float32, 1000)
	b := make([]float32, 1000)
	o.Fill(a)
	o.Fill(b)

	whole := Sine(220, 0.5, 44100, 2000)
	require.InDelta(t, float64(whole[1000]), float64(b[0]), 1e-4)
	require.InDelta(t, float64(whole[1999]), float64(b[999]), 1e-4)
}

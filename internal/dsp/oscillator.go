package dsp

import "math"

// Oscillator generates a continuous sine wave across successive buffers.
type Oscillator struct {
	Freq       float64
	Amplitude  float64
	SampleRate float64

	phase float64
}

// Fill writes the next len(buf) samples into buf.
func (o *Oscillator) Fill(buf []float32) {
	step := 2 * math.Pi * o.Freq / o.SampleRate
	for i := range buf {
		buf[i] = float32(o.Amplitude * math.Sin(o.phase))
		o.phase += step
		if o.phase >= 2*math.Pi {
			o.phase -= 2 * math.Pi
		}
	}
}

// Sine returns n samples of a sine wave starting at phase zero.
func Sine(freq, amplitude, sampleRate float64, n int) []float32 {
	buf := make([]float32, n)
	o := Oscillator{Freq: freq, Amplitude: amplitude, SampleRate: sampleRate}
	o.Fill(buf)
	return buf
}

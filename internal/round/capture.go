package round

import (
	"errors"
	"math/rand/v2"
	"sync"

	"github.com/vovakirdan/groupshout/internal/dsp"
)

// SineCapture is a synthetic microphone producing a sine wave with optional
// white noise. It stands in for a real device in headless runs and tests.
type SineCapture struct {
	mu    sync.Mutex
	osc   dsp.Oscillator
	noise float64
	rng   *rand.Rand
}

// NewSineCapture returns a capture emitting freq Hz at amplitude plus uniform
// noise in [-noise, noise].
func NewSineCapture(sampleRate, freq, amplitude, noise float64) *SineCapture {
	return &SineCapture{
		osc:   dsp.Oscillator{Freq: freq, Amplitude: amplitude, SampleRate: sampleRate},
		noise: noise,
		rng:   rand.New(rand.NewPCG(1, 2)),
	}
}

func (s *SineCapture) Open() error { return nil }

func (s *SineCapture) SampleRate() float64 { return s.osc.SampleRate }

// SetSignal changes frequency and amplitude for subsequent frames.
func (s *SineCapture) SetSignal(freq, amplitude float64) {
	s.mu.Lock()
	s.osc.Freq = freq
	s.osc.Amplitude = amplitude
	s.mu.Unlock()
}

func (s *SineCapture) ReadFrame(buf []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.osc.Fill(buf)
	if s.noise > 0 {
		for i := range buf {
			buf[i] += float32((s.rng.Float64()*2 - 1) * s.noise)
		}
	}
	return nil
}

// ErrNoDevice is returned by UnavailableCapture.
var ErrNoDevice = errors.New("no capture device")

// UnavailableCapture models a device that cannot be opened.
type UnavailableCapture struct{}

func (UnavailableCapture) Open() error               { return ErrNoDevice }
func (UnavailableCapture) SampleRate() float64       { return 0 }
func (UnavailableCapture) ReadFrame([]float32) error { return ErrNoDevice }

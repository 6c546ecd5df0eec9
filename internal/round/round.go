// Package round runs the client side of a synchronized round: countdown to a
// shared start time, measurement for a fixed window, scoring and submission.
package round

import (
	"context"
	"errors"
	"time"

	"github.com/vovakirdan/groupshout/internal/scoring"
)

// ErrCaptureUnavailable is reported when the audio capture or playback
// primitive cannot be acquired. The round still runs without it.
var ErrCaptureUnavailable = errors.New("capture unavailable")

// Phase is the client-side position within a round.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseWaitingForStart
	PhaseCountdown
	PhaseMeasuring
	PhaseSubmitted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseWaitingForStart:
		return "WAITING_FOR_START"
	case PhaseCountdown:
		return "COUNTDOWN"
	case PhaseMeasuring:
		return "MEASURING"
	case PhaseSubmitted:
		return "SUBMITTED"
	default:
		return "UNKNOWN"
	}
}

// Round is a scheduled round as announced by the server.
type Round struct {
	ID       string
	Label    string
	Seconds  float64
	UseOsc   bool
	TargetHz float64
	StartAt  time.Time
}

// EndAt is when measurement stops.
func (r Round) EndAt() time.Time {
	return r.StartAt.Add(time.Duration(r.Seconds * float64(time.Second)))
}

// Capture delivers periodic mono sample buffers.
type Capture interface {
	// Open acquires the device. It is called before every use and must be idempotent.
	Open() error
	SampleRate() float64
	// ReadFrame fills buf with the most recent samples.
	ReadFrame(buf []float32) error
}

// Playback plays the optional guide audio. The returned stop function ends playback.
type Playback interface {
	PlayTone(hz float64) (stop func(), err error)
	PlayFile(path string) (stop func(), err error)
}

// Submitter delivers a computed score to the server.
type Submitter func(ctx context.Context, result scoring.Result) error

// Observer receives progress notifications. Calls are made from the runner goroutine.
type Observer interface {
	PhaseChanged(r Round, phase Phase)
	Countdown(r Round, remaining time.Duration)
	Frame(r Round, stats scoring.FrameStats)
	Submitted(r Round, result scoring.Result)
	Error(err error)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) PhaseChanged(Round, Phase)       {}
func (NopObserver) Countdown(Round, time.Duration)  {}
func (NopObserver) Frame(Round, scoring.FrameStats) {}
func (NopObserver) Submitted(Round, scoring.Result) {}
func (NopObserver) Error(error)                     {}

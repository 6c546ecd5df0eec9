package round

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupshout/internal/dsp"
	"github.com/vovakirdan/groupshout/internal/scoring"
)

const (
	defaultFrameSize         = 2048
	defaultTickInterval      = 50 * time.Millisecond
	defaultCountdownInterval = 200 * time.Millisecond
	defaultHeadcount         = 30
)

// Config wires a Runner to its collaborators. Capture and Playback may be nil.
type Config struct {
	Capture   Capture
	Playback  Playback
	GuideFile string
	Submit    Submitter
	Observer  Observer

	FrameSize         int
	TickInterval      time.Duration
	CountdownInterval time.Duration
	Now               func() time.Time

	Logger *zerolog.Logger
}

// Runner drives one round at a time. Starting a new round supersedes the
// running one without submitting it.
type Runner struct {
	cfg Config
	log *zerolog.Logger

	mu         sync.Mutex
	phase      Phase
	noiseFloor float64
	headcount  int
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRunner creates an idle runner.
func NewRunner(cfg Config) *Runner {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = defaultFrameSize
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.CountdownInterval <= 0 {
		cfg.CountdownInterval = defaultCountdownInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Runner{
		cfg:        cfg,
		log:        logger,
		noiseFloor: dsp.DefaultNoiseFloor,
		headcount:  defaultHeadcount,
	}
}

// Phase returns the current phase.
func (r *Runner) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// NoiseFloor returns the noise floor used for new measurements.
func (r *Runner) NoiseFloor() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.noiseFloor
}

// SetNoiseFloor replaces the noise floor used for new measurements.
func (r *Runner) SetNoiseFloor(v float64) {
	r.mu.Lock()
	r.noiseFloor = v
	r.mu.Unlock()
}

// SetHeadcount sets the declared group size used for score normalization.
func (r *Runner) SetHeadcount(n int) {
	if n <= 0 {
		n = defaultHeadcount
	}
	r.mu.Lock()
	r.headcount = n
	r.mu.Unlock()
}

// Start begins rd in the background, cancelling and awaiting any previous round.
func (r *Runner) Start(ctx context.Context, rd Round) {
	r.Stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.mu.Lock()
	r.cancel = cancel
	r.done = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		r.run(ctx, rd)
	}()
}

// Stop cancels the running round, if any, and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Wait blocks until the running round, if any, has finished.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Calibrate records ambient frames for d and adopts the resulting noise floor.
func (r *Runner) Calibrate(ctx context.Context, d time.Duration) (float64, error) {
	if r.cfg.Capture == nil {
		return 0, ErrCaptureUnavailable
	}
	if err := r.cfg.Capture.Open(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	var cal dsp.Calibrator
	buf := make([]float32, r.cfg.FrameSize)
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(d)
	defer deadline.Stop()

	for {
		if err := r.cfg.Capture.ReadFrame(buf); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
		}
		cal.Add(dsp.Analyze(buf))

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-deadline.C:
			nf := cal.NoiseFloor()
			r.SetNoiseFloor(nf)
			r.log.Info().Float64("noise_floor", nf).Int("frames", cal.Frames()).Msg("calibration finished")
			return nf, nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) setPhase(rd Round, p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
	r.log.Debug().Str("round_id", rd.ID).Stringer("phase", p).Msg("round phase")
	r.cfg.Observer.PhaseChanged(rd, p)
}

func (r *Runner) run(ctx context.Context, rd Round) {
	r.setPhase(rd, PhaseWaitingForStart)

	if !r.countdown(ctx, rd) {
		r.superseded(rd)
		return
	}

	result, ok := r.measure(ctx, rd)
	if !ok {
		r.superseded(rd)
		return
	}

	if r.cfg.Submit != nil {
		if err := r.cfg.Submit(ctx, result); err != nil {
			r.log.Warn().Err(err).Str("round_id", rd.ID).Msg("score submit failed")
			r.cfg.Observer.Error(fmt.Errorf("submit score: %w", err))
		}
	}
	r.setPhase(rd, PhaseSubmitted)
	r.log.Info().
		Str("round_id", rd.ID).
		Float64("total", result.Total).
		Float64("loud", result.Loud).
		Float64("unity", result.Unity).
		Float64("pitch", result.Pitch).
		Float64("clip_rate", result.ClipRate).
		Msg("round scored")
	r.cfg.Observer.Submitted(rd, result)
}

func (r *Runner) superseded(rd Round) {
	r.log.Debug().Str("round_id", rd.ID).Msg("round cancelled")
	r.setPhase(rd, PhaseIdle)
}

// countdown waits until rd.StartAt. It returns false if ctx ends first.
func (r *Runner) countdown(ctx context.Context, rd Round) bool {
	r.setPhase(rd, PhaseCountdown)

	for {
		remaining := rd.StartAt.Sub(r.cfg.Now())
		if remaining <= 0 {
			return true
		}
		r.cfg.Observer.Countdown(rd, remaining)

		wait := min(r.cfg.CountdownInterval, remaining)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

// measure collects frames while the clock is before rd.EndAt and scores them.
// It returns false if ctx ends first.
func (r *Runner) measure(ctx context.Context, rd Round) (scoring.Result, bool) {
	r.mu.Lock()
	noiseFloor, headcount := r.noiseFloor, r.headcount
	r.mu.Unlock()

	capture := r.openCapture()
	sampleRate := 0.0
	if capture != nil {
		sampleRate = capture.SampleRate()
	}
	meas := scoring.NewMeasurement(noiseFloor, rd.TargetHz, sampleRate)

	r.setPhase(rd, PhaseMeasuring)
	stopGuide := r.startGuide(rd)
	defer stopGuide()

	end := time.NewTimer(rd.EndAt().Sub(r.cfg.Now()))
	defer end.Stop()
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	buf := make([]float32, r.cfg.FrameSize)
	sample := func() {
		if capture == nil {
			return
		}
		if err := capture.ReadFrame(buf); err != nil {
			r.cfg.Observer.Error(fmt.Errorf("%w: %v", ErrCaptureUnavailable, err))
			capture = nil
			return
		}
		r.cfg.Observer.Frame(rd, meas.Add(buf))
	}

	// The timer only wakes the loop; the round ends once the clock reaches EndAt.
	for r.cfg.Now().Before(rd.EndAt()) {
		sample()

		select {
		case <-ctx.Done():
			return scoring.Result{}, false
		case <-end.C:
		case <-ticker.C:
		}
	}

	return meas.Result(headcount), true
}

func (r *Runner) openCapture() Capture {
	if r.cfg.Capture == nil {
		r.cfg.Observer.Error(ErrCaptureUnavailable)
		return nil
	}
	if err := r.cfg.Capture.Open(); err != nil {
		r.log.Warn().Err(err).Msg("capture open failed, measuring without input")
		r.cfg.Observer.Error(fmt.Errorf("%w: %v", ErrCaptureUnavailable, err))
		return nil
	}
	return r.cfg.Capture
}

// startGuide starts the reference tone and/or guide file. A guide file that
// fails to play is replaced by the synthesized tone.
func (r *Runner) startGuide(rd Round) func() {
	if r.cfg.Playback == nil {
		return func() {}
	}

	var stops []func()
	tone := false
	playTone := func() {
		stop, err := r.cfg.Playback.PlayTone(rd.TargetHz)
		if err != nil {
			r.cfg.Observer.Error(fmt.Errorf("%w: tone: %v", ErrCaptureUnavailable, err))
			return
		}
		tone = true
		stops = append(stops, stop)
	}

	if rd.UseOsc {
		playTone()
	}
	if r.cfg.GuideFile != "" {
		stop, err := r.cfg.Playback.PlayFile(r.cfg.GuideFile)
		if err != nil {
			r.log.Warn().Err(err).Str("file", r.cfg.GuideFile).Msg("guide file failed, using tone")
			r.cfg.Observer.Error(fmt.Errorf("%w: guide file: %v", ErrCaptureUnavailable, err))
			if !tone {
				playTone()
			}
		} else {
			stops = append(stops, stop)
		}
	}

	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

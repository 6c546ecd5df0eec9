package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/groupshout/internal/client"
	applog "github.com/vovakirdan/groupshout/internal/log"
	"github.com/vovakirdan/groupshout/internal/proto"
	"github.com/vovakirdan/groupshout/internal/round"
	"github.com/vovakirdan/groupshout/internal/scoring"
)

type clientFlags struct {
	url       string
	name      string
	headcount int
	logLevel  string

	hz         float64
	amplitude  float64
	noise      float64
	sampleRate float64
	guideFile  string
	calibrate  time.Duration
	once       bool
}

type startFlags struct {
	autoStart time.Duration
	label     string
	seconds   float64
	targetHz  float64
	useOsc    bool
	delay     time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f clientFlags
	var sf startFlags

	root := &cobra.Command{
		Use:           "groupshout-client",
		Short:         "Headless classroom client with a synthetic microphone",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.url, "url", "ws://localhost:3000/ws", "server websocket URL")
	pf.StringVar(&f.name, "name", "", "classroom name")
	pf.IntVar(&f.headcount, "headcount", 0, "number of students in the room (0 = server default)")
	pf.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.Float64Var(&f.hz, "hz", 220, "frequency of the synthetic voice")
	pf.Float64Var(&f.amplitude, "amp", 0.5, "amplitude of the synthetic voice")
	pf.Float64Var(&f.noise, "noise", 0.01, "amplitude of added white noise")
	pf.Float64Var(&f.sampleRate, "sample-rate", 44100, "synthetic capture sample rate")
	pf.StringVar(&f.guideFile, "guide", "", "guide audio file played during rounds")
	pf.DurationVar(&f.calibrate, "calibrate", 0, "measure the noise floor for this long before playing")
	pf.BoolVar(&f.once, "once", false, "exit after the first submitted score")

	create := &cobra.Command{
		Use:   "create",
		Short: "Create a room and host it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, func(ctx context.Context, s *client.Session) error {
				if err := s.CreateRoom(ctx, f.name, f.headcount); err != nil {
					return err
				}
				if sf.autoStart <= 0 {
					return nil
				}
				if err := waitForRoom(ctx, s); err != nil {
					return err
				}
				if err := sleep(ctx, sf.autoStart); err != nil {
					return err
				}
				return s.StartRound(ctx, sf.label, proto.RoundOptions{
					Seconds:  sf.seconds,
					UseOsc:   sf.useOsc,
					TargetHz: sf.targetHz,
				}, &sf.delay)
			})
		},
	}
	cf := create.Flags()
	cf.DurationVar(&sf.autoStart, "auto-start", 0, "start a round this long after the room is created (0 = never)")
	cf.StringVar(&sf.label, "label", "", "round label")
	cf.Float64Var(&sf.seconds, "seconds", 0, "round length in seconds (0 = server default)")
	cf.Float64Var(&sf.targetHz, "target-hz", 0, "reference pitch (0 = server default)")
	cf.BoolVar(&sf.useOsc, "use-osc", false, "play the reference tone during the round")
	cf.DurationVar(&sf.delay, "delay", 3*time.Second, "countdown before the round starts")

	join := &cobra.Command{
		Use:   "join PIN",
		Short: "Join an existing room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, func(ctx context.Context, s *client.Session) error {
				return s.JoinRoom(ctx, args[0], f.name, f.headcount)
			})
		},
	}

	root.AddCommand(create, join)
	return root
}

func run(ctx context.Context, f clientFlags, action func(context.Context, *client.Session) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := applog.New(f.logLevel, "console", os.Stdout)
	obs := &logObserver{log: logger, submitted: make(chan struct{}, 1)}

	s := client.NewSession(client.SessionConfig{
		Conn: client.ConnConfig{URL: f.url},
		Runner: round.Config{
			Capture:   round.NewSineCapture(f.sampleRate, f.hz, f.amplitude, f.noise),
			Playback:  round.NewLogPlayback(logger),
			GuideFile: f.guideFile,
		},
		Observer: obs,
		Logger:   logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-s.Connected():
		}

		if f.calibrate > 0 {
			nf, err := s.Calibrate(gctx, f.calibrate)
			if err != nil {
				logger.Warn().Err(err).Msg("calibration failed, using default noise floor")
			} else {
				logger.Info().Float64("noise_floor", nf).Msg("calibrated")
			}
		}

		if err := action(gctx, s); err != nil {
			return err
		}
		if !f.once {
			return nil
		}
		select {
		case <-gctx.Done():
		case <-obs.submitted:
			// Leave time for the leaderboard broadcast.
			_ = sleep(gctx, time.Second)
			cancel()
		}
		return nil
	})
	return g.Wait()
}

// waitForRoom blocks until the session belongs to a room.
func waitForRoom(ctx context.Context, s *client.Session) error {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for s.View().PIN == "" {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type logObserver struct {
	client.NopObserver
	log       *zerolog.Logger
	submitted chan struct{}
}

func (o *logObserver) StateChanged(v client.View) {
	o.log.Info().
		Str("pin", v.PIN).
		Bool("host", v.IsHost).
		Int("players", len(v.Players)).
		Int("rounds", len(v.Rounds)).
		Msg("room updated")
	for i, e := range v.Leaderboard {
		o.log.Info().Int("rank", i+1).Str("name", e.Name).Float64("score", e.Score).Msg("leaderboard")
	}
}

func (o *logObserver) ServerError(code, message string) {
	o.log.Error().Str("code", code).Str("message", message).Msg("server rejected request")
}

func (o *logObserver) PhaseChanged(rd round.Round, p round.Phase) {
	o.log.Info().Str("round_id", rd.ID).Str("label", rd.Label).Stringer("phase", p).Msg("round phase")
}

func (o *logObserver) Countdown(rd round.Round, remaining time.Duration) {
	o.log.Debug().Str("round_id", rd.ID).Dur("remaining", remaining).Msg("countdown")
}

func (o *logObserver) Submitted(rd round.Round, res scoring.Result) {
	o.log.Info().Str("round_id", rd.ID).Float64("total", res.Total).Msg("score submitted")
	select {
	case o.submitted <- struct{}{}:
	default:
	}
}

func (o *logObserver) Error(err error) {
	o.log.Warn().Err(err).Msg("round degraded")
}

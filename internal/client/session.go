package client

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupshout/internal/proto"
	"github.com/vovakirdan/groupshout/internal/round"
	"github.com/vovakirdan/groupshout/internal/scoring"
)

// Server error codes that answer a join_room.
const (
	errCodeRoomNotFound = "room_not_found"
	errCodeBadRequest   = "bad_request"
)

// View is the client's copy of the room it belongs to.
type View struct {
	PIN         string
	You         string
	IsHost      bool
	Players     []proto.Player
	Rounds      []proto.Round
	Leaderboard []proto.LeaderboardEntry
}

// Observer receives room and round updates. Callbacks run on the connection
// or round goroutines and must not block.
type Observer interface {
	round.Observer
	StateChanged(View)
	ServerError(code, message string)
}

// NopObserver ignores every update.
type NopObserver struct{ round.NopObserver }

func (NopObserver) StateChanged(View)         {}
func (NopObserver) ServerError(string, string) {}

// SessionConfig wires a Session. Runner.Submit and Runner.Observer are
// replaced by the session.
type SessionConfig struct {
	Conn     ConnConfig
	Runner   round.Config
	Observer Observer
	Logger   *zerolog.Logger
}

// Session is one classroom: a reconnecting connection, the room view and the
// round runner.
type Session struct {
	conn   *Conn
	runner *round.Runner
	obs    Observer
	log    *zerolog.Logger

	connected     chan struct{}
	connectedOnce sync.Once

	mu          sync.Mutex
	view        View
	pendingJoin *proto.JoinRoom
}

// NewSession creates a session. Nothing happens until Run.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	obs := cfg.Observer
	if obs == nil {
		obs = NopObserver{}
	}

	s := &Session{
		obs:       obs,
		log:       logger,
		connected: make(chan struct{}),
	}

	connCfg := cfg.Conn
	if connCfg.Logger == nil {
		connCfg.Logger = logger
	}
	connCfg.OnConnect = s.onConnect
	connCfg.OnMessage = s.onMessage
	s.conn = NewConn(connCfg)

	runnerCfg := cfg.Runner
	if runnerCfg.Logger == nil {
		runnerCfg.Logger = logger
	}
	runnerCfg.Observer = obs
	runnerCfg.Submit = s.submit
	s.runner = round.NewRunner(runnerCfg)

	return s
}

// Run keeps the session connected until ctx is cancelled, then stops any
// running round.
func (s *Session) Run(ctx context.Context) error {
	defer s.runner.Stop()
	return s.conn.Run(ctx)
}

// Connected is closed once the first connection is established.
func (s *Session) Connected() <-chan struct{} { return s.connected }

// Runner exposes the round runner, mainly for calibration and phase queries.
func (s *Session) Runner() *round.Runner { return s.runner }

// View returns a copy of the current room view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.view
	v.Players = slices.Clone(v.Players)
	v.Rounds = slices.Clone(v.Rounds)
	v.Leaderboard = slices.Clone(v.Leaderboard)
	return v
}

// CreateRoom asks for a new room hosted by this client.
func (s *Session) CreateRoom(ctx context.Context, name string, headcount int) error {
	return s.conn.Send(ctx, proto.CreateRoom{Name: name, Headcount: headcount})
}

// JoinRoom joins pin. The request is remembered and resent after a reconnect
// until the server answers it.
func (s *Session) JoinRoom(ctx context.Context, pin, name string, headcount int) error {
	msg := proto.JoinRoom{PIN: pin, Name: name, Headcount: headcount}
	s.mu.Lock()
	s.pendingJoin = &msg
	s.mu.Unlock()

	err := s.conn.Send(ctx, msg)
	if errors.Is(err, ErrNotConnected) {
		s.log.Debug().Str("pin", pin).Msg("join queued until connected")
		return nil
	}
	return err
}

func (s *Session) SetReady(ctx context.Context, ready bool) error {
	return s.conn.Send(ctx, proto.SetReady{Ready: ready})
}

// UpdatePlayer changes this client's name and/or headcount. Nil fields are left alone.
func (s *Session) UpdatePlayer(ctx context.Context, name *string, headcount *int) error {
	return s.conn.Send(ctx, proto.UpdatePlayer{Name: name, Headcount: headcount})
}

// StartRound asks the server to schedule a round. Only the host may do this;
// delay nil uses the server default.
func (s *Session) StartRound(ctx context.Context, label string, opts proto.RoundOptions, delay *time.Duration) error {
	msg := proto.StartRound{Label: label, Options: opts}
	if delay != nil {
		ms := delay.Milliseconds()
		msg.DelayMs = &ms
	}
	return s.conn.Send(ctx, msg)
}

func (s *Session) RequestState(ctx context.Context) error {
	return s.conn.Send(ctx, proto.RequestState{})
}

// Calibrate measures ambient noise for d and uses it as the noise floor of
// later rounds.
func (s *Session) Calibrate(ctx context.Context, d time.Duration) (float64, error) {
	return s.runner.Calibrate(ctx, d)
}

func (s *Session) onConnect(ctx context.Context, reconnect bool) {
	s.connectedOnce.Do(func() { close(s.connected) })

	s.mu.Lock()
	pending := s.pendingJoin
	pin := s.view.PIN
	s.mu.Unlock()

	switch {
	case pending != nil:
		if err := s.conn.Send(ctx, *pending); err != nil {
			s.log.Warn().Err(err).Str("pin", pending.PIN).Msg("resend join failed")
		}
	case reconnect && pin != "":
		if err := s.conn.Send(ctx, proto.RequestState{}); err != nil {
			s.log.Warn().Err(err).Msg("request state failed")
		}
	}
}

func (s *Session) onMessage(ctx context.Context, msg proto.ServerMessage) {
	switch m := msg.(type) {
	case proto.RoomCreated:
		s.update(func(v *View) {
			v.PIN = m.PIN
			v.IsHost = true
			v.You = ""
			for _, p := range m.State.Players {
				if p.IsHost {
					v.You = p.ID
				}
			}
			applyState(v, m.State)
			s.pendingJoin = nil
		})

	case proto.Joined:
		s.update(func(v *View) {
			v.PIN = m.PIN
			v.You = m.You
			applyState(v, m.State)
			s.pendingJoin = nil
		})

	case proto.StateUpdate:
		s.update(func(v *View) { applyState(v, m.State) })

	case proto.Leaderboard:
		s.update(func(v *View) { v.Leaderboard = m.Leaderboard })

	case proto.RoundStart:
		// The server resets the leaderboard for every new round.
		s.update(func(v *View) {
			v.Rounds = append(v.Rounds, m.Round)
			v.Leaderboard = nil
		})
		rd := roundFromProto(m.Round)
		s.log.Info().Str("round_id", rd.ID).Time("start_at", rd.StartAt).Msg("round scheduled")
		s.runner.Start(ctx, rd)

	case proto.Error:
		s.mu.Lock()
		if answersJoin(m.Code, s.view.PIN != "") {
			s.pendingJoin = nil
		}
		s.mu.Unlock()
		s.log.Warn().Str("code", m.Code).Str("message", m.Message).Msg("server error")
		s.obs.ServerError(m.Code, m.Message)
	}
}

// update applies fn to the view under the session lock, then refreshes the runner headcount and
// notifies the observer.
func (s *Session) update(fn func(v *View)) {
	s.mu.Lock()
	fn(&s.view)
	headcount := 0
	for _, p := range s.view.Players {
		if p.ID == s.view.You {
			headcount = p.Headcount
			s.view.IsHost = p.IsHost
		}
	}
	s.mu.Unlock()

	if headcount > 0 {
		s.runner.SetHeadcount(headcount)
	}
	s.obs.StateChanged(s.View())
}

// answersJoin reports whether a server error is the rejection of a pending
// join_room. Outside a room, a bad_request can only come from a join or create.
func answersJoin(code string, inRoom bool) bool {
	switch code {
	case errCodeRoomNotFound:
		return true
	case errCodeBadRequest:
		return !inRoom
	default:
		return false
	}
}

func applyState(v *View, st proto.State) {
	v.Players = st.Players
	v.Rounds = st.Rounds
	v.Leaderboard = st.Leaderboard
}

func roundFromProto(r proto.Round) round.Round {
	return round.Round{
		ID:       r.ID,
		Label:    r.Label,
		Seconds:  r.Options.Seconds,
		UseOsc:   r.Options.UseOsc,
		TargetHz: r.Options.TargetHz,
		StartAt:  time.UnixMilli(r.StartAt),
	}
}

func (s *Session) submit(ctx context.Context, res scoring.Result) error {
	return s.conn.Send(ctx, proto.ScoreSubmit{
		Loud:     res.Loud,
		Unity:    res.Unity,
		Pitch:    res.Pitch,
		ClipRate: res.ClipRate,
		Total:    res.Total,
	})
}

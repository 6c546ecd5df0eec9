package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/groupshout/internal/config"
	"github.com/vovakirdan/groupshout/internal/core"
	"github.com/vovakirdan/groupshout/internal/proto"
	"github.com/vovakirdan/groupshout/internal/round"
	"github.com/vovakirdan/groupshout/internal/scoring"
	"github.com/vovakirdan/groupshout/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/groupshout/internal/transport/http"
)

type sessionRecorder struct {
	NopObserver

	mu        sync.Mutex
	submitted []scoring.Result
	errCodes  []string
}

func (r *sessionRecorder) Submitted(_ round.Round, res scoring.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, res)
}

func (r *sessionRecorder) ServerError(code, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errCodes = append(r.errCodes, code)
}

func (r *sessionRecorder) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errCodes...)
}

func (r *sessionRecorder) submits() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.submitted)
}

func startServer(t *testing.T) string {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)

	logger := zerolog.Nop()
	cfg := config.Default()
	hub := core.NewHub(st, core.HubOptions{
		DefaultStartDelay: cfg.DefaultStartDelay,
		MaxStartDelay:     cfg.MaxStartDelay,
	}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	ts := httptest.NewServer(transporthttp.NewServer(hub, st, &cfg, &logger).Handler)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		_ = st.Close()
	})
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func startSession(t *testing.T, url string, freq float64, obs Observer) *Session {
	t.Helper()

	s := NewSession(SessionConfig{
		Conn: ConnConfig{URL: url, InitialBackoff: 10 * time.Millisecond},
		Runner: round.Config{
			Capture:      round.NewSineCapture(16000, freq, 0.5, 0),
			FrameSize:    1024,
			TickInterval: 20 * time.Millisecond,
		},
		Observer: obs,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	select {
	case <-s.Connected():
	case <-time.After(5 * time.Second):
		t.Fatal("session never connected")
	}
	return s
}

func TestSessionsPlayRound(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	hostObs := &sessionRecorder{}
	host := startSession(t, url, 220, hostObs)
	require.NoError(t, host.CreateRoom(ctx, "Class A", 30))
	require.Eventually(t, func() bool { return host.View().PIN != "" }, 5*time.Second, 10*time.Millisecond)

	hv := host.View()
	assert.True(t, hv.IsHost)
	assert.NotEmpty(t, hv.You)

	guestObs := &sessionRecorder{}
	guest := startSession(t, url, 220, guestObs)
	require.NoError(t, guest.JoinRoom(ctx, hv.PIN, "Class B", 15))
	require.Eventually(t, func() bool { return len(host.View().Players) == 2 }, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool { return guest.View().PIN != "" }, 5*time.Second, 10*time.Millisecond)
	gv := guest.View()
	assert.Equal(t, hv.PIN, gv.PIN)
	assert.False(t, gv.IsHost)
	assert.NotEqual(t, hv.You, gv.You)

	delay := 200 * time.Millisecond
	require.NoError(t, host.StartRound(ctx, "warmup", proto.RoundOptions{Seconds: 0.3, TargetHz: 220}, &delay))

	require.Eventually(t, func() bool {
		return len(host.View().Leaderboard) == 2 && len(guest.View().Leaderboard) == 2
	}, 5*time.Second, 20*time.Millisecond)

	lb := guest.View().Leaderboard
	assert.GreaterOrEqual(t, lb[0].Score, lb[1].Score)
	for _, e := range lb {
		assert.Positive(t, e.Score)
		assert.LessOrEqual(t, e.Score, 100.0)
	}
	require.Eventually(t, func() bool {
		return hostObs.submits() == 1 && guestObs.submits() == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, hostObs.codes())
	assert.Len(t, host.View().Rounds, 1)
}

func TestSessionJoinUnknownRoomReportsError(t *testing.T) {
	url := startServer(t)
	obs := &sessionRecorder{}
	s := startSession(t, url, 220, obs)

	require.NoError(t, s.JoinRoom(context.Background(), "000000", "Class", 10))
	require.Eventually(t, func() bool { return len(obs.codes()) == 1 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"room_not_found"}, obs.codes())
	assert.Empty(t, s.View().PIN)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Nil(t, s.pendingJoin)
}

func TestSessionNonHostCannotStart(t *testing.T) {
	url := startServer(t)
	ctx := context.Background()

	host := startSession(t, url, 220, nil)
	require.NoError(t, host.CreateRoom(ctx, "Host", 30))
	require.Eventually(t, func() bool { return host.View().PIN != "" }, 5*time.Second, 10*time.Millisecond)

	obs := &sessionRecorder{}
	guest := startSession(t, url, 220, obs)
	require.NoError(t, guest.JoinRoom(ctx, host.View().PIN, "Guest", 30))
	require.Eventually(t, func() bool { return guest.View().PIN != "" }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, guest.StartRound(ctx, "", proto.RoundOptions{}, nil))
	require.Eventually(t, func() bool { return len(obs.codes()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "not_host", obs.codes()[0])
	assert.Empty(t, guest.View().Rounds)
}

func TestSessionKeepsPendingJoinOnUnrelatedErrors(t *testing.T) {
	s := NewSession(SessionConfig{Conn: ConnConfig{URL: "ws://127.0.0.1:1/ws"}})
	ctx := context.Background()
	pending := func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.pendingJoin != nil
	}

	require.NoError(t, s.JoinRoom(ctx, "123456", "Class", 20))
	require.True(t, pending())

	s.onMessage(ctx, proto.Error{Code: "not_host", Message: "Only host can start a round"})
	assert.True(t, pending())

	// Switching rooms: a bad_request while already in a room answers some
	// other command, not the join.
	s.mu.Lock()
	s.view.PIN = "654321"
	s.mu.Unlock()
	s.onMessage(ctx, proto.Error{Code: "bad_request", Message: "delayMs out of range"})
	assert.True(t, pending())

	s.onMessage(ctx, proto.Error{Code: "room_not_found", Message: "Room not found"})
	assert.False(t, pending())

	s.mu.Lock()
	s.view.PIN = ""
	s.mu.Unlock()
	require.NoError(t, s.JoinRoom(ctx, "123456", "Class", -1))
	s.onMessage(ctx, proto.Error{Code: "bad_request", Message: "headcount must be in [1, 10000]"})
	assert.False(t, pending())
}

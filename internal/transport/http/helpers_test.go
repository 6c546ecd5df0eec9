package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/groupshout/internal/config"
	"github.com/vovakirdan/groupshout/internal/core"
	"github.com/vovakirdan/groupshout/internal/proto"
	"github.com/vovakirdan/groupshout/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	hub   *core.Hub
	store *sqlite.SQLiteStore
}

func startTestServer(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	require.NoError(t, err)

	logger := zerolog.Nop()
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.PublicURL = "http://school.example"
	for _, m := range mutate {
		m(&cfg)
	}

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

	server := NewServer(hub, st, &cfg, &logger)
	ts := httptest.NewServer(server.Handler)

	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
		_ = st.Close()
	})
	return &testEnv{ts: ts, hub: hub, store: st}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg proto.ClientMessage) {
	t.Helper()

	data, err := proto.Encode(msg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

// readNext returns the next server message, failing on timeout.
func readNext(t *testing.T, conn *websocket.Conn) proto.ServerMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	msg, err := proto.DecodeServer(data)
	require.NoError(t, err)
	return msg
}

// readUntil skips messages until one of type T arrives.
func readUntil[T proto.ServerMessage](t *testing.T, conn *websocket.Conn) T {
	t.Helper()

	for i := 0; i < 20; i++ {
		if m, ok := readNext(t, conn).(T); ok {
			return m
		}
	}
	var zero T
	t.Fatalf("no %s message received", zero.MessageType())
	return zero
}

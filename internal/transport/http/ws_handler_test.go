package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/groupshout/internal/config"
	"github.com/vovakirdan/groupshout/internal/proto"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebSocketRoundFlow(t *testing.T) {
	env := startTestServer(t)
	host := env.dial(t)
	guest := env.dial(t)

	send(t, host, proto.CreateRoom{Name: "Host", Headcount: 30})
	created := readUntil[proto.RoomCreated](t, host)
	require.Len(t, created.PIN, 6)
	require.Len(t, created.State.Players, 1)
	assert.True(t, created.State.Players[0].IsHost)
	assert.NotNil(t, created.State.Rounds)
	assert.NotNil(t, created.State.Leaderboard)

	send(t, guest, proto.JoinRoom{PIN: created.PIN, Name: "教室A", Headcount: 28})
	joined := readUntil[proto.Joined](t, guest)
	assert.Equal(t, created.PIN, joined.PIN)
	assert.NotEmpty(t, joined.You)

	for _, conn := range []*websocket.Conn{host, guest} {
		st := readUntil[proto.StateUpdate](t, conn)
		require.Len(t, st.State.Players, 2)
		assert.Equal(t, "教室A", st.State.Players[1].Name)
		assert.Equal(t, joined.You, st.State.Players[1].ID)
	}

	delay := int64(200)
	before := time.Now().UnixMilli()
	send(t, host, proto.StartRound{
		Label:   "Round 1",
		Options: proto.RoundOptions{Seconds: 1, TargetHz: 220},
		DelayMs: &delay,
	})
	rsHost := readUntil[proto.RoundStart](t, host)
	rsGuest := readUntil[proto.RoundStart](t, guest)
	require.Equal(t, rsHost.Round, rsGuest.Round)
	assert.GreaterOrEqual(t, rsHost.Round.StartAt, before+delay)

	send(t, guest, proto.ScoreSubmit{Loud: 30, Unity: 20, Pitch: 10, Total: 60})
	lb := readUntil[proto.Leaderboard](t, host)
	require.Len(t, lb.Leaderboard, 1)

	send(t, host, proto.ScoreSubmit{Loud: 35, Unity: 24, Pitch: 25, ClipRate: 0.01, Total: 84})
	readUntil[proto.Leaderboard](t, guest) // guest's own entry only
	lb = readUntil[proto.Leaderboard](t, guest)
	require.Len(t, lb.Leaderboard, 2)
	assert.Equal(t, 84.0, lb.Leaderboard[0].Score)
	assert.Equal(t, 60.0, lb.Leaderboard[1].Score)
	assert.Equal(t, "教室A", lb.Leaderboard[1].Name)
	assert.Equal(t, 28, lb.Leaderboard[1].Metrics.Headcount)

	require.Eventually(t, func() bool {
		results, err := env.store.ListResults(context.Background(), rsHost.Round.ID)
		return err == nil && len(results) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocketNonHostStartIsRejected(t *testing.T) {
	env := startTestServer(t)
	host := env.dial(t)
	guest := env.dial(t)

	send(t, host, proto.CreateRoom{Name: "Host"})
	created := readUntil[proto.RoomCreated](t, host)
	send(t, guest, proto.JoinRoom{PIN: created.PIN, Name: "G"})
	readUntil[proto.Joined](t, guest)

	send(t, guest, proto.StartRound{Label: "mine"})
	errMsg := readUntil[proto.Error](t, guest)
	assert.Equal(t, "Only host can start a round", errMsg.Message)
	assert.Equal(t, "not_host", errMsg.Code)
}

func TestWebSocketJoinUnknownRoom(t *testing.T) {
	env := startTestServer(t)
	conn := env.dial(t)

	send(t, conn, proto.JoinRoom{PIN: "999999", Name: "x"})
	errMsg, ok := readNext(t, conn).(proto.Error)
	require.True(t, ok)
	assert.Equal(t, "Room not found", errMsg.Message)
}

func TestWebSocketMalformedFramesAreDropped(t *testing.T) {
	env := startTestServer(t)
	conn := env.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte("not json")))
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02}))
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "explode"}))
	require.NoError(t, wsjson.Write(ctx, conn, map[string]any{"type": "join_room", "pin": 123456}))

	// The connection survives and the next frame is answered first.
	send(t, conn, proto.CreateRoom{Name: "Host"})
	_, ok := readNext(t, conn).(proto.RoomCreated)
	assert.True(t, ok)
}

func TestWebSocketDisconnectUpdatesRoomAndDestroysIt(t *testing.T) {
	env := startTestServer(t)
	host := env.dial(t)
	guest := env.dial(t)

	send(t, host, proto.CreateRoom{Name: "Host"})
	created := readUntil[proto.RoomCreated](t, host)
	send(t, guest, proto.JoinRoom{PIN: created.PIN, Name: "G"})
	readUntil[proto.Joined](t, guest)
	readUntil[proto.StateUpdate](t, host)

	require.NoError(t, guest.Close(websocket.StatusNormalClosure, "bye"))
	st := readUntil[proto.StateUpdate](t, host)
	require.Len(t, st.State.Players, 1)

	require.NoError(t, host.Close(websocket.StatusNormalClosure, "bye"))
	require.Eventually(t, func() bool {
		resp, err := env.ts.Client().Get(env.ts.URL + "/api/rooms/" + created.PIN)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 2*time.Second, 20*time.Millisecond)

	late := env.dial(t)
	send(t, late, proto.JoinRoom{PIN: created.PIN})
	errMsg := readUntil[proto.Error](t, late)
	assert.Equal(t, "room_not_found", errMsg.Code)
}

func TestWebSocketOversizedFrameClosesConnection(t *testing.T) {
	env := startTestServer(t, func(c *config.Config) { c.MaxMessageBytes = 128 })
	conn := env.dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	big, err := json.Marshal(map[string]any{"type": "create_room", "name": string(make([]byte, 512))})
	require.NoError(t, err)
	_ = conn.Write(ctx, websocket.MessageText, big)

	_, _, err = conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusMessageTooBig, websocket.CloseStatus(err))
}

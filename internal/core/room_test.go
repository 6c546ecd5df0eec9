package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRejoinKeepsHostAndPosition(t *testing.T) {
	host := NewClient("h")
	r := NewRoom("123456", Player{ID: "h", Name: "Host", Headcount: 30}, host, testNow)
	require.True(t, r.AddClient(NewClient("g"), Player{ID: "g", Name: "G", Headcount: 5}))

	added := r.AddClient(host, Player{ID: "h", Name: "Renamed", Headcount: 20})
	assert.False(t, added)
	assert.Equal(t, 2, r.Size())

	st := r.Snapshot()
	assert.Equal(t, "h", st.Players[0].ID)
	assert.True(t, st.Players[0].IsHost)
	assert.Equal(t, "Renamed", st.Players[0].Name)
	assert.Equal(t, 20, st.Players[0].Headcount)
}

func TestRoomUpsertIsStableOnTies(t *testing.T) {
	r := NewRoom("123456", Player{ID: "h"}, NewClient("h"), testNow)
	r.Upsert(LeaderboardEntry{PlayerID: "a", Score: 50})
	r.Upsert(LeaderboardEntry{PlayerID: "b", Score: 50})
	r.Upsert(LeaderboardEntry{PlayerID: "c", Score: 80})

	lb := r.Leaderboard()
	require.Len(t, lb, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{lb[0].PlayerID, lb[1].PlayerID, lb[2].PlayerID})

	lb[0].Score = -1
	assert.Equal(t, 80.0, r.Leaderboard()[0].Score)
}

func TestRoomRemoveKeepsLeaderboardEntry(t *testing.T) {
	r := NewRoom("123456", Player{ID: "h"}, NewClient("h"), testNow)
	r.AddClient(NewClient("g"), Player{ID: "g"})
	r.Upsert(LeaderboardEntry{PlayerID: "g", Score: 10})

	assert.True(t, r.RemoveClient("g"))
	assert.False(t, r.RemoveClient("g"))
	assert.Equal(t, 1, r.Size())
	assert.Len(t, r.Leaderboard(), 1)
}

func TestRoomPhase(t *testing.T) {
	r := NewRoom("123456", Player{ID: "h"}, NewClient("h"), testNow)
	assert.Equal(t, PhaseLobby, r.Phase(testNow))

	r.StartRound(Round{ID: "r", StartAt: testNow.Add(3 * time.Second), Options: RoundOptions{Seconds: 10}})
	assert.Equal(t, PhaseCountdown, r.Phase(testNow))
	assert.Equal(t, PhaseActive, r.Phase(testNow.Add(5*time.Second)))
	assert.Equal(t, PhaseLobby, r.Phase(testNow.Add(13*time.Second)))
}

func TestRoomBroadcastDropsForFullBuffers(t *testing.T) {
	slow := NewClient("h")
	r := NewRoom("123456", Player{ID: "h"}, slow, testNow)
	for i := 0; i < cap(slow.Events); i++ {
		slow.Events <- &Event{}
	}
	assert.Equal(t, 1, r.Broadcast(&Event{Kind: EventState}))
}

package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func benchmarkLeaderboardBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, HubOptions{}, nil)
	go hub.Run(ctx)

	host := NewClient("host")
	hub.RegisterClient(host)
	_ = hub.Dispatch(ctx, host, &Command{Kind: CommandCreateRoom, Name: "host"})
	var pin string
	for ev := range host.Events {
		if ev.Kind == EventRoomCreated {
			pin = ev.PIN
			break
		}
	}

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient(fmt.Sprintf("c%d", i))
		hub.RegisterClient(c)
		_ = hub.Dispatch(ctx, c, &Command{Kind: CommandJoinRoom, PIN: pin, Name: c.ID})
		clients = append(clients, c)
	}

	// Drain events for all but the host to avoid channel backpressure.
	for _, c := range clients {
		go func(cl *Client) {
			for range cl.Events {
			}
		}(c)
	}

	// The round trip waits for every join; then the host buffer is emptied.
	_, _ = hub.RoomCount(ctx)
	drain(host)

	_ = hub.Dispatch(ctx, host, &Command{Kind: CommandStartRound})
	waitFor(host, EventRoundStart)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = hub.Dispatch(ctx, host, &Command{
			Kind:  CommandSubmitScore,
			Score: ScoreSubmission{Total: float64(i % 100)},
		})
		waitFor(host, EventLeaderboard)
	}
}

func waitFor(c *Client, kind EventKind) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events:
			if ev.Kind == kind {
				return
			}
		case <-timeout:
			return
		}
	}
}

func drain(c *Client) {
	for {
		select {
		case <-c.Events:
		default:
			return
		}
	}
}

func BenchmarkLeaderboardBroadcast_10(b *testing.B)  { benchmarkLeaderboardBroadcast(b, 10) }
func BenchmarkLeaderboardBroadcast_100(b *testing.B) { benchmarkLeaderboardBroadcast(b, 100) }
func BenchmarkLeaderboardBroadcast_500(b *testing.B) { benchmarkLeaderboardBroadcast(b, 500) }

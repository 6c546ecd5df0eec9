package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/groupshout/internal/store"
)

var testNow = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func newTestHub(t *testing.T, results store.ResultStore, opts HubOptions) *Hub {
	t.Helper()

	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(results, opts, nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func connect(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()
	c := NewClient(id)
	hub.RegisterClient(c)
	return c
}

func dispatch(t *testing.T, hub *Hub, c *Client, cmd *Command) {
	t.Helper()
	if err := hub.Dispatch(context.Background(), c, cmd); err != nil {
		t.Fatalf("dispatch %s: %v", cmd.Kind, err)
	}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// memStore is an in-memory store.ResultStore for hub tests.
type memStore struct {
	mu      sync.Mutex
	rounds  []store.RoundRecord
	results []store.ResultRecord
}

func (m *memStore) SaveRound(_ context.Context, r store.RoundRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, r)
	return nil
}

func (m *memStore) SaveResult(_ context.Context, r store.ResultRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *memStore) GetRound(_ context.Context, id string) (*store.RoundRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rounds {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListResults(_ context.Context, roundID string) ([]store.ResultRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ResultRecord
	for _, r := range m.results {
		if r.RoundID == roundID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) counts() (rounds, results int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rounds), len(m.results)
}

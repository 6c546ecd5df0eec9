package core

import (
	"sort"
	"time"
)

// Phase is the server-side lifecycle position of a room.
type Phase string

const (
	PhaseLobby     Phase = "LOBBY"
	PhaseCountdown Phase = "COUNTDOWN"
	PhaseActive    Phase = "ACTIVE"
)

// Player is a room member. ID equals the owning connection's client ID.
type Player struct {
	ID        string
	Name      string
	Headcount int
	Ready     bool
	IsHost    bool
}

// Round is one scheduled measurement epoch. Immutable once created.
type Round struct {
	ID      string
	Label   string
	Options RoundOptions
	StartAt time.Time
}

// EndAt is when the measurement window closes.
func (r Round) EndAt() time.Time {
	return r.StartAt.Add(r.Options.Duration())
}

// Metrics are the sub-scores attached to a leaderboard entry.
type Metrics struct {
	Loud      float64
	Unity     float64
	Pitch     float64
	Headcount int
	ClipRate  float64
}

// LeaderboardEntry is one player's result in the current round.
type LeaderboardEntry struct {
	PlayerID string
	Name     string
	Score    float64
	Metrics  Metrics
}

// RoomState is the public snapshot of a room.
type RoomState struct {
	PIN         string
	Players     []Player
	Rounds      []Round
	Leaderboard []LeaderboardEntry
}

// Room groups the players of one game session. It is not safe for
// concurrent use; the hub goroutine owns every room.
type Room struct {
	PIN       string
	HostID    string
	CreatedAt time.Time

	players     []*Player
	clients     map[string]*Client
	rounds      []Round
	leaderboard []LeaderboardEntry
}

// NewRoom constructs a room whose only member is the host.
func NewRoom(pin string, host Player, c *Client, now time.Time) *Room {
	host.IsHost = true
	r := &Room{
		PIN:       pin,
		HostID:    host.ID,
		CreatedAt: now,
		clients:   make(map[string]*Client),
	}
	r.players = append(r.players, &host)
	r.clients[host.ID] = c
	return r
}

// AddClient inserts a player and its connection. Returns true if newly added;
// an existing member keeps its host flag and position but takes the new fields.
func (r *Room) AddClient(c *Client, p Player) bool {
	p.IsHost = p.ID == r.HostID
	r.clients[p.ID] = c
	if existing, ok := r.Player(p.ID); ok {
		*existing = p
		return false
	}
	r.players = append(r.players, &p)
	return true
}

// RemoveClient deletes a player and its connection. Returns true if removed.
// Leaderboard entries of the player are kept.
func (r *Room) RemoveClient(id string) bool {
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	for i, p := range r.players {
		if p.ID == id {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	return true
}

// Player returns the member with the given id.
func (r *Room) Player(id string) (*Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Broadcast sends an event to all clients in the room.
func (r *Room) Broadcast(event *Event) (dropped int) {
	for _, client := range r.clients {
		if !client.send(event) {
			// Drop if slow consumer.
			dropped++
		}
	}
	return dropped
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

// Size returns the number of members.
func (r *Room) Size() int {
	return len(r.players)
}

// StartRound appends a round and resets the leaderboard for it.
func (r *Room) StartRound(round Round) {
	r.rounds = append(r.rounds, round)
	r.leaderboard = nil
}

// CurrentRound returns the latest round, if any.
func (r *Room) CurrentRound() (Round, bool) {
	if len(r.rounds) == 0 {
		return Round{}, false
	}
	return r.rounds[len(r.rounds)-1], true
}

// Upsert replaces the player's entry or appends a new one, then re-sorts by
// score descending. Ties keep their previous relative order.
func (r *Room) Upsert(entry LeaderboardEntry) {
	replaced := false
	for i := range r.leaderboard {
		if r.leaderboard[i].PlayerID == entry.PlayerID {
			r.leaderboard[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		r.leaderboard = append(r.leaderboard, entry)
	}
	sort.SliceStable(r.leaderboard, func(i, j int) bool {
		return r.leaderboard[i].Score > r.leaderboard[j].Score
	})
}

// Leaderboard returns a copy of the current leaderboard.
func (r *Room) Leaderboard() []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(r.leaderboard))
	copy(out, r.leaderboard)
	return out
}

// Phase derives the lifecycle position from the latest round and the clock.
func (r *Room) Phase(now time.Time) Phase {
	round, ok := r.CurrentRound()
	if !ok {
		return PhaseLobby
	}
	switch {
	case now.Before(round.StartAt):
		return PhaseCountdown
	case now.Before(round.EndAt()):
		return PhaseActive
	default:
		return PhaseLobby
	}
}

// Snapshot copies the public state. Connections are never included.
func (r *Room) Snapshot() *RoomState {
	players := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}
	rounds := make([]Round, len(r.rounds))
	copy(rounds, r.rounds)

	return &RoomState{
		PIN:         r.PIN,
		Players:     players,
		Rounds:      rounds,
		Leaderboard: r.Leaderboard(),
	}
}

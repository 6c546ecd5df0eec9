package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomCreated answers create_room.
	EventRoomCreated EventKind = iota
	// EventJoined answers a successful join_room.
	EventJoined
	// EventState carries a full room snapshot.
	EventState
	// EventRoundStart announces a scheduled round.
	EventRoundStart
	// EventLeaderboard carries the sorted leaderboard.
	EventLeaderboard
	// EventError notifies a single client about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Events may be shared between recipients and must not be mutated after sending.
type Event struct {
	Kind        EventKind
	PIN         string
	You         string
	State       *RoomState
	Round       *Round
	Leaderboard []LeaderboardEntry
	Error       *CoreError
}

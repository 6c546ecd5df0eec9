package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandCreateRoom creates a room with the sender as host.
	CommandCreateRoom CommandKind = iota
	// CommandJoinRoom adds the sender to an existing room.
	CommandJoinRoom
	// CommandSetReady updates the sender's ready flag.
	CommandSetReady
	// CommandUpdatePlayer partially updates the sender's player.
	CommandUpdatePlayer
	// CommandStartRound schedules a round. Host only.
	CommandStartRound
	// CommandSubmitScore upserts the sender's leaderboard entry.
	CommandSubmitScore
	// CommandRequestState re-sends the room snapshot to the sender.
	CommandRequestState
)

func (k CommandKind) String() string {
	switch k {
	case CommandCreateRoom:
		return "create_room"
	case CommandJoinRoom:
		return "join_room"
	case CommandSetReady:
		return "set_ready"
	case CommandUpdatePlayer:
		return "update_player"
	case CommandStartRound:
		return "start_round"
	case CommandSubmitScore:
		return "score_submit"
	case CommandRequestState:
		return "request_state"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	// create_room / join_room
	PIN       string
	Name      string
	Headcount int

	Ready bool

	// update_player; nil fields are left untouched
	NewName      *string
	NewHeadcount *int

	// start_round
	Label   string
	Options RoundOptions
	DelayMs *int64

	Score ScoreSubmission
}

// ScoreSubmission is the client-computed result for the current round.
type ScoreSubmission struct {
	Loud     float64
	Unity    float64
	Pitch    float64
	ClipRate float64
	Total    float64
}

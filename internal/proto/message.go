package proto

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for any frame that does not decode to a known message.
var ErrMalformed = errors.New("malformed message")

const (
	TypeCreateRoom   = "create_room"
	TypeJoinRoom     = "join_room"
	TypeSetReady     = "set_ready"
	TypeUpdatePlayer = "update_player"
	TypeStartRound   = "start_round"
	TypeScoreSubmit  = "score_submit"
	TypeRequestState = "request_state"

	TypeRoomCreated = "room_created"
	TypeJoined      = "joined"
	TypeState       = "state"
	TypeRoundStart  = "round_start"
	TypeLeaderboard = "leaderboard"
	TypeError       = "error"
)

// envelope is used to peek at the tag before decoding the full variant.
type envelope struct {
	Type string `json:"type"`
}

// Message is any tagged protocol message.
type Message interface {
	MessageType() string
}

// ClientMessage is a message sent from a client to the server.
type ClientMessage interface {
	Message
	clientMessage()
}

// ServerMessage is a message sent from the server to a client.
type ServerMessage interface {
	Message
	serverMessage()
}

// RoundOptions configures a single round.
type RoundOptions struct {
	Seconds  float64 `json:"seconds"`
	UseOsc   bool    `json:"useOsc"`
	TargetHz float64 `json:"targetHz"`
}

// Player is the public view of a room member.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Headcount int    `json:"headcount"`
	Ready     bool   `json:"ready"`
	IsHost    bool   `json:"isHost"`
}

// Round is the public view of a scheduled round. StartAt is unix milliseconds.
type Round struct {
	ID      string       `json:"id"`
	Label   string       `json:"label"`
	Options RoundOptions `json:"options"`
	StartAt int64        `json:"startAt"`
}

// Metrics are the sub-scores attached to a leaderboard entry.
type Metrics struct {
	Loud      float64 `json:"loud"`
	Unity     float64 `json:"unity"`
	Pitch     float64 `json:"pitch"`
	Headcount int     `json:"headcount"`
	ClipRate  float64 `json:"clipRate"`
}

// LeaderboardEntry is one player's result in the current round.
type LeaderboardEntry struct {
	PlayerID string  `json:"playerId"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	Metrics  Metrics `json:"metrics"`
}

// State is the public room snapshot.
type State struct {
	PIN         string             `json:"pin"`
	Players     []Player           `json:"players"`
	Rounds      []Round            `json:"rounds"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// ---- client -> server ----

// CreateRoom asks the server for a new room with the sender as host.
type CreateRoom struct {
	Name      string `json:"name,omitempty"`
	Headcount int    `json:"headcount,omitempty"`
}

// JoinRoom asks to join the room identified by PIN.
type JoinRoom struct {
	PIN       string `json:"pin"`
	Name      string `json:"name,omitempty"`
	Headcount int    `json:"headcount,omitempty"`
}

// SetReady toggles the sender's ready flag.
type SetReady struct {
	Ready bool `json:"ready"`
}

// UpdatePlayer partially updates the sender's own player fields.
type UpdatePlayer struct {
	Headcount *int    `json:"headcount,omitempty"`
	Name      *string `json:"name,omitempty"`
}

// StartRound schedules a new round. Host only.
type StartRound struct {
	Label   string       `json:"label,omitempty"`
	Options RoundOptions `json:"options"`
	DelayMs *int64       `json:"delayMs,omitempty"`
}

// ScoreSubmit carries the sender's final score for the current round.
type ScoreSubmit struct {
	Loud     float64 `json:"loud"`
	Unity    float64 `json:"unity"`
	Pitch    float64 `json:"pitch"`
	ClipRate float64 `json:"clipRate"`
	Total    float64 `json:"total"`
}

// RequestState asks for the current room snapshot.
type RequestState struct{}

func (CreateRoom) clientMessage()   {}
func (JoinRoom) clientMessage()     {}
func (SetReady) clientMessage()     {}
func (UpdatePlayer) clientMessage() {}
func (StartRound) clientMessage()   {}
func (ScoreSubmit) clientMessage()  {}
func (RequestState) clientMessage() {}

func (CreateRoom) MessageType() string   { return TypeCreateRoom }
func (JoinRoom) MessageType() string     { return TypeJoinRoom }
func (SetReady) MessageType() string     { return TypeSetReady }
func (UpdatePlayer) MessageType() string { return TypeUpdatePlayer }
func (StartRound) MessageType() string   { return TypeStartRound }
func (ScoreSubmit) MessageType() string  { return TypeScoreSubmit }
func (RequestState) MessageType() string { return TypeRequestState }

// ---- server -> client ----

// RoomCreated answers create_room.
type RoomCreated struct {
	PIN   string `json:"pin"`
	State State  `json:"state"`
}

// Joined answers a successful join_room.
type Joined struct {
	PIN   string `json:"pin"`
	State State  `json:"state"`
	You   string `json:"you"`
}

// StateUpdate carries a full room snapshot.
type StateUpdate struct {
	State State `json:"state"`
}

// RoundStart announces a new round to every room member.
type RoundStart struct {
	Round Round `json:"round"`
}

// Leaderboard carries the full sorted leaderboard of the current round.
type Leaderboard struct {
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

// Error reports a failed request to the sender only.
type Error struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (RoomCreated) serverMessage() {}
func (Joined) serverMessage()      {}
func (StateUpdate) serverMessage() {}
func (RoundStart) serverMessage()  {}
func (Leaderboard) serverMessage() {}
func (Error) serverMessage()       {}

func (RoomCreated) MessageType() string { return TypeRoomCreated }
func (Joined) MessageType() string      { return TypeJoined }
func (StateUpdate) MessageType() string { return TypeState }
func (RoundStart) MessageType() string  { return TypeRoundStart }
func (Leaderboard) MessageType() string { return TypeLeaderboard }
func (Error) MessageType() string       { return TypeError }

// DecodeClient decodes one client frame into its variant.
func DecodeClient(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg ClientMessage
	var err error
	switch env.Type {
	case TypeCreateRoom:
		msg, err = decodeAs[CreateRoom](data)
	case TypeJoinRoom:
		msg, err = decodeAs[JoinRoom](data)
	case TypeSetReady:
		msg, err = decodeAs[SetReady](data)
	case TypeUpdatePlayer:
		msg, err = decodeAs[UpdatePlayer](data)
	case TypeStartRound:
		msg, err = decodeAs[StartRound](data)
	case TypeScoreSubmit:
		msg, err = decodeAs[ScoreSubmit](data)
	case TypeRequestState:
		msg, err = decodeAs[RequestState](data)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeServer decodes one server frame into its variant.
func DecodeServer(data []byte) (ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg ServerMessage
	var err error
	switch env.Type {
	case TypeRoomCreated:
		msg, err = decodeAs[RoomCreated](data)
	case TypeJoined:
		msg, err = decodeAs[Joined](data)
	case TypeState:
		msg, err = decodeAs[StateUpdate](data)
	case TypeRoundStart:
		msg, err = decodeAs[RoundStart](data)
	case TypeLeaderboard:
		msg, err = decodeAs[Leaderboard](data)
	case TypeError:
		msg, err = decodeAs[Error](data)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode marshals m as a flat JSON object with its "type" tag first.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	tag, err := json.Marshal(m.MessageType())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(body)+len(tag)+9)
	out = append(out, `{"type":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
		out = append(out, body[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}

func decodeAs[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

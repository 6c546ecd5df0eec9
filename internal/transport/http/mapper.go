package http

import (
	"github.com/vovakirdan/groupshout/internal/core"
	"github.com/vovakirdan/groupshout/internal/proto"
)

func messageToCommand(msg proto.ClientMessage) *core.Command {
	switch m := msg.(type) {
	case proto.CreateRoom:
		return &core.Command{Kind: core.CommandCreateRoom, Name: m.Name, Headcount: m.Headcount}
	case proto.JoinRoom:
		return &core.Command{Kind: core.CommandJoinRoom, PIN: m.PIN, Name: m.Name, Headcount: m.Headcount}
	case proto.SetReady:
		return &core.Command{Kind: core.CommandSetReady, Ready: m.Ready}
	case proto.UpdatePlayer:
		return &core.Command{Kind: core.CommandUpdatePlayer, NewName: m.Name, NewHeadcount: m.Headcount}
	case proto.StartRound:
		return &core.Command{
			Kind:  core.CommandStartRound,
			Label: m.Label,
			Options: core.RoundOptions{
				Seconds:  m.Options.Seconds,
				UseOsc:   m.Options.UseOsc,
				TargetHz: m.Options.TargetHz,
			},
			DelayMs: m.DelayMs,
		}
	case proto.ScoreSubmit:
		return &core.Command{
			Kind: core.CommandSubmitScore,
			Score: core.ScoreSubmission{
				Loud:     m.Loud,
				Unity:    m.Unity,
				Pitch:    m.Pitch,
				ClipRate: m.ClipRate,
				Total:    m.Total,
			},
		}
	default:
		return &core.Command{Kind: core.CommandRequestState}
	}
}

func messageFromEvent(event *core.Event) proto.ServerMessage {
	switch event.Kind {
	case core.EventRoomCreated:
		return proto.RoomCreated{PIN: event.PIN, State: stateFromCore(event.State)}
	case core.EventJoined:
		return proto.Joined{PIN: event.PIN, State: stateFromCore(event.State), You: event.You}
	case core.EventState:
		return proto.StateUpdate{State: stateFromCore(event.State)}
	case core.EventRoundStart:
		return proto.RoundStart{Round: roundFromCore(*event.Round)}
	case core.EventLeaderboard:
		return proto.Leaderboard{Leaderboard: leaderboardFromCore(event.Leaderboard)}
	case core.EventError:
		if event.Error == nil {
			return proto.Error{Code: "unknown", Message: "unknown error"}
		}
		return proto.Error{Code: event.Error.Code, Message: event.Error.Message}
	default:
		return proto.Error{Code: "unknown", Message: "unknown event"}
	}
}

func stateFromCore(st *core.RoomState) proto.State {
	if st == nil {
		return proto.State{
			Players:     []proto.Player{},
			Rounds:      []proto.Round{},
			Leaderboard: []proto.LeaderboardEntry{},
		}
	}

	players := make([]proto.Player, 0, len(st.Players))
	for _, p := range st.Players {
		players = append(players, proto.Player{
			ID:        p.ID,
			Name:      p.Name,
			Headcount: p.Headcount,
			Ready:     p.Ready,
			IsHost:    p.IsHost,
		})
	}
	rounds := make([]proto.Round, 0, len(st.Rounds))
	for _, r := range st.Rounds {
		rounds = append(rounds, roundFromCore(r))
	}

	return proto.State{
		PIN:         st.PIN,
		Players:     players,
		Rounds:      rounds,
		Leaderboard: leaderboardFromCore(st.Leaderboard),
	}
}

func roundFromCore(r core.Round) proto.Round {
	return proto.Round{
		ID:    r.ID,
		Label: r.Label,
		Options: proto.RoundOptions{
			Seconds:  r.Options.Seconds,
			UseOsc:   r.Options.UseOsc,
			TargetHz: r.Options.TargetHz,
		},
		StartAt: r.StartAt.UnixMilli(),
	}
}

func leaderboardFromCore(entries []core.LeaderboardEntry) []proto.LeaderboardEntry {
	out := make([]proto.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, proto.LeaderboardEntry{
			PlayerID: e.PlayerID,
			Name:     e.Name,
			Score:    e.Score,
			Metrics: proto.Metrics{
				Loud:      e.Metrics.Loud,
				Unity:     e.Metrics.Unity,
				Pitch:     e.Metrics.Pitch,
				Headcount: e.Metrics.Headcount,
				ClipRate:  e.Metrics.ClipRate,
			},
		})
	}
	return out
}

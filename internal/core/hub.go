package core

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupshout/internal/store"
	"github.com/vovakirdan/groupshout/internal/utils"
)

// ErrHubStopped is returned when the hub loop is no longer running.
var ErrHubStopped = errors.New("hub stopped")

const (
	archiveTimeout = 2 * time.Second
	archiveBuffer  = 256
)

// HubOptions tunes the hub. Zero values are replaced by defaults.
type HubOptions struct {
	DefaultStartDelay time.Duration
	MaxStartDelay     time.Duration

	Now    func() time.Time
	NewPIN func() string
	NewID  func() string
}

func (o HubOptions) withDefaults() HubOptions {
	if o.DefaultStartDelay == 0 {
		o.DefaultStartDelay = 3 * time.Second
	}
	if o.MaxStartDelay == 0 {
		o.MaxStartDelay = 30 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewPIN == nil {
		o.NewPIN = utils.NewPIN
	}
	if o.NewID == nil {
		o.NewID = utils.NewID
	}
	return o
}

// RoomInfo is a read-only summary of a live room.
type RoomInfo struct {
	PIN          string
	Phase        Phase
	Players      int
	Rounds       int
	CurrentRound *Round
}

// hubMsg is one unit of work for the hub goroutine. Registration, commands and
// disconnects share one queue so a client's messages are handled in order.
type hubMsg interface{ isHubMsg() }

type registerMsg struct{ client *Client }

type unregisterMsg struct{ client *Client }

type commandMsg struct {
	client *Client
	cmd    *Command
}

type queryMsg struct{ fn func(h *Hub) }

func (registerMsg) isHubMsg()   {}
func (unregisterMsg) isHubMsg() {}
func (commandMsg) isHubMsg()    {}
func (queryMsg) isHubMsg()      {}

// Hub is the room registry. All room state is owned by the goroutine in Run,
// so room mutations are serialized without locks.
type Hub struct {
	inbox   chan hubMsg
	stopped chan struct{}

	clients map[string]*Client
	rooms   map[string]*Room

	results store.ResultStore
	archive chan func(ctx context.Context) error

	opts HubOptions
	log  *zerolog.Logger
}

// NewHub creates a hub. results may be nil to disable archiving.
func NewHub(results store.ResultStore, opts HubOptions, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		inbox:   make(chan hubMsg, 256),
		stopped: make(chan struct{}),
		clients: make(map[string]*Client),
		rooms:   make(map[string]*Room),
		results: results,
		archive: make(chan func(ctx context.Context) error, archiveBuffer),
		opts:    opts.withDefaults(),
		log:     logger,
	}
}

// Run processes hub messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	archiveDone := make(chan struct{})
	go func() {
		defer close(archiveDone)
		h.runArchive(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			<-archiveDone
			return
		case m := <-h.inbox:
			h.process(m)
		}
	}
}

// RegisterClient makes a connection known to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.enqueue(context.Background(), registerMsg{client: c})
}

// UnregisterClient handles a disconnect: the player leaves its room and the
// client's event channel is closed.
func (h *Hub) UnregisterClient(c *Client) {
	h.enqueue(context.Background(), unregisterMsg{client: c})
}

// Dispatch queues a command from c.
func (h *Hub) Dispatch(ctx context.Context, c *Client, cmd *Command) error {
	return h.enqueue(ctx, commandMsg{client: c, cmd: cmd})
}

// LookupRoom returns a summary of the live room with the given PIN.
func (h *Hub) LookupRoom(ctx context.Context, pin string) (RoomInfo, bool, error) {
	type reply struct {
		info RoomInfo
		ok   bool
	}
	ch := make(chan reply, 1)
	err := h.enqueue(ctx, queryMsg{fn: func(h *Hub) {
		room, ok := h.rooms[pin]
		if !ok {
			ch <- reply{}
			return
		}
		info := RoomInfo{
			PIN:     room.PIN,
			Phase:   room.Phase(h.opts.Now()),
			Players: room.Size(),
			Rounds:  len(room.rounds),
		}
		if r, ok := room.CurrentRound(); ok {
			info.CurrentRound = &r
		}
		ch <- reply{info: info, ok: true}
	}})
	if err != nil {
		return RoomInfo{}, false, err
	}

	select {
	case r := <-ch:
		return r.info, r.ok, nil
	case <-ctx.Done():
		return RoomInfo{}, false, ctx.Err()
	case <-h.stopped:
		return RoomInfo{}, false, ErrHubStopped
	}
}

// RoomCount returns the number of live rooms.
func (h *Hub) RoomCount(ctx context.Context) (int, error) {
	ch := make(chan int, 1)
	if err := h.enqueue(ctx, queryMsg{fn: func(h *Hub) { ch <- len(h.rooms) }}); err != nil {
		return 0, err
	}
	select {
	case n := <-ch:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-h.stopped:
		return 0, ErrHubStopped
	}
}

func (h *Hub) enqueue(ctx context.Context, m hubMsg) error {
	select {
	case h.inbox <- m:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) process(m hubMsg) {
	switch msg := m.(type) {
	case registerMsg:
		h.clients[msg.client.ID] = msg.client
	case unregisterMsg:
		h.disconnect(msg.client)
	case commandMsg:
		if _, ok := h.clients[msg.client.ID]; !ok {
			return
		}
		h.handle(msg.client, msg.cmd)
	case queryMsg:
		msg.fn(h)
	}
}

func (h *Hub) handle(c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandCreateRoom:
		h.createRoom(c, cmd)
	case CommandJoinRoom:
		h.joinRoom(c, cmd)
	case CommandSetReady:
		h.setReady(c, cmd)
	case CommandUpdatePlayer:
		h.updatePlayer(c, cmd)
	case CommandStartRound:
		h.startRound(c, cmd)
	case CommandSubmitScore:
		h.submitScore(c, cmd)
	case CommandRequestState:
		h.requestState(c)
	default:
		h.sendError(c, badRequest("unknown command"))
	}
}

func (h *Hub) createRoom(c *Client, cmd *Command) {
	headcount, err := validateHeadcount(cmd.Headcount)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.leaveRoom(c)

	pin := h.uniquePIN()
	room := NewRoom(pin, Player{
		ID:        c.ID,
		Name:      cleanName(cmd.Name, DefaultHostName),
		Headcount: headcount,
	}, c, h.opts.Now())
	h.rooms[pin] = room
	c.room = room

	h.log.Info().Str("pin", pin).Str("client_id", c.ID).Msg("room created")
	h.send(c, &Event{Kind: EventRoomCreated, PIN: pin, State: room.Snapshot()})
}

func (h *Hub) joinRoom(c *Client, cmd *Command) {
	room, ok := h.rooms[cmd.PIN]
	if !ok {
		h.log.Debug().Str("pin", cmd.PIN).Str("client_id", c.ID).Msg("join for unknown room")
		h.sendError(c, roomNotFound())
		return
	}
	headcount, err := validateHeadcount(cmd.Headcount)
	if err != nil {
		h.fail(c, err)
		return
	}

	if c.room != nil && c.room != room {
		h.leaveRoom(c)
	}

	room.AddClient(c, Player{
		ID:        c.ID,
		Name:      cleanName(cmd.Name, DefaultPlayerName),
		Headcount: headcount,
	})
	c.room = room

	h.log.Info().Str("pin", room.PIN).Str("client_id", c.ID).Int("players", room.Size()).Msg("player joined")
	state := room.Snapshot()
	h.send(c, &Event{Kind: EventJoined, PIN: room.PIN, You: c.ID, State: state})
	h.broadcast(room, &Event{Kind: EventState, PIN: room.PIN, State: state})
}

func (h *Hub) setReady(c *Client, cmd *Command) {
	room, player := h.membership(c)
	if player == nil {
		return
	}
	player.Ready = cmd.Ready
	h.broadcast(room, &Event{Kind: EventState, PIN: room.PIN, State: room.Snapshot()})
}

func (h *Hub) updatePlayer(c *Client, cmd *Command) {
	room, player := h.membership(c)
	if player == nil {
		return
	}
	if cmd.NewHeadcount != nil {
		headcount, err := validateHeadcount(*cmd.NewHeadcount)
		if err != nil {
			h.fail(c, err)
			return
		}
		player.Headcount = headcount
	}
	if cmd.NewName != nil {
		player.Name = cleanName(*cmd.NewName, player.Name)
	}
	h.broadcast(room, &Event{Kind: EventState, PIN: room.PIN, State: room.Snapshot()})
}

func (h *Hub) startRound(c *Client, cmd *Command) {
	room := c.room
	if room == nil {
		return
	}
	if room.HostID != c.ID {
		h.log.Debug().Str("pin", room.PIN).Str("client_id", c.ID).Msg("non-host start_round rejected")
		h.sendError(c, notHost())
		return
	}
	opts, err := cmd.Options.Validate()
	if err != nil {
		h.fail(c, err)
		return
	}
	delay, err := validateDelay(cmd.DelayMs, h.opts.DefaultStartDelay, h.opts.MaxStartDelay)
	if err != nil {
		h.fail(c, err)
		return
	}

	now := h.opts.Now()
	round := Round{
		ID:      h.opts.NewID(),
		Label:   cleanName(cmd.Label, DefaultRoundLabel),
		Options: opts,
		StartAt: time.UnixMilli(now.Add(delay).UnixMilli()),
	}
	room.StartRound(round)

	h.log.Info().
		Str("pin", room.PIN).
		Str("round_id", round.ID).
		Str("label", round.Label).
		Time("start_at", round.StartAt).
		Float64("seconds", opts.Seconds).
		Msg("round scheduled")

	h.archiveRound(room.PIN, round, now)
	h.broadcast(room, &Event{Kind: EventRoundStart, PIN: room.PIN, Round: &round})
}

func (h *Hub) submitScore(c *Client, cmd *Command) {
	room, player := h.membership(c)
	if player == nil {
		return
	}

	entry := LeaderboardEntry{
		PlayerID: player.ID,
		Name:     player.Name,
		Score:    clampScore(cmd.Score.Total),
		Metrics: Metrics{
			Loud:      cmd.Score.Loud,
			Unity:     cmd.Score.Unity,
			Pitch:     cmd.Score.Pitch,
			Headcount: player.Headcount,
			ClipRate:  cmd.Score.ClipRate,
		},
	}
	room.Upsert(entry)

	h.log.Info().
		Str("pin", room.PIN).
		Str("client_id", c.ID).
		Float64("score", entry.Score).
		Msg("score submitted")

	if round, ok := room.CurrentRound(); ok {
		h.archiveResult(room.PIN, round.ID, entry)
	}
	h.broadcast(room, &Event{Kind: EventLeaderboard, PIN: room.PIN, Leaderboard: room.Leaderboard()})
}

func (h *Hub) requestState(c *Client) {
	room := c.room
	if room == nil {
		return
	}
	h.send(c, &Event{Kind: EventState, PIN: room.PIN, State: room.Snapshot()})
}

func (h *Hub) disconnect(c *Client) {
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	h.leaveRoom(c)
	close(c.Events)
}

// leaveRoom removes c from its room, destroying the room when it empties.
// The host role is never reassigned.
func (h *Hub) leaveRoom(c *Client) {
	room := c.room
	if room == nil {
		return
	}
	room.RemoveClient(c.ID)
	c.room = nil

	if room.Empty() {
		delete(h.rooms, room.PIN)
		h.log.Info().Str("pin", room.PIN).Msg("room closed")
		return
	}
	h.log.Info().Str("pin", room.PIN).Str("client_id", c.ID).Int("players", room.Size()).Msg("player left")
	h.broadcast(room, &Event{Kind: EventState, PIN: room.PIN, State: room.Snapshot()})
}

func (h *Hub) membership(c *Client) (*Room, *Player) {
	room := c.room
	if room == nil {
		return nil, nil
	}
	player, ok := room.Player(c.ID)
	if !ok {
		return nil, nil
	}
	return room, player
}

func (h *Hub) uniquePIN() string {
	for {
		pin := h.opts.NewPIN()
		if _, taken := h.rooms[pin]; !taken {
			return pin
		}
		h.log.Debug().Str("pin", pin).Msg("pin collision, regenerating")
	}
}

func (h *Hub) send(c *Client, ev *Event) {
	if !c.send(ev) {
		h.log.Warn().Str("client_id", c.ID).Msg("client event buffer full, dropping event")
	}
}

func (h *Hub) sendError(c *Client, err *CoreError) {
	h.send(c, &Event{Kind: EventError, Error: err})
}

func (h *Hub) fail(c *Client, err error) {
	var ce *CoreError
	if !errors.As(err, &ce) {
		ce = badRequest(err.Error())
	}
	h.sendError(c, ce)
}

func (h *Hub) broadcast(room *Room, ev *Event) {
	if dropped := room.Broadcast(ev); dropped > 0 {
		h.log.Warn().Str("pin", room.PIN).Int("dropped", dropped).Msg("slow clients skipped during broadcast")
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// Package client is the classroom side of the game: a reconnecting websocket
// transport and a Session that tracks the room and runs rounds.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupshout/internal/proto"
)

// ErrNotConnected is returned by Send while the transport is down.
var ErrNotConnected = errors.New("not connected")

const (
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxBackoff     = 10 * time.Second
)

// ConnConfig configures a reconnecting connection.
type ConnConfig struct {
	URL            string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Logger         *zerolog.Logger

	// OnConnect runs after every successful dial, before any message is read.
	// reconnect is false for the first connection.
	OnConnect func(ctx context.Context, reconnect bool)
	// OnMessage receives every decoded server message. Malformed frames are dropped.
	OnMessage func(ctx context.Context, msg proto.ServerMessage)
}

// Conn keeps one websocket to the server alive, redialing with exponential
// backoff for as long as Run's context lives.
type Conn struct {
	cfg ConnConfig
	log *zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewConn creates a connection. Nothing is dialed until Run.
func NewConn(cfg ConnConfig) *Conn {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Conn{cfg: cfg, log: logger}
}

// newBackOff doubles from InitialBackoff up to MaxBackoff and never gives up.
func (c *Conn) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.cfg.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Run dials, reads and redials until ctx is cancelled. It returns ctx.Err().
// Every dial after the first waits the next backoff interval; a successful
// connection resets the interval to InitialBackoff.
func (c *Conn) Run(ctx context.Context) error {
	b := c.newBackOff()
	reconnect := false

	for {
		conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := b.NextBackOff()
			c.log.Warn().Err(err).Dur("retry_in", wait).Msg("dial failed")
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		b.Reset()

		c.setConn(conn)
		c.log.Info().Str("url", c.cfg.URL).Bool("reconnect", reconnect).Msg("connected")
		if c.cfg.OnConnect != nil {
			c.cfg.OnConnect(ctx, reconnect)
		}
		reconnect = true

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		_ = conn.CloseNow()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		wait := b.NextBackOff()
		c.log.Warn().Err(err).Dur("retry_in", wait).Msg("connection lost")
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Conn) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		msg, err := proto.DecodeServer(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("dropping malformed server frame")
			continue
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(ctx, msg)
		}
	}
}

func (c *Conn) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// Connected reports whether a connection is currently up.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send writes one message. It fails with ErrNotConnected while disconnected.
func (c *Conn) Send(ctx context.Context, msg proto.ClientMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := proto.Encode(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupshout/internal/config"
	"github.com/vovakirdan/groupshout/internal/core"
	"github.com/vovakirdan/groupshout/internal/proto"
	"github.com/vovakirdan/groupshout/internal/utils"
)

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub             *core.Hub
	maxMessageBytes int64
	perSecond       float64
	burst           int
	log             *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{
		hub:             hub,
		maxMessageBytes: cfg.MaxMessageBytes,
		perSecond:       cfg.MessagesPerSecond,
		burst:           cfg.MessageBurst,
		log:             logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	client := core.NewClient(utils.NewID())
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	h.log.Debug().Str("client_id", client.ID).Str("remote", r.RemoteAddr).Msg("ws connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	h.log.Debug().Str("client_id", client.ID).Msg("ws disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.perSecond, h.burst)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.log.Debug().Str("client_id", client.ID).Msg("dropping binary frame")
			continue
		}
		if !limiter.allow() {
			h.log.Debug().Str("client_id", client.ID).Msg("rate limit exceeded, dropping frame")
			continue
		}

		msg, err := proto.DecodeClient(data)
		if err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("dropping malformed frame")
			continue
		}

		if err := h.hub.Dispatch(ctx, client, messageToCommand(msg)); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			data, err := proto.Encode(messageFromEvent(event))
			if err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("encode ws event")
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"

	"github.com/vovakirdan/groupshout/internal/core"
	"github.com/vovakirdan/groupshout/internal/utils"
)

const inviteQRSize = 320

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomHandlers serves read-only views of live rooms.
type RoomHandlers struct {
	hub       *core.Hub
	publicURL string
	log       *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(hub *core.Hub, publicURL string, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		hub:       hub,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       logger,
	}
}

// RoomResponse summarizes a live room.
type RoomResponse struct {
	PIN     string `json:"pin"`
	Phase   string `json:"phase"`
	Players int    `json:"players"`
	Rounds  int    `json:"rounds"`
}

// GetRoom reports whether a room is live and what it is doing.
// GET /api/rooms/:pin
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	info, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, RoomResponse{
		PIN:     info.PIN,
		Phase:   string(info.Phase),
		Players: info.Players,
		Rounds:  info.Rounds,
	})
}

// Invite renders a QR code pointing at the join page of a live room.
// GET /api/rooms/:pin/invite.png
func (h *RoomHandlers) Invite(c *gin.Context) {
	info, ok := h.lookup(c)
	if !ok {
		return
	}

	png, err := qrcode.Encode(h.InviteURL(info.PIN), qrcode.Medium, inviteQRSize)
	if err != nil {
		h.log.Error().Err(err).Str("pin", info.PIN).Msg("qr generation failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "qr generation failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// InviteURL is the link encoded into invite QR codes.
func (h *RoomHandlers) InviteURL(pin string) string {
	return h.publicURL + "/?pin=" + url.QueryEscape(pin)
}

func (h *RoomHandlers) lookup(c *gin.Context) (core.RoomInfo, bool) {
	pin := c.Param("pin")
	if !utils.IsPIN(pin) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid pin"})
		return core.RoomInfo{}, false
	}

	info, ok, err := h.hub.LookupRoom(c.Request.Context(), pin)
	if err != nil {
		h.log.Error().Err(err).Str("pin", pin).Msg("room lookup failed")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service unavailable"})
		return core.RoomInfo{}, false
	}
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return core.RoomInfo{}, false
	}
	return info, true
}

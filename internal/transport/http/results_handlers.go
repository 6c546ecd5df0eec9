package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/groupshout/internal/store"
)

// ResultsHandlers serves the archived round results.
type ResultsHandlers struct {
	store store.ResultStore
	log   *zerolog.Logger
}

// NewResultsHandlers creates a new results handlers instance.
func NewResultsHandlers(st store.ResultStore, logger *zerolog.Logger) *ResultsHandlers {
	return &ResultsHandlers{store: st, log: logger}
}

// ResultResponse is one archived submission.
type ResultResponse struct {
	PlayerID    string  `json:"player_id"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Loud        float64 `json:"loud"`
	Unity       float64 `json:"unity"`
	Pitch       float64 `json:"pitch"`
	ClipRate    float64 `json:"clip_rate"`
	Headcount   int     `json:"headcount"`
	SubmittedAt string  `json:"submitted_at"`
}

// RoundResultsResponse is an archived round and its results, best first.
type RoundResultsResponse struct {
	RoundID  string           `json:"round_id"`
	PIN      string           `json:"pin"`
	Label    string           `json:"label"`
	Seconds  float64          `json:"seconds"`
	TargetHz float64          `json:"target_hz"`
	StartAt  string           `json:"start_at"`
	Results  []ResultResponse `json:"results"`
}

// ListResults returns a round's archived results.
// GET /api/rounds/:id/results
func (h *ResultsHandlers) ListResults(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "results archive disabled"})
		return
	}

	id := c.Param("id")
	ctx := c.Request.Context()

	round, err := h.store.GetRound(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "round not found"})
			return
		}
		h.log.Error().Err(err).Str("round_id", id).Msg("failed to get round")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	results, err := h.store.ListResults(ctx, id)
	if err != nil {
		h.log.Error().Err(err).Str("round_id", id).Msg("failed to list results")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := RoundResultsResponse{
		RoundID:  round.ID,
		PIN:      round.PIN,
		Label:    round.Label,
		Seconds:  round.Seconds,
		TargetHz: round.TargetHz,
		StartAt:  round.StartAt.Format(time.RFC3339Nano),
		Results:  make([]ResultResponse, 0, len(results)),
	}
	for _, r := range results {
		resp.Results = append(resp.Results, ResultResponse{
			PlayerID:    r.PlayerID,
			Name:        r.Name,
			Score:       r.Score,
			Loud:        r.Loud,
			Unity:       r.Unity,
			Pitch:       r.Pitch,
			ClipRate:    r.ClipRate,
			Headcount:   r.Headcount,
			SubmittedAt: r.SubmittedAt.Format(time.RFC3339Nano),
		})
	}

	h.log.Debug().Str("round_id", id).Int("results", len(results)).Msg("round results listed")
	c.JSON(http.StatusOK, resp)
}

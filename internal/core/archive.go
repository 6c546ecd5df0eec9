package core

import (
	"context"
	"time"

	"github.com/vovakirdan/groupshout/internal/store"
)

// runArchive drains archive jobs until ctx is cancelled. Jobs still queued at
// shutdown are flushed with a short deadline.
func (h *Hub) runArchive(ctx context.Context) {
	for {
		select {
		case job := <-h.archive:
			h.runArchiveJob(job)
		case <-ctx.Done():
			for {
				select {
				case job := <-h.archive:
					h.runArchiveJob(job)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) runArchiveJob(job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := job(ctx); err != nil {
		h.log.Error().Err(err).Msg("archive write failed")
	}
}

func (h *Hub) enqueueArchive(job func(ctx context.Context) error) {
	if h.results == nil {
		return
	}
	select {
	case h.archive <- job:
	default:
		h.log.Warn().Msg("archive queue full, dropping record")
	}
}

func (h *Hub) archiveRound(pin string, round Round, createdAt time.Time) {
	rec := store.RoundRecord{
		ID:        round.ID,
		PIN:       pin,
		Label:     round.Label,
		Seconds:   round.Options.Seconds,
		UseOsc:    round.Options.UseOsc,
		TargetHz:  round.Options.TargetHz,
		StartAt:   round.StartAt,
		CreatedAt: createdAt,
	}
	h.enqueueArchive(func(ctx context.Context) error {
		return h.results.SaveRound(ctx, rec)
	})
}

func (h *Hub) archiveResult(pin, roundID string, entry LeaderboardEntry) {
	rec := store.ResultRecord{
		RoundID:     roundID,
		PIN:         pin,
		PlayerID:    entry.PlayerID,
		Name:        entry.Name,
		Score:       entry.Score,
		Loud:        entry.Metrics.Loud,
		Unity:       entry.Metrics.Unity,
		Pitch:       entry.Metrics.Pitch,
		ClipRate:    entry.Metrics.ClipRate,
		Headcount:   entry.Metrics.Headcount,
		SubmittedAt: h.opts.Now(),
	}
	h.enqueueArchive(func(ctx context.Context) error {
		return h.results.SaveResult(ctx, rec)
	})
}

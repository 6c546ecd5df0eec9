package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// RoundRecord is an archived round.
type RoundRecord struct {
	ID        string
	PIN       string
	Label     string
	Seconds   float64
	UseOsc    bool
	TargetHz  float64
	StartAt   time.Time
	CreatedAt time.Time
}

// ResultRecord is an archived score submission. One row per (round, player);
// later submissions replace earlier ones.
type ResultRecord struct {
	RoundID     string
	PIN         string
	PlayerID    string
	Name        string
	Score       float64
	Loud        float64
	Unity       float64
	Pitch       float64
	ClipRate    float64
	Headcount   int
	SubmittedAt time.Time
}

// ResultStore archives rounds and their results. It is write-mostly: room
// state is never rebuilt from it.
type ResultStore interface {
	SaveRound(ctx context.Context, round RoundRecord) error
	SaveResult(ctx context.Context, result ResultRecord) error
	GetRound(ctx context.Context, id string) (*RoundRecord, error)
	ListResults(ctx context.Context, roundID string) ([]ResultRecord, error)
	Close() error
}

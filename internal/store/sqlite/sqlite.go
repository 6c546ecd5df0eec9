package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/groupshout/internal/store"
)

// Schema creates the archive tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS rounds (
	id         TEXT PRIMARY KEY,
	pin        TEXT NOT NULL,
	label      TEXT NOT NULL,
	seconds    REAL NOT NULL,
	use_osc    BOOLEAN NOT NULL DEFAULT 0,
	target_hz  REAL NOT NULL,
	start_at   DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS round_results (
	round_id     TEXT NOT NULL,
	pin          TEXT NOT NULL,
	player_id    TEXT NOT NULL,
	name         TEXT NOT NULL,
	score        REAL NOT NULL,
	loud         REAL NOT NULL,
	unity        REAL NOT NULL,
	pitch        REAL NOT NULL,
	clip_rate    REAL NOT NULL,
	headcount    INTEGER NOT NULL,
	submitted_at DATETIME NOT NULL,
	PRIMARY KEY (round_id, player_id)
);

CREATE INDEX IF NOT EXISTS idx_round_results_score ON round_results(round_id, score DESC);
`

// SQLiteStore implements store.ResultStore for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.ResultStore = (*SQLiteStore)(nil)

// New opens the archive at dbPath and applies the schema.
// ":memory:" keeps everything in process memory.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and consistent.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func dsn(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		return path
	}
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveRound inserts or replaces a round.
func (s *SQLiteStore) SaveRound(ctx context.Context, round store.RoundRecord) error {
	query := `
		INSERT OR REPLACE INTO rounds (id, pin, label, seconds, use_osc, target_hz, start_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		round.ID, round.PIN, round.Label, round.Seconds, round.UseOsc, round.TargetHz,
		round.StartAt.UTC(), round.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// SaveResult upserts a player's result for a round.
func (s *SQLiteStore) SaveResult(ctx context.Context, r store.ResultRecord) error {
	query := `
		INSERT INTO round_results
			(round_id, pin, player_id, name, score, loud, unity, pitch, clip_rate, headcount, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (round_id, player_id) DO UPDATE SET
			name = excluded.name,
			score = excluded.score,
			loud = excluded.loud,
			unity = excluded.unity,
			pitch = excluded.pitch,
			clip_rate = excluded.clip_rate,
			headcount = excluded.headcount,
			submitted_at = excluded.submitted_at
	`
	_, err := s.db.ExecContext(ctx, query,
		r.RoundID, r.PIN, r.PlayerID, r.Name, r.Score, r.Loud, r.Unity, r.Pitch, r.ClipRate,
		r.Headcount, r.SubmittedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

// GetRound retrieves a round by ID.
func (s *SQLiteStore) GetRound(ctx context.Context, id string) (*store.RoundRecord, error) {
	query := `
		SELECT id, pin, label, seconds, use_osc, target_hz, start_at, created_at
		FROM rounds
		WHERE id = ?
	`
	var r store.RoundRecord
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.PIN, &r.Label, &r.Seconds, &r.UseOsc, &r.TargetHz, &r.StartAt, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("round %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query round: %w", err)
	}
	return &r, nil
}

// ListResults returns a round's results, best score first.
func (s *SQLiteStore) ListResults(ctx context.Context, roundID string) ([]store.ResultRecord, error) {
	query := `
		SELECT round_id, pin, player_id, name, score, loud, unity, pitch, clip_rate, headcount, submitted_at
		FROM round_results
		WHERE round_id = ?
		ORDER BY score DESC, submitted_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := make([]store.ResultRecord, 0)
	for rows.Next() {
		var r store.ResultRecord
		var submittedAt time.Time
		if err := rows.Scan(
			&r.RoundID, &r.PIN, &r.PlayerID, &r.Name, &r.Score, &r.Loud, &r.Unity, &r.Pitch,
			&r.ClipRate, &r.Headcount, &submittedAt,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.SubmittedAt = submittedAt
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

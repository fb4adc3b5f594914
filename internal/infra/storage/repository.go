// Package storage provides the persistence layer for the match server.
// The engine only sees its own interfaces; the repositories here implement them.
package storage

import (
	"context"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/engine"
)

// EventRecord is one row of the events table.
type EventRecord struct {
	ID         string    `json:"id" db:"id"`
	MatchID    string    `json:"match_id" db:"match_id"`
	Seq        int64     `json:"seq" db:"seq"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
	EventType  string    `json:"event_type" db:"event_type"`
	ActorID    string    `json:"actor_id" db:"actor_id"`
	TargetID   string    `json:"target_id" db:"target_id"`
	Payload    string    `json:"payload" db:"payload"` // JSON text
	Round      int       `json:"round" db:"round"`
	IsRevealed bool      `json:"is_revealed" db:"is_revealed"`
}

// EventRepository reads and writes the persisted match log.
type EventRepository interface {
	// Save adds an event to the ledger. Rows are never updated.
	Save(ctx context.Context, event EventRecord) error

	// ByMatch returns a match's events in the order they were written.
	ByMatch(ctx context.Context, matchID string) ([]EventRecord, error)

	// ByActor returns the events one player performed.
	ByActor(ctx context.Context, matchID, actorID string) ([]EventRecord, error)

	// ByRound returns the events of one round.
	ByRound(ctx context.Context, matchID string, round int) ([]EventRecord, error)

	// ByType returns the events of one type.
	ByType(ctx context.Context, matchID, eventType string) ([]EventRecord, error)

	// Revealed returns the events that were public while the match ran.
	Revealed(ctx context.Context, matchID string) ([]EventRecord, error)
}

// MatchRow is one row of the matches table.
type MatchRow struct {
	MatchID    string    `db:"match_id"`
	Title      string    `db:"title"`
	Faction    string    `db:"faction"`
	Reason     string    `db:"reason"`
	Rounds     int       `db:"rounds"`
	Winners    string    `db:"winners"` // JSON array
	FinishedAt time.Time `db:"finished_at"`
}

// PlayerRow is one row of the match_players table.
type PlayerRow struct {
	MatchID string `db:"match_id"`
	engine.PlayerResult
}

// ResultRepository stores finished matches. It satisfies engine.ResultRecorder.
type ResultRepository interface {
	RecordMatchResult(ctx context.Context, result engine.MatchResult) error

	// Get returns a stored result, or nil when the match was never recorded.
	Get(ctx context.Context, matchID string) (*engine.MatchResult, error)

	// Recent returns the latest results, newest first.
	Recent(ctx context.Context, limit int) ([]engine.MatchResult, error)
}

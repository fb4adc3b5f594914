package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Fezudo98/cidade-dorme-online/internal/engine"
	"github.com/Fezudo98/cidade-dorme-online/internal/events"
)

// writeTimeout bounds a write-through from the event log, which has no caller context.
const writeTimeout = 5 * time.Second

const eventColumns = `seq, id, match_id, timestamp, event_type, actor_id, target_id, payload, round, is_revealed`

// SQLiteEventRepository implements EventRepository for SQLite.
// It also satisfies events.EventPersister so a match log can write through to it.
type SQLiteEventRepository struct {
	db *sqlx.DB
}

func NewSQLiteEventRepository(db *sqlx.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Save(ctx context.Context, event EventRecord) error {
	query := `
		INSERT INTO events (id, match_id, timestamp, event_type, actor_id, target_id, payload, round, is_revealed)
		VALUES (:id, :match_id, :timestamp, :event_type, :actor_id, :target_id, :payload, :round, :is_revealed)
	`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Append converts a match log event and saves it.
func (r *SQLiteEventRepository) Append(event events.GameEvent) error {
	rec, err := FromGameEvent(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return r.Save(ctx, rec)
}

// FromGameEvent flattens a log event into a row.
func FromGameEvent(e events.GameEvent) (EventRecord, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return EventRecord{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return EventRecord{
		ID:         e.ID,
		MatchID:    e.MatchID,
		Timestamp:  e.Timestamp.UTC(),
		EventType:  string(e.Type),
		ActorID:    e.ActorID,
		TargetID:   e.TargetID,
		Payload:    string(payload),
		Round:      e.Round,
		IsRevealed: e.IsRevealed,
	}, nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, where string, args ...interface{}) ([]EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where + ` ORDER BY timestamp ASC, seq ASC`
	var out []EventRecord
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return out, nil
}

func (r *SQLiteEventRepository) ByMatch(ctx context.Context, matchID string) ([]EventRecord, error) {
	return r.getMany(ctx, `match_id = ?`, matchID)
}

func (r *SQLiteEventRepository) ByActor(ctx context.Context, matchID, actorID string) ([]EventRecord, error) {
	return r.getMany(ctx, `match_id = ? AND actor_id = ?`, matchID, actorID)
}

func (r *SQLiteEventRepository) ByRound(ctx context.Context, matchID string, round int) ([]EventRecord, error) {
	return r.getMany(ctx, `match_id = ? AND round = ?`, matchID, round)
}

func (r *SQLiteEventRepository) ByType(ctx context.Context, matchID, eventType string) ([]EventRecord, error) {
	return r.getMany(ctx, `match_id = ? AND event_type = ?`, matchID, eventType)
}

func (r *SQLiteEventRepository) Revealed(ctx context.Context, matchID string) ([]EventRecord, error) {
	return r.getMany(ctx, `match_id = ? AND is_revealed = 1`, matchID)
}

// ---------------------------------------------------------
// SQLiteResultRepository
// ---------------------------------------------------------

type SQLiteResultRepository struct {
	db *sqlx.DB
}

func NewSQLiteResultRepository(db *sqlx.DB) *SQLiteResultRepository {
	return &SQLiteResultRepository{db: db}
}

// RecordMatchResult writes the match and its seats in one transaction.
// Recording the same match twice fails on the primary key.
func (r *SQLiteResultRepository) RecordMatchResult(ctx context.Context, result engine.MatchResult) error {
	winners, err := json.Marshal(result.Winners)
	if err != nil {
		return fmt.Errorf("failed to marshal winners: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := MatchRow{
		MatchID:    result.MatchID,
		Title:      result.Title,
		Faction:    result.Faction,
		Reason:     result.Reason,
		Rounds:     result.Rounds,
		Winners:    string(winners),
		FinishedAt: result.FinishedAt.UTC(),
	}
	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO matches (match_id, title, faction, reason, rounds, winners, finished_at)
		VALUES (:match_id, :title, :faction, :reason, :rounds, :winners, :finished_at)
	`, row)
	if err != nil {
		return fmt.Errorf("failed to record match %s: %w", result.MatchID, err)
	}

	for _, p := range result.Players {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO match_players (match_id, player_id, name, role, faction, alive, winner)
			VALUES (:match_id, :player_id, :name, :role, :faction, :alive, :winner)
		`, PlayerRow{MatchID: result.MatchID, PlayerResult: p})
		if err != nil {
			return fmt.Errorf("failed to record player %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteResultRepository) Get(ctx context.Context, matchID string) (*engine.MatchResult, error) {
	var row MatchRow
	err := r.db.GetContext(ctx, &row, `SELECT match_id, title, faction, reason, rounds, winners, finished_at FROM matches WHERE match_id = ?`, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load match %s: %w", matchID, err)
	}
	res, err := r.hydrate(ctx, row)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *SQLiteResultRepository) Recent(ctx context.Context, limit int) ([]engine.MatchResult, error) {
	var rows []MatchRow
	err := r.db.SelectContext(ctx, &rows, `SELECT match_id, title, faction, reason, rounds, winners, finished_at FROM matches ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	out := make([]engine.MatchResult, 0, len(rows))
	for _, row := range rows {
		res, err := r.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func (r *SQLiteResultRepository) hydrate(ctx context.Context, row MatchRow) (engine.MatchResult, error) {
	res := engine.MatchResult{
		MatchID:    row.MatchID,
		Title:      row.Title,
		Faction:    row.Faction,
		Reason:     row.Reason,
		Rounds:     row.Rounds,
		FinishedAt: row.FinishedAt,
	}
	if err := json.Unmarshal([]byte(row.Winners), &res.Winners); err != nil {
		return res, fmt.Errorf("failed to decode winners of %s: %w", row.MatchID, err)
	}
	var players []PlayerRow
	err := r.db.SelectContext(ctx, &players, `SELECT match_id, player_id, name, role, faction, alive, winner FROM match_players WHERE match_id = ? ORDER BY rowid`, row.MatchID)
	if err != nil {
		return res, fmt.Errorf("failed to load players of %s: %w", row.MatchID, err)
	}
	for _, p := range players {
		res.Players = append(res.Players, p.PlayerResult)
	}
	return res, nil
}

var (
	_ EventRepository       = (*SQLiteEventRepository)(nil)
	_ events.EventPersister = (*SQLiteEventRepository)(nil)
	_ ResultRepository      = (*SQLiteResultRepository)(nil)
	_ engine.ResultRecorder = (*SQLiteResultRepository)(nil)
)

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// PoolOptions tunes the connection pool.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// InitSQLite opens the local SQLite database and creates the schemas for match
// results and the match event log. ":memory:" is accepted for tests.
func InitSQLite(ctx context.Context, dbPath string, pool PoolOptions) (*sqlx.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: shared.
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 1
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = 1
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := createSchemas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}
	return db, nil
}

func createSchemas(ctx context.Context, db *sqlx.DB) error {
	schemas := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS matches (
			match_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			faction TEXT NOT NULL,
			reason TEXT NOT NULL,
			rounds INTEGER NOT NULL,
			winners TEXT NOT NULL,
			finished_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS match_players (
			match_id TEXT NOT NULL,
			player_id TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL,
			faction TEXT NOT NULL,
			alive BOOLEAN NOT NULL,
			winner BOOLEAN NOT NULL,
			PRIMARY KEY (match_id, player_id),
			FOREIGN KEY (match_id) REFERENCES matches(match_id)
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			match_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			round INTEGER NOT NULL,
			is_revealed BOOLEAN NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_match_id ON events(match_id);`,
		`CREATE INDEX IF NOT EXISTS idx_events_actor_id ON events(match_id, actor_id);`,
		`CREATE INDEX IF NOT EXISTS idx_match_players_player ON match_players(player_id);`,
	}

	for _, query := range schemas {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

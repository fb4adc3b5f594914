// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the host process needs at boot.
type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	DBPath    string `env:"DB_PATH" envDefault:"data/cidade.db"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	Game    GameConfig   `envPrefix:"GAME_"`
	Buffers BufferConfig `envPrefix:"BUFFER_"`
	DB      DBPoolConfig `envPrefix:"DB_"`
	Limits  ClientLimits `envPrefix:"CLIENT_"`
}

// GameConfig is the read-only rule configuration handed to every match.
type GameConfig struct {
	MinPlayers         int           `env:"MIN_PLAYERS" envDefault:"5"`
	MaxPlayers         int           `env:"MAX_PLAYERS" envDefault:"16"`
	NightDuration      time.Duration `env:"NIGHT_DURATION" envDefault:"60s"`
	DiscussionDuration time.Duration `env:"DISCUSSION_DURATION" envDefault:"45s"`
	VoteDuration       time.Duration `env:"VOTE_DURATION" envDefault:"30s"`
	ShowdownTimeout    time.Duration `env:"SHOWDOWN_TIMEOUT" envDefault:"120s"`
	RoundLimit         int           `env:"ROUND_LIMIT" envDefault:"7"`
}

// BufferConfig sizes the channels between the engine and the network layer.
type BufferConfig struct {
	ClientSend int `env:"CLIENT_SEND" envDefault:"256"`
	Broadcast  int `env:"BROADCAST" envDefault:"256"`
	// Outbox is the per-match delivery backlog that triggers a warning.
	Outbox int `env:"OUTBOX" envDefault:"64"`
}

// DBPoolConfig tunes the SQLite connection pool.
type DBPoolConfig struct {
	MaxOpenConns int `env:"MAX_OPEN_CONNS" envDefault:"1"`
	MaxIdleConns int `env:"MAX_IDLE_CONNS" envDefault:"1"`
}

// ClientLimits throttles WebSocket commands per connection.
type ClientLimits struct {
	MinCommandGap  time.Duration `env:"MIN_COMMAND_GAP" envDefault:"250ms"`
	MaxMessageSize int64         `env:"MAX_MESSAGE_SIZE" envDefault:"1024"`
}

// Load reads an optional .env file and then CDO_* variables.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "CDO_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no match could run with.
func (c Config) Validate() error {
	g := c.Game
	if g.MinPlayers < 1 || g.MaxPlayers < g.MinPlayers {
		return fmt.Errorf("invalid seat range %d-%d", g.MinPlayers, g.MaxPlayers)
	}
	if g.NightDuration <= 0 || g.DiscussionDuration <= 0 || g.VoteDuration <= 0 || g.ShowdownTimeout <= 0 {
		return errors.New("phase durations must be positive")
	}
	if g.RoundLimit < 1 {
		return fmt.Errorf("invalid round limit %d", g.RoundLimit)
	}
	return nil
}

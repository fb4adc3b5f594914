package engine

import (
	"context"
	"fmt"
	"time"
)

// Cause tags why a player died.
type Cause string

const (
	CauseVillainVote  Cause = "villain_vote"
	CauseWitchKill    Cause = "witch_kill"
	CauseSacrifice    Cause = "sacrifice"
	CausePlague       Cause = "plague"
	CauseLynch        Cause = "lynch"
	CauseHeartbreak   Cause = "heartbreak"
	CauseJuniorCurse  Cause = "junior_curse"
	CauseSheriffShot  Cause = "sheriff_shot"
	CauseShowdownShot Cause = "showdown_shot"
)

// DeathRecord is one resolved death.
type DeathRecord struct {
	Victim      string   `json:"victim"`
	Cause       Cause    `json:"cause"`
	Responsible []string `json:"responsible,omitempty"`
}

// Revival is one successful revival.
type Revival struct {
	Target  string `json:"target"`
	Reviver string `json:"reviver"`
}

// Notice is a message for one player, or for the match channel when PlayerID is empty.
type Notice struct {
	PlayerID string
	Content  string
}

// Outcome is what a resolver hands back to the controller.
type Outcome struct {
	Deaths      []DeathRecord
	Revivals    []Revival
	Conversions []string
	Notices     []Notice
	// SoloWin ends the match immediately; later stages are skipped.
	SoloWin *WinResult
}

func (o *Outcome) public(format string, args ...interface{}) {
	o.Notices = append(o.Notices, Notice{Content: fmt.Sprintf(format, args...)})
}

func (o *Outcome) private(playerID, format string, args ...interface{}) {
	o.Notices = append(o.Notices, Notice{PlayerID: playerID, Content: fmt.Sprintf(format, args...)})
}

func (o *Outcome) dies(id string) bool {
	for _, d := range o.Deaths {
		if d.Victim == id {
			return true
		}
	}
	return false
}

// WinResult is a terminal verdict. Err is set when the match aborted.
type WinResult struct {
	Title   string   `json:"title"`
	Faction string   `json:"faction"`
	Winners []string `json:"winners"`
	Reason  string   `json:"reason"`
	Hint    string   `json:"hint,omitempty"`
	Err     error    `json:"-"`
}

// Notifier delivers messages to the chat layer. Best effort.
type Notifier interface {
	NotifyPublic(ctx context.Context, matchID, content string) error
	NotifyPlayer(ctx context.Context, playerID, content string) error
}

// VoiceControl mutes and unmutes players. Best effort.
type VoiceControl interface {
	SetMuted(ctx context.Context, playerID string, muted bool) error
}

// PlayerResult is one seat in a persisted match result.
type PlayerResult struct {
	ID      string `json:"id" db:"player_id"`
	Name    string `json:"name" db:"name"`
	Role    string `json:"role" db:"role"`
	Faction string `json:"faction" db:"faction"`
	Alive   bool   `json:"alive" db:"alive"`
	Winner  bool   `json:"winner" db:"winner"`
}

// MatchResult is what gets recorded once per finished match.
type MatchResult struct {
	MatchID    string         `json:"match_id"`
	Title      string         `json:"title"`
	Faction    string         `json:"faction"`
	Reason     string         `json:"reason"`
	Rounds     int            `json:"rounds"`
	Players    []PlayerResult `json:"players"`
	Winners    []string       `json:"winners"`
	FinishedAt time.Time      `json:"finished_at"`
}

// ResultRecorder persists finished matches.
type ResultRecorder interface {
	RecordMatchResult(ctx context.Context, result MatchResult) error
}

type nopNotifier struct{}

func (nopNotifier) NotifyPublic(context.Context, string, string) error { return nil }
func (nopNotifier) NotifyPlayer(context.Context, string, string) error { return nil }

type nopVoice struct{}

func (nopVoice) SetMuted(context.Context, string, bool) error { return nil }

type nopRecorder struct{}

func (nopRecorder) RecordMatchResult(context.Context, MatchResult) error { return nil }

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/events"
)

// Reconstructor rebuilds a match's story from the persisted event log: state = f(events).
// It serves replays of matches that are no longer held in memory.
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new match reconstructor.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// SeatState is one player's final state as the log tells it.
type SeatState struct {
	PlayerID string `json:"player_id"`
	Role     string `json:"role"`
	Alive    bool   `json:"alive"`
	Cause    string `json:"cause,omitempty"`
}

// TimelineEntry is one readable line of a match replay.
type TimelineEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Round      int       `json:"round"`
	EventType  string    `json:"event_type"`
	ActorID    string    `json:"actor_id,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Summary    string    `json:"summary"`
	IsRevealed bool      `json:"is_revealed"`
}

// RebuildSeats replays role assignment, conversions, deaths and revivals.
func (r *Reconstructor) RebuildSeats(ctx context.Context, matchID string) ([]SeatState, error) {
	evs, err := r.eventRepo.ByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for match: %w", err)
	}

	seats := make(map[string]*SeatState)
	seat := func(id string) *SeatState {
		s, ok := seats[id]
		if !ok {
			s = &SeatState{PlayerID: id, Alive: true}
			seats[id] = s
		}
		return s
	}

	for _, e := range evs {
		switch events.EventType(e.EventType) {
		case events.EventTypeRolesAssigned:
			var assigned map[string]string
			if err := json.Unmarshal([]byte(e.Payload), &assigned); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", e.ID, err)
			}
			for id, role := range assigned {
				seat(id).Role = role
			}
		case events.EventTypeConversion:
			var p struct {
				Role string `json:"role"`
			}
			if err := json.Unmarshal([]byte(e.Payload), &p); err == nil && p.Role != "" {
				seat(e.TargetID).Role = p.Role
			}
		case events.EventTypeDeath:
			s := seat(e.TargetID)
			s.Alive = false
			var p struct {
				Cause string `json:"cause"`
			}
			if err := json.Unmarshal([]byte(e.Payload), &p); err == nil {
				s.Cause = p.Cause
			}
		case events.EventTypeRevival:
			s := seat(e.TargetID)
			s.Alive, s.Cause = true, ""
		}
	}

	out := make([]SeatState, 0, len(seats))
	for _, s := range seats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out, nil
}

// Timeline returns the match history as readable entries. With revealedOnly it
// shows what the table saw while the match ran.
func (r *Reconstructor) Timeline(ctx context.Context, matchID string, revealedOnly bool) ([]TimelineEntry, error) {
	var (
		evs []EventRecord
		err error
	)
	if revealedOnly {
		evs, err = r.eventRepo.Revealed(ctx, matchID)
	} else {
		evs, err = r.eventRepo.ByMatch(ctx, matchID)
	}
	if err != nil {
		return nil, err
	}

	out := make([]TimelineEntry, 0, len(evs))
	for _, e := range evs {
		out = append(out, TimelineEntry{
			Timestamp:  e.Timestamp,
			Round:      e.Round,
			EventType:  e.EventType,
			ActorID:    e.ActorID,
			TargetID:   e.TargetID,
			Summary:    Summarize(events.EventType(e.EventType), e.ActorID, e.TargetID, e.Payload),
			IsRevealed: e.IsRevealed,
		})
	}
	return out, nil
}

// Summarize turns one event into a line of text. payload is the JSON form.
func Summarize(t events.EventType, actor, target, payload string) string {
	switch t {
	case events.EventTypeMatchStarted:
		return "The match started."
	case events.EventTypeRolesAssigned:
		return "Roles were dealt."
	case events.EventTypePhaseChange:
		var p struct {
			Phase string `json:"phase"`
		}
		_ = json.Unmarshal([]byte(payload), &p)
		return "Phase changed to " + p.Phase + "."
	case events.EventTypeActionSubmitted, events.EventTypeInstantAction:
		var p struct {
			Kind string `json:"kind"`
		}
		_ = json.Unmarshal([]byte(payload), &p)
		return actor + " used " + p.Kind + "."
	case events.EventTypeVote:
		return actor + " voted against " + target + "."
	case events.EventTypeSkip:
		return actor + " voted to skip."
	case events.EventTypeNightResolved:
		return "The night was resolved."
	case events.EventTypeDeath:
		var p struct {
			Cause string `json:"cause"`
			Role  string `json:"role"`
		}
		_ = json.Unmarshal([]byte(payload), &p)
		return fmt.Sprintf("%s (%s) died: %s.", target, p.Role, p.Cause)
	case events.EventTypeRevival:
		return target + " was revived by " + actor + "."
	case events.EventTypeConversion:
		return target + " changed role."
	case events.EventTypeLynch:
		if target == "" {
			return "Nobody was lynched."
		}
		return target + " was lynched."
	case events.EventTypePardon:
		return target + " was pardoned."
	case events.EventTypeSheriffShot:
		return actor + " shot " + target + "."
	case events.EventTypeSabotage:
		return "The day was sabotaged."
	case events.EventTypeDecree:
		return "The Mayor issued a decree."
	case events.EventTypeFraud:
		return "The vote count was tampered with."
	case events.EventTypeConfrontation:
		return "The final confrontation began."
	case events.EventTypeMatchFinished:
		var p struct {
			Title string `json:"title"`
		}
		_ = json.Unmarshal([]byte(payload), &p)
		return "Match over: " + p.Title
	case events.EventTypeMatchAborted:
		return "The match was aborted."
	default:
		return "Something happened."
	}
}

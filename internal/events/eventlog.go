// Package events provides the append-only match log.
// Every phase change, death and verdict is recorded here and replayed after the match.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of a match event.
type EventType string

const (
	EventTypeMatchStarted    EventType = "MATCH_STARTED"
	EventTypeRolesAssigned   EventType = "ROLES_ASSIGNED"
	EventTypePhaseChange     EventType = "PHASE_CHANGE"
	EventTypeActionSubmitted EventType = "ACTION_SUBMITTED"
	EventTypeInstantAction   EventType = "INSTANT_ACTION"
	EventTypeVote            EventType = "VOTE"
	EventTypeSkip            EventType = "SKIP"
	EventTypeNightResolved   EventType = "NIGHT_RESOLVED"
	EventTypeDeath           EventType = "DEATH"
	EventTypeRevival         EventType = "REVIVAL"
	EventTypeConversion      EventType = "CONVERSION"
	EventTypeLynch           EventType = "LYNCH"
	EventTypePardon          EventType = "PARDON"
	EventTypeSheriffShot     EventType = "SHERIFF_SHOT"
	EventTypeSabotage        EventType = "SABOTAGE"
	EventTypeDecree          EventType = "DECREE"
	EventTypeFraud           EventType = "FRAUD"
	EventTypeConfrontation   EventType = "CONFRONTATION"
	EventTypeMatchFinished   EventType = "MATCH_FINISHED"
	EventTypeMatchAborted    EventType = "MATCH_ABORTED"
)

// GameEvent represents an immutable record of something that happened in a match.
type GameEvent struct {
	ID         string      `json:"id"`
	MatchID    string      `json:"match_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Type       EventType   `json:"type"`
	ActorID    string      `json:"actor_id"`  // Who performed the action
	TargetID   string      `json:"target_id"` // Who was affected (optional)
	Payload    interface{} `json:"payload"`   // Event-specific data
	Round      int         `json:"round"`
	IsRevealed bool        `json:"is_revealed"` // Public while the match is running?
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// EventLog is the in-memory append-only log of one match.
type EventLog struct {
	mu        sync.RWMutex
	matchID   string
	events    []GameEvent
	persister EventPersister
	onError   func(GameEvent, error)
}

// NewEventLog creates a log for matchID with an optional persister.
func NewEventLog(matchID string, persister EventPersister) *EventLog {
	return &EventLog{
		matchID:   matchID,
		events:    make([]GameEvent, 0),
		persister: persister,
	}
}

// OnPersistError registers a callback for failed writes.
func (el *EventLog) OnPersistError(fn func(GameEvent, error)) {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.onError = fn
}

// Append stamps and stores a new event. Events are immutable once appended.
func (el *EventLog) Append(event GameEvent) GameEvent {
	if event.ID == "" {
		event.ID = GenerateEventID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.MatchID = el.matchID

	el.mu.Lock()
	el.events = append(el.events, event)
	persister, onError := el.persister, el.onError
	el.mu.Unlock()

	if persister != nil {
		// Write-through off the caller's goroutine; the match never waits on disk.
		go func(e GameEvent) {
			if err := persister.Append(e); err != nil && onError != nil {
				onError(e, err)
			}
		}(event)
	}
	return event
}

// MatchID returns the match this log belongs to.
func (el *EventLog) MatchID() string {
	return el.matchID
}

// GetByActor returns all events performed by a specific actor.
func (el *EventLog) GetByActor(actorID string) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.ActorID == actorID })
}

// GetByRound returns all events that occurred in a round.
func (el *EventLog) GetByRound(round int) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.Round == round })
}

// GetByType returns all events of one type.
func (el *EventLog) GetByType(t EventType) []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.Type == t })
}

// Revealed returns the events that are public while the match runs.
func (el *EventLog) Revealed() []GameEvent {
	return el.filter(func(e GameEvent) bool { return e.IsRevealed })
}

// Replay returns a copy of the full history.
func (el *EventLog) Replay() []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()
	out := make([]GameEvent, len(el.events))
	copy(out, el.events)
	return out
}

// Len returns the number of events recorded.
func (el *EventLog) Len() int {
	el.mu.RLock()
	defer el.mu.RUnlock()
	return len(el.events)
}

func (el *EventLog) filter(keep func(GameEvent) bool) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if keep(e) {
			result = append(result, e)
		}
	}
	return result
}

// GenerateEventID creates a unique event identifier.
func GenerateEventID() string {
	return uuid.NewString()
}

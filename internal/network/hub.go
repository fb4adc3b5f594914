package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Fezudo98/cidade-dorme-online/internal/platform/logger"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/metrics"
)

// Message types pushed to clients.
const (
	MsgTypeNotice  = "notice"  // match channel
	MsgTypePrivate = "private" // one player
	MsgTypeVoice   = "voice"
	MsgTypeReply   = "reply"
	MsgTypeError   = "error"
)

// ErrHubStopped is returned when a delivery is attempted after Run returned.
var ErrHubStopped = errors.New("hub stopped")

// Message is the envelope of everything written to a socket.
type Message struct {
	Type      string      `json:"type"`
	MatchID   string      `json:"match_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// VoicePayload tells a client to mute or unmute its microphone.
type VoicePayload struct {
	Muted bool `json:"muted"`
}

type delivery struct {
	players []string
	data    []byte
}

// Hub maintains the connected players and fans messages out to them.
// It is the notification sink and the voice control of every match.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string][]string
	muted      map[string]bool
	broadcast  chan delivery
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	mu         sync.Mutex
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub.
func NewHub(buffer int, m *metrics.Collector, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		broadcast:  make(chan delivery, buffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		clients:    make(map[string]*Client),
		rooms:      make(map[string][]string),
		muted:      make(map[string]bool),
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop. It owns every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.playerID]; ok {
				close(old.send)
			}
			h.clients[client.playerID] = client
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("Player connected: " + client.playerID)
		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.playerID]; ok && cur == client {
				delete(h.clients, client.playerID)
				close(client.send)
			}
			h.mu.Unlock()
			h.metrics.RecordWSConnection(-1)
			h.logger.Info("Player disconnected: " + client.playerID)
		case d := <-h.broadcast:
			h.mu.Lock()
			for _, id := range d.players {
				client, ok := h.clients[id]
				if !ok {
					continue
				}
				select {
				case client.send <- d.data:
					h.metrics.RecordWSMessage(false)
				default:
					close(client.send)
					delete(h.clients, id)
					h.metrics.RecordWSDrop()
					h.logger.Warn("Dropped slow client " + id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Seat makes the players members of a match channel.
func (h *Hub) Seat(matchID string, playerIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms[matchID] = append([]string(nil), playerIDs...)
}

// Unseat forgets a match channel.
func (h *Hub) Unseat(matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, matchID)
}

// Connected reports whether a player has a live socket.
func (h *Hub) Connected(playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[playerID]
	return ok
}

// Muted reports the last voice state sent to a player.
func (h *Hub) Muted(playerID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted[playerID]
}

// NotifyPublic sends content to everyone seated in the match.
func (h *Hub) NotifyPublic(ctx context.Context, matchID, content string) error {
	h.mu.Lock()
	players := h.rooms[matchID]
	h.mu.Unlock()
	if players == nil {
		return fmt.Errorf("no channel for match %s", matchID)
	}
	return h.deliver(ctx, players, Message{Type: MsgTypeNotice, MatchID: matchID, Payload: content})
}

// NotifyPlayer sends content to one player only.
func (h *Hub) NotifyPlayer(ctx context.Context, playerID, content string) error {
	return h.deliver(ctx, []string{playerID}, Message{Type: MsgTypePrivate, Payload: content})
}

// SetMuted records the voice state and tells the player's client.
// A player without a socket picks the state up on the next change.
func (h *Hub) SetMuted(ctx context.Context, playerID string, muted bool) error {
	h.mu.Lock()
	h.muted[playerID] = muted
	h.mu.Unlock()
	return h.deliver(ctx, []string{playerID}, Message{Type: MsgTypeVoice, Payload: VoicePayload{Muted: muted}})
}

// deliver serializes msg and queues it for the Run loop.
func (h *Hub) deliver(ctx context.Context, players []string, msg Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}
	select {
	case h.broadcast <- delivery{players: players, data: data}:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

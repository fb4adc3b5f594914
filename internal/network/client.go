package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Fezudo98/cidade-dorme-online/internal/domain/role"
	"github.com/Fezudo98/cidade-dorme-online/internal/engine"
	"github.com/Fezudo98/cidade-dorme-online/internal/platform/config"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var errTooFast = errors.New("commands are coming too fast")

// MatchFinder resolves the match a player is seated in.
type MatchFinder interface {
	ForPlayer(playerID string) (*engine.Engine, error)
}

// Command is one request read from a player's socket.
type Command struct {
	Type    string   `json:"type"` // submit, vote, skip, phase, roster, self
	Kind    string   `json:"kind,omitempty"`
	Targets []string `json:"targets,omitempty"`
}

// Client is one player's WebSocket connection.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	playerID    string
	matches     MatchFinder
	limits      config.ClientLimits
	lastCommand time.Time
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, playerID string, matches MatchFinder, limits config.ClientLimits, buffer int) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, buffer),
		playerID: playerID,
		matches:  matches,
		limits:   limits,
	}
}

// Register adds the client to the hub.
func (c *Client) Register() bool {
	select {
	case c.hub.register <- c:
		return true
	case <-c.hub.stopped:
		return false
	}
}

// ReadPump reads commands from the socket and answers them through the hub.
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}
		c.conn.Close()
	}()
	if c.limits.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.limits.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Err("websocket read from "+c.playerID, err)
			}
			break
		}
		c.hub.metrics.RecordWSMessage(true)

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			c.reply(MsgTypeError, "malformed command")
			continue
		}
		payload, err := c.handleCommand(cmd)
		if err != nil {
			c.reply(MsgTypeError, err.Error())
			continue
		}
		c.reply(MsgTypeReply, payload)
	}
}

func (c *Client) reply(kind string, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	if err := c.hub.deliver(ctx, []string{c.playerID}, Message{Type: kind, Payload: payload}); err != nil {
		c.hub.logger.Err("reply to "+c.playerID, err)
	}
}

// handleCommand routes one command to the player's match.
func (c *Client) handleCommand(cmd Command) (interface{}, error) {
	if gap := c.limits.MinCommandGap; gap > 0 && time.Since(c.lastCommand) < gap {
		c.hub.logger.Warn("Rate limit exceeded for " + c.playerID)
		return nil, errTooFast
	}
	c.lastCommand = time.Now()

	e, err := c.matches.ForPlayer(c.playerID)
	if err != nil {
		return nil, err
	}

	switch cmd.Type {
	case "submit":
		return e.Submit(c.playerID, role.Kind(cmd.Kind), cmd.Targets...)
	case "vote":
		if len(cmd.Targets) != 1 {
			return nil, engine.ErrInvalidTarget
		}
		if err := e.Vote(c.playerID, cmd.Targets[0]); err != nil {
			return nil, err
		}
		return "Vote registered.", nil
	case "skip":
		if err := e.Skip(c.playerID); err != nil {
			return nil, err
		}
		return "Skip registered.", nil
	case "phase":
		return e.Phase(), nil
	case "roster":
		return e.Roster(), nil
	case "self":
		return e.Self(c.playerID)
	default:
		return nil, errors.New("unknown command " + cmd.Type)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWS upgrades /ws?player_id=X and starts the client's pumps.
func ServeWS(hub *Hub, matches MatchFinder, limits config.ClientLimits, buffer int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("player_id")
		if playerID == "" {
			http.Error(w, "missing player_id", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.logger.Err("failed to upgrade websocket connection", err)
			return
		}

		client := NewClient(hub, conn, playerID, matches, limits, buffer)
		if !client.Register() {
			conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	}
}

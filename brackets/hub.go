package brackets

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	MessageMatchUpdated      = "MATCH_UPDATED"
	MessageMatchDeleted      = "MATCH_DELETED"
	MessageTournamentUpdated = "TOURNAMENT_UPDATED"
	MessageTournamentDeleted = "TOURNAMENT_DELETED"
)

const (
	matchRoomPrefix      = "match_"
	tournamentRoomPrefix = "tournament_"
)

func MatchRoom(matchID string) string { return matchRoomPrefix + matchID }

func TournamentRoom(tournamentID string) string { return tournamentRoomPrefix + tournamentID }

// ParseRoom splits a room name into its kind ("match" or "tournament") and id.
func ParseRoom(room string) (kind, id string, ok bool) {
	switch {
	case strings.HasPrefix(room, matchRoomPrefix):
		return "match", strings.TrimPrefix(room, matchRoomPrefix), true
	case strings.HasPrefix(room, tournamentRoomPrefix):
		return "tournament", strings.TrimPrefix(room, tournamentRoomPrefix), true
	}
	return "", "", false
}

type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Room     string
	IsClosed bool
	Mu       sync.Mutex
}

type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
	RoomID  string `json:"room_id,omitempty"`
}

// Feed starts pushing updates for a room through publish and returns a
// function that stops them. The hub runs one feed per non-empty room.
type Feed func(room string, publish func(msgType string, payload any)) (stop func())

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	rooms      map[string]map[*Client]bool
	feeds      map[string]func()
	// last keeps the latest message per room for clients joining a running feed.
	last   map[string][]byte
	feed   Feed
	logger *slog.Logger
	mu     sync.RWMutex
}

func NewHub(feed Feed, logger *slog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		feeds:      make(map[string]func()),
		last:       make(map[string][]byte),
		feed:       feed,
		logger:     logger,
	}
}

// Run serves registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.Register:
			h.mu.Lock()
			if _, ok := h.rooms[client.Room]; !ok {
				h.rooms[client.Room] = make(map[*Client]bool)
			}
			h.rooms[client.Room][client] = true
			first := len(h.rooms[client.Room]) == 1
			snapshot := h.last[client.Room]
			h.mu.Unlock()
			h.logger.Debug("client registered", slog.String("room", client.Room), slog.Bool("first", first))

			if first {
				h.startFeed(client.Room)
			} else if snapshot != nil {
				client.trySend(snapshot)
			}

		case client := <-h.Unregister:
			h.mu.Lock()
			stop := h.removeLocked(client)
			h.mu.Unlock()
			if stop != nil {
				stop()
				h.logger.Debug("room closed", slog.String("room", client.Room))
			}
		}
	}
}

func (h *Hub) startFeed(room string) {
	if h.feed == nil {
		return
	}
	// Feeds may deliver the current state synchronously, so the lock is not held here.
	stop := h.feed(room, func(msgType string, payload any) {
		h.BroadcastToRoom(room, WebSocketMessage{Type: msgType, Payload: payload, RoomID: room})
	})
	h.mu.Lock()
	h.feeds[room] = stop
	h.mu.Unlock()
}

// removeLocked drops client from its room and returns the room's feed stopper
// when the room became empty.
func (h *Hub) removeLocked(client *Client) func() {
	members, ok := h.rooms[client.Room]
	if !ok || !members[client] {
		return nil
	}
	client.close()
	delete(members, client)
	if len(members) > 0 {
		return nil
	}
	delete(h.rooms, client.Room)
	delete(h.last, client.Room)
	stop := h.feeds[client.Room]
	delete(h.feeds, client.Room)
	return stop
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	var stops []func()
	for room, members := range h.rooms {
		for client := range members {
			if stop := h.removeLocked(client); stop != nil {
				stops = append(stops, stop)
			}
		}
		delete(h.rooms, room)
	}
	h.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

// BroadcastToRoom sends message to every client of the room without blocking.
func (h *Hub) BroadcastToRoom(roomID string, message any) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal room message", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	roomClients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	h.last[roomID] = messageBytes
	for client := range roomClients {
		if !client.trySend(messageBytes) {
			h.logger.Warn("client send buffer full, message dropped", slog.String("room", roomID))
		}
	}
}

// RoomSize reports the number of clients in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (c *Client) trySend(message []byte) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if c.IsClosed {
		return true
	}
	select {
	case c.Send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if !c.IsClosed {
		close(c.Send)
		c.IsClosed = true
	}
}

// ReadPump discards inbound messages and unregisters the client once the
// connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("websocket closed unexpectedly", slog.String("room", c.Room), slog.Any("error", err))
			}
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One JSON document per frame.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.logger.Debug("websocket write failed", slog.String("room", c.Room), slog.Any("error", err))
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.logger.Debug("websocket ping failed", slog.String("room", c.Room), slog.Any("error", err))
				return
			}
		}
	}
}

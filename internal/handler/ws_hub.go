package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event types sent over WebSocket.
const (
	EventSeasonStarted  = "season_started"
	EventSeasonEnded    = "season_ended"
	EventTurnStarted    = "turn_started"
	EventResolutionStep = "resolution_step"
	EventDraftAvailable = "draft_available"
	EventDecision       = "decision_committed"
	EventShotClock      = "shot_clock"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type     string `json:"type"`
	SeasonID string `json:"season_id"`
	Data     any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action   string `json:"action"` // "subscribe" or "unsubscribe"
	SeasonID string `json:"season_id"`
}

// WSConn wraps a WebSocket connection with its player and subscriptions.
type WSConn struct {
	conn     *websocket.Conn
	playerID string
	send     chan []byte
}

// Hub manages WebSocket connections and season-channel subscriptions.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	seasons     map[string]map[*WSConn]bool // seasonID -> set of connections
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		seasons:     make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
func (h *Hub) Unregister(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, c)
	for seasonID, conns := range h.seasons {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.seasons, seasonID)
		}
	}
	close(c.send)
}

// Subscribe adds a connection to a season channel.
func (h *Hub) Subscribe(c *WSConn, seasonID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.seasons[seasonID] == nil {
		h.seasons[seasonID] = make(map[*WSConn]bool)
	}
	h.seasons[seasonID][c] = true
}

// Unsubscribe removes a connection from a season channel.
func (h *Hub) Unsubscribe(c *WSConn, seasonID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.seasons[seasonID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.seasons, seasonID)
		}
	}
}

// BroadcastToSeason sends an event to all connections subscribed to a season.
func (h *Hub) BroadcastToSeason(seasonID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("seasonId", seasonID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.seasons[seasonID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("playerId", c.playerID).Str("seasonId", seasonID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// BroadcastToPlayer sends an event to a specific player across all their connections.
func (h *Hub) BroadcastToPlayer(playerID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("playerId", playerID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		if c.playerID == playerID {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// SeasonSubscriberCount returns the number of connections subscribed to a season.
func (h *Hub) SeasonSubscriberCount(seasonID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.seasons[seasonID])
}

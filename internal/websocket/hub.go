// Package websocket pushes live monitoring events (status changes,
// ownership transfers) to connected dashboards.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is a real-time event broadcast to every connected client.
type Message struct {
	Type      string         `json:"type"`
	WebsiteID string         `json:"website_id,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// StatusChanged announces a probe result for a website.
func StatusChanged(websiteID, url, status string, responseTimeMs *int64) Message {
	extra := map[string]any{"url": url, "status": status}
	if responseTimeMs != nil {
		extra["response_time_ms"] = *responseTimeMs
	}
	return Message{Type: "website_status", WebsiteID: websiteID, Extra: extra}
}

// OwnershipTransferred announces that websites moved from a guest token
// into a user account.
func OwnershipTransferred(websitesTransferred int64) Message {
	return Message{
		Type:  "token_claimed",
		Extra: map[string]any{"websites_transferred": websitesTransferred},
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full; drop rather than block the broadcaster
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

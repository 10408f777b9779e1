// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

// Package websocket pushes engine status transitions to connected
// dashboard clients, so the UI flips between "AI-Powered" and
// "SQL-Based" badges without polling.
package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/davech88/reclens/internal/metrics"
	"github.com/davech88/reclens/internal/orchestrate"
)

// Message types for the status stream.
const (
	MessageTypeEngineStatus = "engine_status"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is one frame on the status stream.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// EngineStatusData is the payload of an engine_status frame.
type EngineStatusData struct {
	Timestamp string                   `json:"timestamp"`
	Status    orchestrate.EngineStatus `json:"status"`
}

// Hub maintains the set of connected clients and broadcasts status
// messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	logger     zerolog.Logger
	mu         sync.RWMutex
}

// NewHub creates a status hub.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		logger:     logger.With().Str("component", "ws-hub").Logger(),
	}
}

// Serve implements the suture.Service interface. On shutdown every
// connected client is closed so a supervisor restart never leaves
// orphaned connections.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			h.logger.Info().Msg("status hub stopped")
			return ctx.Err()

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Set(float64(count))
			h.logger.Info().Int("total_clients", count).Msg("status client connected")

		case client := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Set(float64(count))
			h.logger.Info().Int("total_clients", count).Msg("status client disconnected")

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// String returns the service name for supervisor logging.
func (h *Hub) String() string {
	return "websocket-hub"
}

// BroadcastEngineStatus pushes a status snapshot to every client. A full
// broadcast buffer drops the frame; the next transition or the REST
// endpoint carries the state.
func (h *Hub) BroadcastEngineStatus(status orchestrate.EngineStatus) {
	message := Message{
		Type: MessageTypeEngineStatus,
		Data: EngineStatusData{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Status:    status,
		},
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn().Msg("broadcast channel full, dropping engine_status frame")
	}
}

// broadcastToClients delivers a message to clients in ID order. Stable
// ordering keeps delivery reproducible under test.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			// Slow consumer: its buffer is full, drop the connection.
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
	}
	if len(toRemove) > 0 {
		metrics.WebSocketConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnections.Set(0)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Reclens - Recommendation Orchestration and Analytics Gateway
// Copyright 2026 Dave C. (davech88)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/davech88/reclens

package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// NewUpgradeHandler returns an HTTP handler that upgrades the connection
// and attaches the client to the hub. Origins are checked against the
// allowed list; "*" allows everything, which is the development default.
func NewUpgradeHandler(hub *Hub, allowedOrigins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			hub.logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := NewClient(hub, conn)
		hub.Register <- client
		client.Start()
	}
}

// originChecker accepts requests without an Origin header (non-browser
// clients) and browser requests whose origin is on the allowed list.
func originChecker(allowedOrigins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range allowedOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}
}

/*
 * Copyright 2025 FleetPulse Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// registerMessage is the first frame a realtime client sends after connecting
// to identify itself.
type registerMessage struct {
	Type  string `json:"type"`
	Kind  string `json:"kind,omitempty"`
	Token string `json:"token,omitempty"`
}

// handleWebSocket upgrades the connection and attaches it to the hub. The
// read loop only consumes register frames; all data flows server to client.
func (s *APIServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return s.checkWebSocketOrigin(r)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Str("origin", r.Header.Get("Origin")).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	sub := s.hub.Register(conn)

	s.logger.Info().
		Str("subscriber_id", sub.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	defer s.hub.Unregister(sub)

	for {
		var msg registerMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug().
					Err(err).
					Str("subscriber_id", sub.ID).
					Msg("WebSocket read failed")
			}

			return
		}

		if msg.Type == "register" {
			s.hub.Identify(sub, msg.Kind, msg.Token)

			s.logger.Debug().
				Str("subscriber_id", sub.ID).
				Str("kind", msg.Kind).
				Msg("Subscriber identified")
		}
	}
}

// checkWebSocketOrigin applies the CORS allow list to websocket upgrades. An
// empty list allows any origin.
func (s *APIServer) checkWebSocketOrigin(r *http.Request) bool {
	if len(s.corsConfig.AllowedOrigins) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range s.corsConfig.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}

	return false
}

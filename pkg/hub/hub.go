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

// Package hub maintains the registry of connected realtime subscribers and
// fans events out to them. It is decoupled from persistence: delivery is
// fire-and-forget and a slow subscriber never blocks the caller.
package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpulse/fleetpulse/pkg/logger"
)

const defaultSendBuffer = 64

// Envelope is the wire frame delivered to every subscriber.
type Envelope struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// Sink is the transport a subscriber writes through. *websocket.Conn
// satisfies it.
type Sink interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Subscriber is one connected realtime client.
type Subscriber struct {
	ID string

	// Kind and Token are metadata supplied by the client's register
	// message: subscriber kind (desktop, mobile, sync-agent) and the
	// capability token it authenticated with, if any.
	Kind  string
	Token string

	sink Sink
	send chan Envelope
	done chan struct{}
	once sync.Once
}

func (s *Subscriber) close() {
	s.once.Do(func() {
		close(s.done)
	})
}

// Hub is the explicit subscriber registry, owned by the process.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	logger      logger.Logger
}

// NewHub creates an empty hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		logger:      log,
	}
}

// Register adds a subscriber over the given sink and starts its write pump.
func (h *Hub) Register(sink Sink) *Subscriber {
	sub := &Subscriber{
		ID:   uuid.New().String(),
		sink: sink,
		send: make(chan Envelope, defaultSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()

	go h.writePump(sub)

	h.logger.Debug().Str("subscriber_id", sub.ID).Msg("Subscriber registered")

	return sub
}

// Unregister removes a subscriber and closes its transport. Removing an
// already-removed subscriber is a no-op.
func (h *Hub) Unregister(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	_, present := h.subscribers[sub.ID]
	delete(h.subscribers, sub.ID)
	h.mu.Unlock()

	sub.close()

	if present {
		h.logger.Debug().Str("subscriber_id", sub.ID).Msg("Subscriber unregistered")
	}
}

// Identify records registration metadata for a subscriber.
func (h *Hub) Identify(sub *Subscriber, kind, token string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if stored, ok := h.subscribers[sub.ID]; ok {
		stored.Kind = kind
		stored.Token = token
	}
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subscribers)
}

// Broadcast delivers an event to every connected subscriber. Broadcasting to
// zero subscribers is a no-op.
func (h *Hub) Broadcast(event string, payload interface{}) {
	h.BroadcastScoped(event, payload, nil)
}

// BroadcastScoped delivers an event to subscribers accepted by the filter. A
// nil filter accepts everyone. A subscriber whose send buffer is full has the
// event dropped; delivery failures are isolated per subscriber.
func (h *Hub) BroadcastScoped(event string, payload interface{}, filter func(*Subscriber) bool) {
	envelope := Envelope{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subscribers))

	for _, sub := range h.subscribers {
		if filter == nil || filter(sub) {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		select {
		case <-sub.done:
		case sub.send <- envelope:
		default:
			h.logger.Warn().
				Str("subscriber_id", sub.ID).
				Str("event", event).
				Msg("Subscriber send buffer full, dropping event")
		}
	}
}

// Shutdown disconnects every subscriber.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))

	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}

	h.subscribers = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (h *Hub) writePump(sub *Subscriber) {
	defer func() {
		_ = sub.sink.Close()
	}()

	for {
		select {
		case <-sub.done:
			return
		case envelope := <-sub.send:
			if err := sub.sink.WriteJSON(envelope); err != nil {
				h.logger.Debug().
					Err(err).
					Str("subscriber_id", sub.ID).
					Msg("Subscriber write failed, disconnecting")

				h.Unregister(sub)

				return
			}
		}
	}
}

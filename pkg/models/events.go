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

package models

import "time"

// Realtime event names delivered to connected subscribers.
const (
	EventBotStatusUpdate = "botStatusUpdate"
	EventNotification    = "notification"
	EventBotControl      = "botControl"
	EventFileUpdate      = "fileUpdate"
	EventNodeStatus      = "nodeStatusUpdate"
)

// StatusUpdateEvent is broadcast on every heartbeat, transitioned or not.
type StatusUpdateEvent struct {
	EntityID  string       `json:"entityId"`
	Name      string       `json:"name"`
	Status    EntityStatus `json:"status"`
	Source    string       `json:"source"`
	Timestamp time.Time    `json:"timestamp"`
}

// TransitionEvent is broadcast once per liveness transition.
type TransitionEvent struct {
	BotID     string       `json:"botId"`
	BotName   string       `json:"botName"`
	OldStatus EntityStatus `json:"oldStatus"`
	NewStatus EntityStatus `json:"newStatus"`
	Timestamp time.Time    `json:"timestamp"`
}

// ControlEvent relays an operator intent to the fleet node responsible for
// executing it.
type ControlEvent struct {
	BotID     string        `json:"botId"`
	BotName   string        `json:"botName"`
	Action    ControlAction `json:"action"`
	Source    string        `json:"source"`
	Timestamp time.Time     `json:"timestamp"`
}

// FileUpdateEvent signals that a bot's file set was replaced, so the external
// sync agent can pick up the change.
type FileUpdateEvent struct {
	BotID     string    `json:"botId"`
	Timestamp time.Time `json:"timestamp"`
}

// CloudEvent is the envelope used when publishing transition events to
// JetStream for external consumers.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

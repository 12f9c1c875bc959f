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

import "fmt"

// EntityStatus is the liveness status of a bot or fleet node.
type EntityStatus string

const (
	StatusOnline      EntityStatus = "online"
	StatusOffline     EntityStatus = "offline"
	StatusCrashed     EntityStatus = "crashed"
	StatusMaintenance EntityStatus = "maintenance"
)

// ParseEntityStatus validates a status value reported over the wire. An empty
// value defaults to online, matching heartbeat semantics.
func ParseEntityStatus(value string) (EntityStatus, error) {
	if value == "" {
		return StatusOnline, nil
	}

	switch EntityStatus(value) {
	case StatusOnline, StatusOffline, StatusCrashed, StatusMaintenance:
		return EntityStatus(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

// ControlAction is an operator intent recorded for a bot. Execution happens
// on the fleet node, not in the engine.
type ControlAction string

const (
	ActionStart   ControlAction = "start"
	ActionStop    ControlAction = "stop"
	ActionRestart ControlAction = "restart"
)

// ParseControlAction validates a control action received from a client.
func ParseControlAction(value string) (ControlAction, error) {
	switch ControlAction(value) {
	case ActionStart, ActionStop, ActionRestart:
		return ControlAction(value), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, value)
	}
}

// IntentStatus returns the status value written to history for a control
// intent: online for start/restart, offline for stop.
func (a ControlAction) IntentStatus() EntityStatus {
	if a == ActionStop {
		return StatusOffline
	}

	return StatusOnline
}

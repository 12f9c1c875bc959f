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

// Profile is a tenant identity. The access token is minted once at creation,
// returned to the caller exactly once, and never logged.
type Profile struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	AccessToken          string    `json:"-"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
}

// Capabilities is the fixed set of boolean capabilities a profile holds over
// one bot. A missing grant resolves to the zero value: all false.
type Capabilities struct {
	CanView              bool `json:"can_view"`
	CanEdit              bool `json:"can_edit"`
	CanStartStop         bool `json:"can_start_stop"`
	CanRestart           bool `json:"can_restart"`
	ReceiveNotifications bool `json:"receive_notifications"`
}

// PermissionGrant binds capabilities to a (profile, bot) pair. At most one
// grant exists per pair; a re-grant replaces the prior one wholesale.
type PermissionGrant struct {
	ProfileID string `json:"profile_id"`
	BotID     string `json:"bot_id"`
	Capabilities
}

// Capability names a single capability bit for authorization checks.
type Capability string

const (
	CapabilityView          Capability = "view"
	CapabilityEdit          Capability = "edit"
	CapabilityStartStop     Capability = "start_stop"
	CapabilityRestart       Capability = "restart"
	CapabilityNotifications Capability = "notifications"
)

// Has reports whether the named capability bit is set.
func (c Capabilities) Has(capability Capability) bool {
	switch capability {
	case CapabilityView:
		return c.CanView
	case CapabilityEdit:
		return c.CanEdit
	case CapabilityStartStop:
		return c.CanStartStop
	case CapabilityRestart:
		return c.CanRestart
	case CapabilityNotifications:
		return c.ReceiveNotifications
	default:
		return false
	}
}

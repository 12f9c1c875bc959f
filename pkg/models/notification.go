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

// NotificationType classifies a persisted notification by the status the bot
// transitioned into.
type NotificationType string

const (
	NotificationBotCrash   NotificationType = "bot_crash"
	NotificationBotOffline NotificationType = "bot_offline"
	NotificationInfo       NotificationType = "info"
)

// NotificationTypeForStatus derives the notification type from a new status.
func NotificationTypeForStatus(status EntityStatus) NotificationType {
	switch status {
	case StatusCrashed:
		return NotificationBotCrash
	case StatusOffline:
		return NotificationBotOffline
	default:
		return NotificationInfo
	}
}

// Notification is a persisted, per-profile record of a liveness transition.
// Only the read flag is ever mutated, via an explicit acknowledge.
type Notification struct {
	ID        string           `json:"id"`
	ProfileID string           `json:"profile_id"`
	BotID     string           `json:"bot_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

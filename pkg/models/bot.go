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

// Bot is an autonomous worker process tracked by the engine. Bots are created
// on first heartbeat and never deleted by the engine itself.
type Bot struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Status        EntityStatus `json:"status"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	MainFile      string       `json:"main_file"`
	CreatedAt     time.Time    `json:"created_at"`
}

// StatusHistoryEntry is an immutable record of a status write for a bot or
// fleet node. One entry per status write, never mutated or deleted.
type StatusHistoryEntry struct {
	ID        string       `json:"id"`
	EntityID  string       `json:"entity_id"`
	Status    EntityStatus `json:"status"`
	Message   string       `json:"message"`
	Source    string       `json:"source"`
	Timestamp time.Time    `json:"timestamp"`
}

// BotFile is one file of a bot's deployed source set. The hash is the hex
// SHA-256 of the content and exists for cheap change detection and transfer
// integrity, not historical versioning.
type BotFile struct {
	ID      string `json:"id"`
	BotID   string `json:"bot_id"`
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Hash    string `json:"hash"`
}

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

package db

import "errors"

var (

	// Core database errors.

	ErrDatabaseError = errors.New("database error")

	// Operation errors.

	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedOpenDB   = errors.New("failed to open database")

	// Lookup errors.

	ErrBotNotFound          = errors.New("bot not found")
	ErrNodeNotFound         = errors.New("fleet node not found")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrNotificationNotFound = errors.New("notification not found")

	// Uniqueness violations.

	ErrTokenExists   = errors.New("access token already exists")
	ErrBotNameExists = errors.New("bot name already exists")

	// Validation errors.

	ErrBotNil          = errors.New("bot is nil")
	ErrNodeNil         = errors.New("fleet node is nil")
	ErrProfileNil      = errors.New("profile is nil")
	ErrGrantNil        = errors.New("permission grant is nil")
	ErrNotificationNil = errors.New("notification is nil")
	ErrHistoryNil      = errors.New("status history entry is nil")
	ErrEntityIDMissing = errors.New("entity id is required")
)

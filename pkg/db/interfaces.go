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

// Package db defines the entity store for the fleet state engine.
package db

import (
	"context"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/fleetpulse/fleetpulse/pkg/db Service

// Service represents all storage operations. It is pure data access; policy
// (authorization, notification entitlement, transition detection) lives in
// the callers.
type Service interface {
	Close() error

	// Bot operations.

	CreateBot(ctx context.Context, bot *models.Bot) error
	GetBot(ctx context.Context, id string) (*models.Bot, error)
	GetBotByName(ctx context.Context, name string) (*models.Bot, error)
	UpdateBotStatus(ctx context.Context, id string, status models.EntityStatus, lastHeartbeat time.Time) error
	ListBots(ctx context.Context) ([]models.Bot, error)
	ListStaleBots(ctx context.Context, cutoff time.Time) ([]models.Bot, error)
	// MarkBotOffline demotes a bot to offline only if it is not already
	// offline and has not heartbeated since cutoff. Returns whether the
	// demotion happened, so a sweep re-check stays idempotent.
	MarkBotOffline(ctx context.Context, id string, cutoff time.Time) (bool, error)

	// Fleet node operations.

	GetNode(ctx context.Context, id string) (*models.FleetNode, error)
	GetNodeByName(ctx context.Context, name string) (*models.FleetNode, error)
	UpsertNode(ctx context.Context, node *models.FleetNode) error
	ListNodes(ctx context.Context) ([]models.FleetNode, error)
	ListStaleNodes(ctx context.Context, cutoff time.Time) ([]models.FleetNode, error)
	MarkNodeOffline(ctx context.Context, id string, cutoff time.Time) (bool, error)

	// Status history operations. Entries are append-only.

	AppendStatusHistory(ctx context.Context, entry *models.StatusHistoryEntry) error
	GetStatusHistory(ctx context.Context, entityID string, limit int) ([]models.StatusHistoryEntry, error)

	// Profile and permission operations.

	CreateProfile(ctx context.Context, profile *models.Profile) error
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByToken(ctx context.Context, token string) (*models.Profile, error)
	UpsertPermissionGrant(ctx context.Context, grant *models.PermissionGrant) error
	GetPermissionGrant(ctx context.Context, profileID, botID string) (*models.PermissionGrant, error)
	ListGrantsForProfile(ctx context.Context, profileID string) ([]models.PermissionGrant, error)
	ListGrantsForBot(ctx context.Context, botID string) ([]models.PermissionGrant, error)

	// Bot file operations. ReplaceBotFiles is all-or-nothing.

	ReplaceBotFiles(ctx context.Context, botID string, files []*models.BotFile) error
	ListBotFiles(ctx context.Context, botID string) ([]models.BotFile, error)

	// Notification operations.

	CreateNotification(ctx context.Context, notification *models.Notification) error
	ListNotifications(ctx context.Context, profileID string, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, profileID string) error
}

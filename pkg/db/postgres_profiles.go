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

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

func scanProfile(row pgx.Row) (*models.Profile, error) {
	profile := &models.Profile{}

	err := row.Scan(&profile.ID, &profile.Name, &profile.Description,
		&profile.AccessToken, &profile.NotificationsEnabled, &profile.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	return profile, nil
}

func (db *DB) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if profile == nil {
		return ErrProfileNil
	}

	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}

	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}

	_, err := db.pool.Exec(ctx, `
        INSERT INTO profiles (id, name, description, access_token, notifications_enabled, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		profile.ID, profile.Name, profile.Description,
		profile.AccessToken, profile.NotificationsEnabled, profile.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTokenExists
		}

		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	row := db.pool.QueryRow(ctx, `
        SELECT id, name, description, access_token, notifications_enabled, created_at
        FROM profiles WHERE id = $1`, id)

	return scanProfile(row)
}

func (db *DB) GetProfileByToken(ctx context.Context, token string) (*models.Profile, error) {
	row := db.pool.QueryRow(ctx, `
        SELECT id, name, description, access_token, notifications_enabled, created_at
        FROM profiles WHERE access_token = $1`, token)

	return scanProfile(row)
}

// UpsertPermissionGrant replaces any existing grant for the (profile, bot)
// pair wholesale. Omitted capabilities arrive as false and stay false.
func (db *DB) UpsertPermissionGrant(ctx context.Context, grant *models.PermissionGrant) error {
	if grant == nil {
		return ErrGrantNil
	}

	_, err := db.pool.Exec(ctx, `
        INSERT INTO permission_grants
            (profile_id, bot_id, can_view, can_edit, can_start_stop, can_restart, receive_notifications)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (profile_id, bot_id) DO UPDATE SET
            can_view = EXCLUDED.can_view,
            can_edit = EXCLUDED.can_edit,
            can_start_stop = EXCLUDED.can_start_stop,
            can_restart = EXCLUDED.can_restart,
            receive_notifications = EXCLUDED.receive_notifications`,
		grant.ProfileID, grant.BotID, grant.CanView, grant.CanEdit,
		grant.CanStartStop, grant.CanRestart, grant.ReceiveNotifications)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) GetPermissionGrant(
	ctx context.Context, profileID, botID string) (*models.PermissionGrant, error) {
	row := db.pool.QueryRow(ctx, `
        SELECT profile_id, bot_id, can_view, can_edit, can_start_stop, can_restart, receive_notifications
        FROM permission_grants WHERE profile_id = $1 AND bot_id = $2`, profileID, botID)

	grant := &models.PermissionGrant{}

	err := row.Scan(&grant.ProfileID, &grant.BotID, &grant.CanView, &grant.CanEdit,
		&grant.CanStartStop, &grant.CanRestart, &grant.ReceiveNotifications)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	return grant, nil
}

func (db *DB) ListGrantsForProfile(
	ctx context.Context, profileID string) ([]models.PermissionGrant, error) {
	return db.listGrants(ctx, "profile_id", profileID)
}

func (db *DB) ListGrantsForBot(ctx context.Context, botID string) ([]models.PermissionGrant, error) {
	return db.listGrants(ctx, "bot_id", botID)
}

func (db *DB) listGrants(ctx context.Context, field, value string) ([]models.PermissionGrant, error) {
	rows, err := db.pool.Query(ctx, `
        SELECT profile_id, bot_id, can_view, can_edit, can_start_stop, can_restart, receive_notifications
        FROM permission_grants WHERE `+field+` = $1`, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var out []models.PermissionGrant

	for rows.Next() {
		var grant models.PermissionGrant

		err := rows.Scan(&grant.ProfileID, &grant.BotID, &grant.CanView, &grant.CanEdit,
			&grant.CanStartStop, &grant.CanRestart, &grant.ReceiveNotifications)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		out = append(out, grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

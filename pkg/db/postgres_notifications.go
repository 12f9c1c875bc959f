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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

func (db *DB) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if notification == nil {
		return ErrNotificationNil
	}

	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	_, err := db.pool.Exec(ctx, `
        INSERT INTO notifications (id, profile_id, bot_id, title, message, type, read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		notification.ID, notification.ProfileID, notification.BotID, notification.Title,
		notification.Message, string(notification.Type), notification.Read, notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) ListNotifications(
	ctx context.Context, profileID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.pool.Query(ctx, `
        SELECT id, profile_id, bot_id, title, message, type, read, created_at
        FROM notifications
        WHERE profile_id = $1
        ORDER BY created_at DESC
        LIMIT $2`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var out []models.Notification

	for rows.Next() {
		var n models.Notification

		var notificationType string

		err := rows.Scan(&n.ID, &n.ProfileID, &n.BotID, &n.Title,
			&n.Message, &notificationType, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		n.Type = models.NotificationType(notificationType)
		out = append(out, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

func (db *DB) MarkNotificationRead(ctx context.Context, id, profileID string) error {
	tag, err := db.pool.Exec(ctx, `
        UPDATE notifications SET read = TRUE
        WHERE id = $1 AND profile_id = $2`, id, profileID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}

	return nil
}

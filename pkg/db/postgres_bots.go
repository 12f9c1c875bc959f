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

const botColumns = "id, name, status, last_heartbeat, main_file, created_at"

func scanBot(row pgx.Row) (*models.Bot, error) {
	bot := &models.Bot{}

	var status string

	err := row.Scan(&bot.ID, &bot.Name, &status, &bot.LastHeartbeat, &bot.MainFile, &bot.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBotNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	bot.Status = models.EntityStatus(status)

	return bot, nil
}

func (db *DB) CreateBot(ctx context.Context, bot *models.Bot) error {
	if bot == nil {
		return ErrBotNil
	}

	if bot.ID == "" {
		bot.ID = uuid.New().String()
	}

	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = time.Now()
	}

	_, err := db.pool.Exec(ctx, `
        INSERT INTO bots (id, name, status, last_heartbeat, main_file, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		bot.ID, bot.Name, string(bot.Status), bot.LastHeartbeat, bot.MainFile, bot.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrBotNameExists
		}

		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) GetBot(ctx context.Context, id string) (*models.Bot, error) {
	row := db.pool.QueryRow(ctx, `
        SELECT `+botColumns+` FROM bots WHERE id = $1`, id)

	return scanBot(row)
}

func (db *DB) GetBotByName(ctx context.Context, name string) (*models.Bot, error) {
	row := db.pool.QueryRow(ctx, `
        SELECT `+botColumns+` FROM bots WHERE name = $1`, name)

	return scanBot(row)
}

func (db *DB) UpdateBotStatus(
	ctx context.Context, id string, status models.EntityStatus, lastHeartbeat time.Time) error {
	tag, err := db.pool.Exec(ctx, `
        UPDATE bots SET status = $2, last_heartbeat = $3 WHERE id = $1`,
		id, string(status), lastHeartbeat)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrBotNotFound
	}

	return nil
}

func (db *DB) ListBots(ctx context.Context) ([]models.Bot, error) {
	rows, err := db.pool.Query(ctx, `
        SELECT `+botColumns+` FROM bots ORDER BY last_heartbeat DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	return collectBots(rows)
}

func (db *DB) ListStaleBots(ctx context.Context, cutoff time.Time) ([]models.Bot, error) {
	rows, err := db.pool.Query(ctx, `
        SELECT `+botColumns+` FROM bots
        WHERE status != $1 AND last_heartbeat < $2
        ORDER BY name`, string(models.StatusOffline), cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	return collectBots(rows)
}

// MarkBotOffline re-checks the staleness condition inside the UPDATE so a
// heartbeat racing the sweep wins.
func (db *DB) MarkBotOffline(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	tag, err := db.pool.Exec(ctx, `
        UPDATE bots SET status = $2
        WHERE id = $1 AND status != $2 AND last_heartbeat < $3`,
		id, string(models.StatusOffline), cutoff)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return tag.RowsAffected() > 0, nil
}

func collectBots(rows pgx.Rows) ([]models.Bot, error) {
	var out []models.Bot

	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *bot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

func (db *DB) AppendStatusHistory(ctx context.Context, entry *models.StatusHistoryEntry) error {
	if entry == nil {
		return ErrHistoryNil
	}

	if entry.EntityID == "" {
		return ErrEntityIDMissing
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	_, err := db.pool.Exec(ctx, `
        INSERT INTO status_history (id, entity_id, status, message, source, timestamp)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.EntityID, string(entry.Status), entry.Message, entry.Source, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) GetStatusHistory(
	ctx context.Context, entityID string, limit int) ([]models.StatusHistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.pool.Query(ctx, `
        SELECT id, entity_id, status, message, source, timestamp
        FROM status_history
        WHERE entity_id = $1
        ORDER BY timestamp DESC
        LIMIT $2`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var out []models.StatusHistoryEntry

	for rows.Next() {
		var entry models.StatusHistoryEntry

		var status string

		err := rows.Scan(&entry.ID, &entry.EntityID, &status, &entry.Message, &entry.Source, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		entry.Status = models.EntityStatus(status)
		out = append(out, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

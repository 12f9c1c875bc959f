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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// ReplaceBotFiles swaps a bot's full file set inside one transaction. A
// failure anywhere leaves the previous set intact.
func (db *DB) ReplaceBotFiles(ctx context.Context, botID string, files []*models.BotFile) (err error) {
	if _, err = db.GetBot(ctx, botID); err != nil {
		return err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `DELETE FROM bot_files WHERE bot_id = $1`, botID); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	batch := &pgx.Batch{}

	for _, file := range files {
		id := file.ID
		if id == "" {
			id = uuid.New().String()
		}

		batch.Queue(`
            INSERT INTO bot_files (id, bot_id, name, path, content, hash)
            VALUES ($1, $2, $3, $4, $5, $6)`,
			id, botID, file.Name, file.Path, file.Content, file.Hash)
	}

	if err = sendBatchExecAll(ctx, batch, tx.SendBatch, "bot file insert"); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDatabaseError, err)
	}

	return nil
}

func (db *DB) ListBotFiles(ctx context.Context, botID string) ([]models.BotFile, error) {
	rows, err := db.pool.Query(ctx, `
        SELECT id, bot_id, name, path, content, hash
        FROM bot_files WHERE bot_id = $1 ORDER BY path`, botID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var out []models.BotFile

	for rows.Next() {
		var file models.BotFile

		err := rows.Scan(&file.ID, &file.BotID, &file.Name, &file.Path, &file.Content, &file.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
		}

		out = append(out, file)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

func sendBatchExecAll(
	ctx context.Context,
	batch *pgx.Batch,
	send func(context.Context, *pgx.Batch) pgx.BatchResults,
	operation string,
) (err error) {
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	br := send(ctx, batch)
	defer func() {
		if closeErr := br.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("%s batch close: %w", operation, closeErr)
		}
	}()

	for i := 0; i < batch.Len(); i++ {
		if _, err = br.Exec(); err != nil {
			return fmt.Errorf("%s batch exec (command %d): %w", operation, i, err)
		}
	}

	return nil
}

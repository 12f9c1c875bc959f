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

const nodeColumns = "id, name, address, status, last_heartbeat, cpu_usage, memory_usage, disk_usage, running_bots"

func scanNode(row pgx.Row) (*models.FleetNode, error) {
	node := &models.FleetNode{}

	var status string

	err := row.Scan(&node.ID, &node.Name, &node.Address, &status, &node.LastHeartbeat,
		&node.CPUUsage, &node.MemoryUsage, &node.DiskUsage, &node.RunningBots)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNodeNotFound
		}

		return nil, fmt.Errorf("%w: %w", ErrFailedToScan, err)
	}

	node.Status = models.EntityStatus(status)

	return node, nil
}

func (db *DB) GetNode(ctx context.Context, id string) (*models.FleetNode, error) {
	row := db.pool.QueryRow(ctx, `
        SELECT `+nodeColumns+` FROM fleet_nodes WHERE id = $1`, id)

	return scanNode(row)
}

func (db *DB) GetNodeByName(ctx context.Context, name string) (*models.FleetNode, error) {
	row := db.pool.QueryRow(ctx, `
        SELECT `+nodeColumns+` FROM fleet_nodes WHERE name = $1`, name)

	return scanNode(row)
}

func (db *DB) UpsertNode(ctx context.Context, node *models.FleetNode) error {
	if node == nil {
		return ErrNodeNil
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}

	running := node.RunningBots
	if running == nil {
		running = []string{}
	}

	row := db.pool.QueryRow(ctx, `
        INSERT INTO fleet_nodes
            (id, name, address, status, last_heartbeat, cpu_usage, memory_usage, disk_usage, running_bots)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (name) DO UPDATE SET
            address = EXCLUDED.address,
            status = EXCLUDED.status,
            last_heartbeat = EXCLUDED.last_heartbeat,
            cpu_usage = EXCLUDED.cpu_usage,
            memory_usage = EXCLUDED.memory_usage,
            disk_usage = EXCLUDED.disk_usage,
            running_bots = EXCLUDED.running_bots
        RETURNING id`,
		node.ID, node.Name, node.Address, string(node.Status), node.LastHeartbeat,
		node.CPUUsage, node.MemoryUsage, node.DiskUsage, running)

	if err := row.Scan(&node.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
	}

	return nil
}

func (db *DB) ListNodes(ctx context.Context) ([]models.FleetNode, error) {
	rows, err := db.pool.Query(ctx, `
        SELECT `+nodeColumns+` FROM fleet_nodes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

func (db *DB) ListStaleNodes(ctx context.Context, cutoff time.Time) ([]models.FleetNode, error) {
	rows, err := db.pool.Query(ctx, `
        SELECT `+nodeColumns+` FROM fleet_nodes
        WHERE status != $1 AND last_heartbeat < $2
        ORDER BY name`, string(models.StatusOffline), cutoff)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

func (db *DB) MarkNodeOffline(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	tag, err := db.pool.Exec(ctx, `
        UPDATE fleet_nodes SET status = $2
        WHERE id = $1 AND status != $2 AND last_heartbeat < $3`,
		id, string(models.StatusOffline), cutoff)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return tag.RowsAffected() > 0, nil
}

func collectNodes(rows pgx.Rows) ([]models.FleetNode, error) {
	var out []models.FleetNode

	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

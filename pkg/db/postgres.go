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
	"net/url"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

const pgUniqueViolation = "23505"

// DB is the Postgres-backed Service implementation.
type DB struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// NewPostgres dials the configured Postgres cluster, ensures the schema, and
// returns the store.
func NewPostgres(ctx context.Context, cfg *models.Database, log logger.Logger) (*DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil database config", ErrFailedOpenDB)
	}

	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	connURL := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, port),
		Path:   "/" + cfg.Database,
	}

	if cfg.Username != "" {
		if cfg.Password != "" {
			connURL.User = url.UserPassword(cfg.Username, cfg.Password)
		} else {
			connURL.User = url.User(cfg.Username)
		}
	}

	query := connURL.Query()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	query.Set("sslmode", sslMode)

	if cfg.ApplicationName != "" {
		query.Set("application_name", cfg.ApplicationName)
	}

	connURL.RawQuery = query.Encode()

	poolConfig, err := pgxpool.ParseConfig(connURL.String())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse connection string: %w", ErrFailedOpenDB, err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}

	if cfg.MinConnections > 0 {
		poolConfig.MinConns = cfg.MinConnections
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedOpenDB, err)
	}

	store := &DB{pool: pool, logger: log}

	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return store, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS bots (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			last_heartbeat TIMESTAMPTZ NOT NULL,
			main_file TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS fleet_nodes (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			address TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			last_heartbeat TIMESTAMPTZ NOT NULL,
			cpu_usage DOUBLE PRECISION NOT NULL DEFAULT 0,
			memory_usage DOUBLE PRECISION NOT NULL DEFAULT 0,
			disk_usage DOUBLE PRECISION NOT NULL DEFAULT 0,
			running_bots TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS status_history (
			id UUID PRIMARY KEY,
			entity_id UUID NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_entity
			ON status_history (entity_id, timestamp DESC)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			access_token TEXT NOT NULL UNIQUE,
			notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS permission_grants (
			profile_id UUID NOT NULL REFERENCES profiles(id),
			bot_id UUID NOT NULL REFERENCES bots(id),
			can_view BOOLEAN NOT NULL DEFAULT FALSE,
			can_edit BOOLEAN NOT NULL DEFAULT FALSE,
			can_start_stop BOOLEAN NOT NULL DEFAULT FALSE,
			can_restart BOOLEAN NOT NULL DEFAULT FALSE,
			receive_notifications BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (profile_id, bot_id)
		)`,
		`CREATE TABLE IF NOT EXISTS bot_files (
			id UUID PRIMARY KEY,
			bot_id UUID NOT NULL REFERENCES bots(id),
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			content TEXT NOT NULL,
			hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			profile_id UUID NOT NULL REFERENCES profiles(id),
			bot_id UUID NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			type TEXT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_profile
			ON notifications (profile_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: %w", ErrFailedToInsert, err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

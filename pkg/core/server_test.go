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

package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

func newTestServer(t *testing.T, options ...Option) (*Server, *db.MemoryStore) {
	t.Helper()

	store := db.NewMemoryStore()
	broadcastHub := hub.NewHub(logger.NewTestLogger())
	server := NewServer(store, broadcastHub, nil, logger.NewTestLogger(), options...)

	return server, store
}

func seedBot(t *testing.T, store *db.MemoryStore, name string, status models.EntityStatus, lastHeartbeat time.Time) *models.Bot {
	t.Helper()

	bot := &models.Bot{
		Name:          name,
		Status:        status,
		LastHeartbeat: lastHeartbeat,
		MainFile:      name + ".js",
		CreatedAt:     lastHeartbeat,
	}

	require.NoError(t, store.CreateBot(context.Background(), bot))

	return bot
}

// seedEntitledProfile grants notification entitlement to a fresh profile and
// returns its id and access token.
func seedEntitledProfile(t *testing.T, store *db.MemoryStore, botID string) (profileID, token string) {
	t.Helper()

	profile := &models.Profile{
		Name:                 "watcher-" + botID,
		AccessToken:          "token-" + botID,
		NotificationsEnabled: true,
	}

	require.NoError(t, store.CreateProfile(context.Background(), profile))
	require.NoError(t, store.UpsertPermissionGrant(context.Background(), &models.PermissionGrant{
		ProfileID: profile.ID,
		BotID:     botID,
		Capabilities: models.Capabilities{
			CanView:              true,
			ReceiveNotifications: true,
		},
	}))

	return profile.ID, profile.AccessToken
}

func TestNewServerDefaults(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	require.Equal(t, 2*time.Minute, server.botStaleThreshold)
	require.Equal(t, time.Minute, server.nodeStaleThreshold)
	require.Equal(t, 30*time.Second, server.sweepInterval)
	require.Equal(t, 100, server.HistoryLimit())
}

func TestNewServerAppliesConfig(t *testing.T) {
	t.Parallel()

	store := db.NewMemoryStore()
	broadcastHub := hub.NewHub(logger.NewTestLogger())

	cfg := &models.CoreServiceConfig{
		BotStaleThreshold:  models.Duration(5 * time.Minute),
		NodeStaleThreshold: models.Duration(90 * time.Second),
		SweepInterval:      models.Duration(10 * time.Second),
		HistoryLimit:       25,
	}

	server := NewServer(store, broadcastHub, cfg, logger.NewTestLogger())

	require.Equal(t, 5*time.Minute, server.botStaleThreshold)
	require.Equal(t, 90*time.Second, server.nodeStaleThreshold)
	require.Equal(t, 10*time.Second, server.sweepInterval)
	require.Equal(t, 25, server.HistoryLimit())
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	server.Stop()
	server.Stop()

	select {
	case <-server.ShutdownChan:
	default:
		t.Fatal("expected shutdown channel to be closed")
	}
}

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

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

func TestSweepDemotesStaleBot(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "stale-bot", models.StatusOnline, time.Now().Add(-time.Hour))
	profileID, _ := seedEntitledProfile(t, store, bot.ID)

	require.NoError(t, server.SweepOnce(ctx))

	got, err := store.GetBot(ctx, bot.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOffline, got.Status)

	history, err := store.GetStatusHistory(ctx, bot.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "system-sweep", history[0].Source)
	require.Equal(t, models.StatusOffline, history[0].Status)

	notifications, err := store.ListNotifications(ctx, profileID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationBotOffline, notifications[0].Type)
}

func TestSweepLeavesFreshBot(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "fresh-bot", models.StatusOnline, time.Now())

	require.NoError(t, server.SweepOnce(ctx))

	got, err := store.GetBot(ctx, bot.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOnline, got.Status)

	history, err := store.GetStatusHistory(ctx, bot.ID, 10)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestSweepIsIdempotent(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "twice-swept", models.StatusCrashed, time.Now().Add(-time.Hour))
	profileID, _ := seedEntitledProfile(t, store, bot.ID)

	require.NoError(t, server.SweepOnce(ctx))
	require.NoError(t, server.SweepOnce(ctx))

	history, err := store.GetStatusHistory(ctx, bot.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1, "second sweep must not re-demote")

	notifications, err := store.ListNotifications(ctx, profileID, 10)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
}

func TestSweepRacingHeartbeatWins(t *testing.T) {
	t.Parallel()

	_, store := newTestServer(t)
	ctx := context.Background()

	// The bot looked stale when listed but heartbeats before the demotion
	// write lands. The conditional write must leave it online.
	bot := seedBot(t, store, "racer", models.StatusOnline, time.Now().Add(-time.Hour))

	require.NoError(t, store.UpdateBotStatus(ctx, bot.ID, models.StatusOnline, time.Now()))

	demoted, err := store.MarkBotOffline(ctx, bot.ID, time.Now().Add(-2*time.Minute))
	require.NoError(t, err)
	require.False(t, demoted)

	got, err := store.GetBot(ctx, bot.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOnline, got.Status)
}

func TestSweepDemotesStaleNode(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	node := &models.FleetNode{
		Name:          "pi-stale",
		Status:        models.StatusOnline,
		LastHeartbeat: time.Now().Add(-time.Hour),
	}
	require.NoError(t, store.UpsertNode(ctx, node))

	require.NoError(t, server.SweepOnce(ctx))

	got, err := store.GetNode(ctx, node.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOffline, got.Status)

	history, err := store.GetStatusHistory(ctx, node.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "system-sweep", history[0].Source)
}

func TestMonitorEntitiesStopsOnShutdown(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	done := make(chan struct{})

	go func() {
		server.MonitorEntities(context.Background())
		close(done)
	}()

	server.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not exit on shutdown")
	}
}

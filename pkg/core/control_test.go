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
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

func TestControlBotRecordsIntentWithoutChangingStatus(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "controlled", models.StatusOnline, time.Now())

	require.NoError(t, server.ControlBot(ctx, bot.ID, models.ActionStop, "operator"))

	got, err := store.GetBot(ctx, bot.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusOnline, got.Status, "control intent must not touch live status")

	history, err := store.GetStatusHistory(ctx, bot.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.StatusOffline, history[0].Status, "stop records offline intent")
	require.Equal(t, "Bot stop command issued", history[0].Message)
	require.Equal(t, "operator", history[0].Source)
}

func TestControlBotRestartIntent(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "restarted", models.StatusOnline, time.Now())

	require.NoError(t, server.ControlBot(ctx, bot.ID, models.ActionRestart, "operator"))

	history, err := store.GetStatusHistory(ctx, bot.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, models.StatusOnline, history[0].Status, "restart records online intent")
}

func TestControlBotInvalidAction(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	bot := seedBot(t, store, "strict", models.StatusOnline, time.Now())

	err := server.ControlBot(context.Background(), bot.ID, "reboot", "operator")
	require.ErrorIs(t, err, models.ErrInvalidAction)
}

func TestControlBotRequiresSource(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	bot := seedBot(t, store, "audited", models.StatusOnline, time.Now())

	err := server.ControlBot(context.Background(), bot.ID, models.ActionStop, "  ")
	require.ErrorIs(t, err, ErrEmptySource)

	history, err := store.GetStatusHistory(context.Background(), bot.ID, 10)
	require.NoError(t, err)
	require.Empty(t, history, "rejected intent leaves no audit row")
}

func TestControlBotUnknownBot(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	err := server.ControlBot(context.Background(), "missing", models.ActionStart, "operator")
	require.ErrorIs(t, err, db.ErrBotNotFound)
}

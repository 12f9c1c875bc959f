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

func seedProfile(t *testing.T, store *db.MemoryStore, name, token string, enabled bool) *models.Profile {
	t.Helper()

	profile := &models.Profile{
		Name:                 name,
		AccessToken:          token,
		NotificationsEnabled: enabled,
	}

	require.NoError(t, store.CreateProfile(context.Background(), profile))

	return profile
}

func grant(t *testing.T, store *db.MemoryStore, profileID, botID string, caps models.Capabilities) {
	t.Helper()

	require.NoError(t, store.UpsertPermissionGrant(context.Background(), &models.PermissionGrant{
		ProfileID:    profileID,
		BotID:        botID,
		Capabilities: caps,
	}))
}

// A notification lands only when the grant carries the notifications bit AND
// the profile's global toggle is on. Everyone else stays silent.
func TestDispatchTransitionEntitlementFiltering(t *testing.T) {
	t.Parallel()

	server, store := newTestServer(t)
	ctx := context.Background()

	bot := seedBot(t, store, "watched", models.StatusOnline, time.Now())

	entitled := seedProfile(t, store, "entitled", "tok-entitled", true)
	grant(t, store, entitled.ID, bot.ID, models.Capabilities{ReceiveNotifications: true})

	noBit := seedProfile(t, store, "no-bit", "tok-no-bit", true)
	grant(t, store, noBit.ID, bot.ID, models.Capabilities{CanView: true})

	muted := seedProfile(t, store, "muted", "tok-muted", false)
	grant(t, store, muted.ID, bot.ID, models.Capabilities{ReceiveNotifications: true})

	stranger := seedProfile(t, store, "stranger", "tok-stranger", true)

	result, err := server.ReportBotHeartbeat(ctx, &HeartbeatRequest{Name: "watched", Status: "crashed"})
	require.NoError(t, err)
	require.True(t, result.Transitioned)

	got, err := store.ListNotifications(ctx, entitled.ID, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, models.NotificationBotCrash, got[0].Type)
	require.Contains(t, got[0].Message, "watched")

	for _, profile := range []*models.Profile{noBit, muted, stranger} {
		got, err := store.ListNotifications(ctx, profile.ID, 10)
		require.NoError(t, err)
		require.Empty(t, got, "profile %s must not be notified", profile.Name)
	}
}

type stubPublisher struct {
	events []models.TransitionEvent
}

func (p *stubPublisher) PublishTransition(_ context.Context, event models.TransitionEvent) error {
	p.events = append(p.events, event)
	return nil
}

func TestDispatchTransitionPublishesEvent(t *testing.T) {
	t.Parallel()

	publisher := &stubPublisher{}
	server, store := newTestServer(t, WithTransitionPublisher(publisher))
	ctx := context.Background()

	seedBot(t, store, "published", models.StatusOnline, time.Now())

	_, err := server.ReportBotHeartbeat(ctx, &HeartbeatRequest{Name: "published", Status: "offline"})
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	require.Equal(t, models.StatusOnline, publisher.events[0].OldStatus)
	require.Equal(t, models.StatusOffline, publisher.events[0].NewStatus)
	require.Equal(t, "published", publisher.events[0].BotName)
}

func TestTransitionMessageWording(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Bot worker has crashed", transitionMessage("worker", models.StatusCrashed))
	require.Equal(t, "Bot worker went offline", transitionMessage("worker", models.StatusOffline))
	require.Equal(t, "Bot worker entered maintenance", transitionMessage("worker", models.StatusMaintenance))
	require.Equal(t, "Bot worker is online", transitionMessage("worker", models.StatusOnline))
}

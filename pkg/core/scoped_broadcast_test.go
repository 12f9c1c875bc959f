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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

type collectingSink struct {
	mu     sync.Mutex
	frames []hub.Envelope
}

func (s *collectingSink) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if envelope, ok := v.(hub.Envelope); ok {
		s.frames = append(s.frames, envelope)
	}

	return nil
}

func (s *collectingSink) Close() error { return nil }

func (s *collectingSink) count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0

	for _, frame := range s.frames {
		if frame.Event == event {
			n++
		}
	}

	return n
}

func TestScopedBroadcastLimitsNotificationFanout(t *testing.T) {
	t.Parallel()

	store := db.NewMemoryStore()
	broadcastHub := hub.NewHub(logger.NewTestLogger())

	cfg := &models.CoreServiceConfig{ScopedBroadcast: true}
	server := NewServer(store, broadcastHub, cfg, logger.NewTestLogger())

	ctx := context.Background()

	bot := seedBot(t, store, "scoped", models.StatusOnline, time.Now())
	_, token := seedEntitledProfile(t, store, bot.ID)

	entitled := &collectingSink{}
	entitledSub := broadcastHub.Register(entitled)
	broadcastHub.Identify(entitledSub, "desktop", token)

	anonymous := &collectingSink{}
	broadcastHub.Register(anonymous)

	_, err := server.ReportBotHeartbeat(ctx, &HeartbeatRequest{Name: "scoped", Status: "crashed"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return entitled.count(models.EventNotification) == 1
	}, time.Second, 10*time.Millisecond)

	// Status updates still fan out to everyone; only the notification
	// event is scoped.
	require.Eventually(t, func() bool {
		return anonymous.count(models.EventBotStatusUpdate) == 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, anonymous.count(models.EventNotification))
}

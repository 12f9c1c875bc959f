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
	"errors"
	"fmt"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrBotNotFound) || errors.Is(err, db.ErrNodeNotFound)
}

// dispatchTransition fans a status transition out to every profile entitled
// to hear about it. A profile receives a notification row only when both its
// grant on the bot carries the notifications capability and its global
// notification toggle is on. Persistence failures for one profile are logged
// and do not block the rest, and the realtime event is emitted regardless.
func (s *Server) dispatchTransition(
	ctx context.Context,
	botID, botName string,
	from, to models.EntityStatus,
	at time.Time,
) {
	event := models.TransitionEvent{
		BotID:     botID,
		BotName:   botName,
		OldStatus: from,
		NewStatus: to,
		Timestamp: at,
	}

	s.logger.Info().
		Str("bot_id", botID).
		Str("bot_name", botName).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("Bot status transition")

	notifType := models.NotificationTypeForStatus(to)
	title := fmt.Sprintf("Bot status: %s", to)
	message := transitionMessage(botName, to)

	grants, err := s.store.ListGrantsForBot(ctx, botID)
	if err != nil {
		s.logger.Error().Err(err).Str("bot_id", botID).Msg("Failed to list grants for transition dispatch")
	}

	entitledTokens := make(map[string]bool)

	for _, grant := range grants {
		if !grant.ReceiveNotifications {
			continue
		}

		profile, err := s.store.GetProfile(ctx, grant.ProfileID)
		if err != nil {
			s.logger.Error().Err(err).
				Str("profile_id", grant.ProfileID).
				Str("bot_id", botID).
				Msg("Failed to load profile for notification")

			continue
		}

		if !profile.NotificationsEnabled {
			continue
		}

		entitledTokens[profile.AccessToken] = true

		notif := &models.Notification{
			ProfileID: profile.ID,
			BotID:     botID,
			Type:      notifType,
			Title:     title,
			Message:   message,
			CreatedAt: at,
		}

		if err := s.store.CreateNotification(ctx, notif); err != nil {
			s.logger.Error().Err(err).
				Str("profile_id", profile.ID).
				Str("bot_id", botID).
				Msg("Failed to persist notification")

			continue
		}

		s.logger.Debug().
			Str("profile_id", profile.ID).
			Str("bot_id", botID).
			Str("type", string(notifType)).
			Msg("Notification created")
	}

	if s.scopedBroadcast {
		s.hub.BroadcastScoped(models.EventNotification, event, func(sub *hub.Subscriber) bool {
			return entitledTokens[sub.Token]
		})
	} else {
		s.hub.Broadcast(models.EventNotification, event)
	}

	if s.events != nil {
		if err := s.events.PublishTransition(ctx, event); err != nil {
			s.logger.Error().Err(err).Str("bot_id", botID).Msg("Failed to publish transition event")
		}
	}
}

func transitionMessage(botName string, to models.EntityStatus) string {
	switch to {
	case models.StatusCrashed:
		return fmt.Sprintf("Bot %s has crashed", botName)
	case models.StatusOffline:
		return fmt.Sprintf("Bot %s went offline", botName)
	case models.StatusMaintenance:
		return fmt.Sprintf("Bot %s entered maintenance", botName)
	default:
		return fmt.Sprintf("Bot %s is %s", botName, to)
	}
}

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
	"fmt"
	"strings"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// ControlBot records an operator intent against a bot and relays it to
// subscribers. The bot's own status is untouched: only a subsequent
// heartbeat, reflecting what actually happened on the node, changes it.
func (s *Server) ControlBot(ctx context.Context, botID string, action models.ControlAction, source string) error {
	parsed, err := models.ParseControlAction(string(action))
	if err != nil {
		return err
	}

	// Control intents are audit records; an anonymous one is useless.
	if strings.TrimSpace(source) == "" {
		return ErrEmptySource
	}

	bot, err := s.store.GetBot(ctx, botID)
	if err != nil {
		return fmt.Errorf("failed to look up bot for control: %w", err)
	}

	now := time.Now()

	if err := s.store.AppendStatusHistory(ctx, &models.StatusHistoryEntry{
		EntityID:  bot.ID,
		Status:    parsed.IntentStatus(),
		Message:   fmt.Sprintf("Bot %s command issued", parsed),
		Source:    source,
		Timestamp: now,
	}); err != nil {
		return fmt.Errorf("failed to record control intent: %w", err)
	}

	s.logger.Info().
		Str("bot_id", bot.ID).
		Str("bot_name", bot.Name).
		Str("action", string(parsed)).
		Str("source", source).
		Msg("Bot control command issued")

	s.hub.Broadcast(models.EventBotControl, models.ControlEvent{
		BotID:     bot.ID,
		BotName:   bot.Name,
		Action:    parsed,
		Source:    source,
		Timestamp: now,
	})

	return nil
}

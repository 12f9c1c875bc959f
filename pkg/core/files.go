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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// ReplaceBotFiles swaps a bot's entire file set atomically. Each file is
// content-addressed with a SHA-256 digest so sync agents can skip unchanged
// files. Concurrent replaces for the same bot are serialized; the last
// writer's complete set wins.
func (s *Server) ReplaceBotFiles(ctx context.Context, botID string, inputs []FileInput) ([]models.BotFile, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyFileSet
	}

	unlock := s.fileLocks.lock(botID)
	defer unlock()

	files := make([]*models.BotFile, 0, len(inputs))

	for _, in := range inputs {
		sum := sha256.Sum256([]byte(in.Content))

		files = append(files, &models.BotFile{
			BotID:   botID,
			Name:    in.Name,
			Path:    in.Path,
			Content: in.Content,
			Hash:    hex.EncodeToString(sum[:]),
		})
	}

	if err := s.store.ReplaceBotFiles(ctx, botID, files); err != nil {
		return nil, fmt.Errorf("failed to replace bot files: %w", err)
	}

	s.logger.Info().
		Str("bot_id", botID).
		Int("files", len(files)).
		Msg("Bot file set replaced")

	s.hub.Broadcast(models.EventFileUpdate, models.FileUpdateEvent{
		BotID:     botID,
		Timestamp: time.Now(),
	})

	stored := make([]models.BotFile, 0, len(files))
	for _, f := range files {
		stored = append(stored, *f)
	}

	return stored, nil
}

// ListBotFiles returns the current file set for a bot.
func (s *Server) ListBotFiles(ctx context.Context, botID string) ([]models.BotFile, error) {
	files, err := s.store.ListBotFiles(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bot files: %w", err)
	}

	return files, nil
}

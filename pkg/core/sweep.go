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
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// MonitorEntities runs the staleness sweep on a fixed cadence until the
// context is canceled or the server is stopped. Store failures are logged
// and corrected by the next cycle; they never crash the scheduler.
func (s *Server) MonitorEntities(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	if err := s.SweepOnce(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Initial staleness sweep failed")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.ShutdownChan:
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Staleness sweep failed")
			}
		}
	}
}

// SweepOnce demotes every stale bot and fleet node to offline. Idempotent
// per run: an entity already offline, or one that heartbeated since the
// cutoff, is left untouched.
func (s *Server) SweepOnce(ctx context.Context) error {
	now := time.Now()

	if err := s.sweepBots(ctx, now.Add(-s.botStaleThreshold)); err != nil {
		return err
	}

	return s.sweepNodes(ctx, now.Add(-s.nodeStaleThreshold))
}

func (s *Server) sweepBots(ctx context.Context, cutoff time.Time) error {
	stale, err := s.store.ListStaleBots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale bots: %w", err)
	}

	for i := range stale {
		s.demoteBot(ctx, &stale[i], cutoff)
	}

	return nil
}

func (s *Server) demoteBot(ctx context.Context, bot *models.Bot, cutoff time.Time) {
	unlock := s.entityLocks.lock("bot:" + bot.Name)
	defer unlock()

	// Re-checked inside the store so a heartbeat racing the sweep wins.
	demoted, err := s.store.MarkBotOffline(ctx, bot.ID, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Str("bot_id", bot.ID).Msg("Failed to demote stale bot")
		return
	}

	if !demoted {
		return
	}

	now := time.Now()
	age := now.Sub(bot.LastHeartbeat).Round(time.Second)

	s.logger.Info().
		Str("bot_id", bot.ID).
		Str("bot_name", bot.Name).
		Dur("heartbeat_age", age).
		Msg("Bot marked offline by sweep")

	if err := s.store.AppendStatusHistory(ctx, &models.StatusHistoryEntry{
		EntityID:  bot.ID,
		Status:    models.StatusOffline,
		Message:   fmt.Sprintf("No heartbeat for %s", age),
		Source:    sourceSystemSweep,
		Timestamp: now,
	}); err != nil {
		s.logger.Error().Err(err).Str("bot_id", bot.ID).Msg("Failed to record sweep demotion")
	}

	s.hub.Broadcast(models.EventBotStatusUpdate, models.StatusUpdateEvent{
		EntityID:  bot.ID,
		Name:      bot.Name,
		Status:    models.StatusOffline,
		Source:    sourceSystemSweep,
		Timestamp: now,
	})

	s.dispatchTransition(ctx, bot.ID, bot.Name, bot.Status, models.StatusOffline, now)
}

func (s *Server) sweepNodes(ctx context.Context, cutoff time.Time) error {
	stale, err := s.store.ListStaleNodes(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list stale fleet nodes: %w", err)
	}

	for i := range stale {
		s.demoteNode(ctx, &stale[i], cutoff)
	}

	return nil
}

func (s *Server) demoteNode(ctx context.Context, node *models.FleetNode, cutoff time.Time) {
	unlock := s.entityLocks.lock("node:" + node.Name)
	defer unlock()

	demoted, err := s.store.MarkNodeOffline(ctx, node.ID, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Str("node_id", node.ID).Msg("Failed to demote stale fleet node")
		return
	}

	if !demoted {
		return
	}

	now := time.Now()

	s.logger.Info().
		Str("node_id", node.ID).
		Str("node_name", node.Name).
		Msg("Fleet node marked offline by sweep")

	if err := s.store.AppendStatusHistory(ctx, &models.StatusHistoryEntry{
		EntityID:  node.ID,
		Status:    models.StatusOffline,
		Message:   "No heartbeat within threshold",
		Source:    sourceSystemSweep,
		Timestamp: now,
	}); err != nil {
		s.logger.Error().Err(err).Str("node_id", node.ID).Msg("Failed to record sweep demotion")
	}

	s.hub.Broadcast(models.EventNodeStatus, models.StatusUpdateEvent{
		EntityID:  node.ID,
		Name:      node.Name,
		Status:    models.StatusOffline,
		Source:    sourceSystemSweep,
		Timestamp: now,
	})
}

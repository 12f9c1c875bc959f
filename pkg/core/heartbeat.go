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

// ReportBotHeartbeat ingests one bot liveness report. The bot is created on
// first sight with the reported (or default online) status. Every heartbeat
// writes exactly one history row and broadcasts a status update; a
// notification is dispatched only when the status actually changed.
func (s *Server) ReportBotHeartbeat(
	ctx context.Context, req *HeartbeatRequest) (*HeartbeatResult, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyEntityName
	}

	status, err := models.ParseEntityStatus(req.Status)
	if err != nil {
		return nil, err
	}

	unlock := s.entityLocks.lock("bot:" + req.Name)
	defer unlock()

	now := time.Now()

	bot, err := s.store.GetBotByName(ctx, req.Name)

	var previous models.EntityStatus

	switch {
	case err == nil:
		previous = bot.Status

		if err := s.store.UpdateBotStatus(ctx, bot.ID, status, now); err != nil {
			return nil, fmt.Errorf("failed to update bot status: %w", err)
		}

		bot.Status = status
		bot.LastHeartbeat = now
	case isNotFound(err):
		bot = &models.Bot{
			Name:          req.Name,
			Status:        status,
			LastHeartbeat: now,
			MainFile:      req.Name + ".js",
			CreatedAt:     now,
		}

		if err := s.store.CreateBot(ctx, bot); err != nil {
			return nil, fmt.Errorf("failed to create bot: %w", err)
		}

		s.logger.Info().
			Str("bot_id", bot.ID).
			Str("bot_name", bot.Name).
			Str("status", string(status)).
			Msg("Bot registered on first heartbeat")
	default:
		return nil, fmt.Errorf("failed to look up bot: %w", err)
	}

	message := req.Message
	if message == "" {
		message = defaultHeartbeatMessage
	}

	if err := s.store.AppendStatusHistory(ctx, &models.StatusHistoryEntry{
		EntityID:  bot.ID,
		Status:    status,
		Message:   message,
		Source:    req.Source,
		Timestamp: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to append status history: %w", err)
	}

	// Every heartbeat goes out live, transitioned or not.
	s.hub.Broadcast(models.EventBotStatusUpdate, models.StatusUpdateEvent{
		EntityID:  bot.ID,
		Name:      bot.Name,
		Status:    status,
		Source:    req.Source,
		Timestamp: now,
	})

	result := &HeartbeatResult{
		EntityID: bot.ID,
		To:       status,
	}

	if previous != "" && previous != status {
		result.Transitioned = true
		result.From = previous

		s.dispatchTransition(ctx, bot.ID, bot.Name, previous, status, now)
	}

	return result, nil
}

// ReportNodeHeartbeat ingests one fleet-node liveness report. A node
// heartbeat always reports online; resource gauges and the running bot set
// are recorded verbatim.
func (s *Server) ReportNodeHeartbeat(
	ctx context.Context, req *NodeHeartbeatRequest) (*HeartbeatResult, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyEntityName
	}

	unlock := s.entityLocks.lock("node:" + req.Name)
	defer unlock()

	now := time.Now()

	var previous models.EntityStatus

	existing, err := s.store.GetNodeByName(ctx, req.Name)

	switch {
	case err == nil:
		previous = existing.Status
	case isNotFound(err):
	default:
		return nil, fmt.Errorf("failed to look up fleet node: %w", err)
	}

	node := &models.FleetNode{
		Name:          req.Name,
		Address:       req.Address,
		Status:        models.StatusOnline,
		LastHeartbeat: now,
		CPUUsage:      req.CPUUsage,
		MemoryUsage:   req.MemoryUsage,
		DiskUsage:     req.DiskUsage,
		RunningBots:   req.RunningBots,
	}

	if err := s.store.UpsertNode(ctx, node); err != nil {
		return nil, fmt.Errorf("failed to upsert fleet node: %w", err)
	}

	if err := s.store.AppendStatusHistory(ctx, &models.StatusHistoryEntry{
		EntityID:  node.ID,
		Status:    models.StatusOnline,
		Message:   defaultHeartbeatMessage,
		Source:    req.Source,
		Timestamp: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to append status history: %w", err)
	}

	s.hub.Broadcast(models.EventNodeStatus, models.StatusUpdateEvent{
		EntityID:  node.ID,
		Name:      node.Name,
		Status:    models.StatusOnline,
		Source:    req.Source,
		Timestamp: now,
	})

	result := &HeartbeatResult{
		EntityID: node.ID,
		To:       models.StatusOnline,
	}

	if previous != "" && previous != models.StatusOnline {
		result.Transitioned = true
		result.From = previous

		s.logger.Info().
			Str("node_id", node.ID).
			Str("node_name", node.Name).
			Str("from", string(previous)).
			Msg("Fleet node recovered")
	}

	return result, nil
}

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

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// getBots lists the bots the caller's token can view.
func (s *APIServer) getBots(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	resolution, err := s.authService.ResolveToken(ctx, bearerToken(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	viewable := make(map[string]bool, len(resolution.Grants))

	for _, grant := range resolution.Grants {
		if grant.CanView {
			viewable[grant.BotID] = true
		}
	}

	bots, err := s.engine.Store().ListBots(ctx)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	visible := make([]models.Bot, 0, len(bots))

	for _, bot := range bots {
		if viewable[bot.ID] {
			visible = append(visible, bot)
		}
	}

	_ = s.encodeJSONResponse(w, visible)
}

// getBot returns one bot with its recent status history.
func (s *APIServer) getBot(w http.ResponseWriter, r *http.Request) {
	botID := pathVar(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	if _, err := s.authService.Authorize(ctx, bearerToken(r), botID, models.CapabilityView); err != nil {
		s.writeServiceError(w, err)
		return
	}

	bot, err := s.engine.Store().GetBot(ctx, botID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	history, err := s.engine.Store().GetStatusHistory(ctx, botID, s.engine.HistoryLimit())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	files, err := s.engine.ListBotFiles(ctx, botID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, BotDetail{Bot: *bot, History: history, Files: files})
}

// controlBot relays a start, stop, or restart intent to the bot's node. The
// restart action requires its own capability; start and stop share one.
func (s *APIServer) controlBot(w http.ResponseWriter, r *http.Request) {
	botID := pathVar(r, "id")

	var req ControlRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	action, err := models.ParseControlAction(req.Action)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	required := models.CapabilityStartStop
	if action == models.ActionRestart {
		required = models.CapabilityRestart
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	profile, err := s.authService.Authorize(ctx, bearerToken(r), botID, required)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if err := s.engine.ControlBot(ctx, botID, action, profile.Name); err != nil {
		s.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}

// getBotFiles returns the bot's current file set.
func (s *APIServer) getBotFiles(w http.ResponseWriter, r *http.Request) {
	botID := pathVar(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	if _, err := s.authService.Authorize(ctx, bearerToken(r), botID, models.CapabilityView); err != nil {
		s.writeServiceError(w, err)
		return
	}

	files, err := s.engine.ListBotFiles(ctx, botID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, files)
}

// replaceBotFiles swaps the bot's entire file set.
func (s *APIServer) replaceBotFiles(w http.ResponseWriter, r *http.Request) {
	botID := pathVar(r, "id")

	var req FilesRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	if _, err := s.authService.Authorize(ctx, bearerToken(r), botID, models.CapabilityEdit); err != nil {
		s.writeServiceError(w, err)
		return
	}

	files, err := s.engine.ReplaceBotFiles(ctx, botID, req.Files)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, files)
}

// getSystemStatus summarizes bots, nodes, and realtime subscribers.
func (s *APIServer) getSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	bots, err := s.engine.Store().ListBots(ctx)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	nodes, err := s.engine.Store().ListNodes(ctx)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	status := models.SystemStatus{
		TotalBots:  len(bots),
		TotalNodes: len(nodes),
	}

	for _, bot := range bots {
		if bot.Status == models.StatusOnline {
			status.OnlineBots++
		}
	}

	for _, node := range nodes {
		if node.Status == models.StatusOnline {
			status.OnlineNodes++
		}
	}

	if s.hub != nil {
		status.Subscribers = s.hub.Count()
	}

	status.LastUpdated = time.Now()

	_ = s.encodeJSONResponse(w, status)
}

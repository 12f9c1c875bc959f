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
	"net/http"

	"github.com/fleetpulse/fleetpulse/pkg/core"
)

// handleBotPing ingests one bot heartbeat. An unknown bot name registers the
// bot on first contact.
func (s *APIServer) handleBotPing(w http.ResponseWriter, r *http.Request) {
	var req PingRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	result, err := s.engine.ReportBotHeartbeat(ctx, &core.HeartbeatRequest{
		Name:    req.Name,
		Status:  req.Status,
		Message: req.Message,
		Source:  req.Source,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, result)
}

// handleNodeHeartbeat ingests one fleet node heartbeat with its resource
// gauges.
func (s *APIServer) handleNodeHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req NodeHeartbeatRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	source := req.Source
	if source == "" {
		source = defaultNodeSource
	}

	result, err := s.engine.ReportNodeHeartbeat(ctx, &core.NodeHeartbeatRequest{
		Name:        req.Name,
		Address:     req.Address,
		CPUUsage:    req.CPUUsage,
		MemoryUsage: req.MemoryUsage,
		DiskUsage:   req.DiskUsage,
		RunningBots: req.RunningBots,
		Source:      source,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, result)
}

// getNodes lists every fleet node.
func (s *APIServer) getNodes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	nodes, err := s.engine.Store().ListNodes(ctx)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, nodes)
}

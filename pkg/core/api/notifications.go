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
	"strconv"
)

const defaultNotificationLimit = 50

// getNotifications lists the caller's notifications, newest first.
func (s *APIServer) getNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	resolution, err := s.authService.ResolveToken(ctx, bearerToken(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	limit := defaultNotificationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}

		limit = parsed
	}

	notifications, err := s.engine.Store().ListNotifications(ctx, resolution.Profile.ID, limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, notifications)
}

// markNotificationRead acknowledges one of the caller's notifications. A
// notification belonging to another profile reads as not found.
func (s *APIServer) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	notificationID := pathVar(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	resolution, err := s.authService.ResolveToken(ctx, bearerToken(r))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if err := s.engine.Store().MarkNotificationRead(ctx, notificationID, resolution.Profile.ID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, map[string]string{"status": "ok"})
}

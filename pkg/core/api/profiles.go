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
	"errors"
	"net/http"

	"github.com/fleetpulse/fleetpulse/pkg/core/auth"
	"github.com/fleetpulse/fleetpulse/pkg/db"
)

// createProfile mints a new tenant profile. The response is the only place
// the access token ever appears.
func (s *APIServer) createProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	resp, err := s.authService.CreateProfile(ctx, auth.CreateProfileRequest{
		Name:                 req.Name,
		Description:          req.Description,
		NotificationsEnabled: req.NotificationsEnabled,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	// The profile exists at this point, so grant failures cannot unwind it.
	// They are logged and the profile is still returned with its token.
	for _, grant := range req.Grants {
		if err := s.authService.GrantPermissions(
			ctx, resp.ProfileID, grant.BotID, grant.Capabilities); err != nil {
			s.logger.Warn().
				Err(err).
				Str("profile_id", resp.ProfileID).
				Str("bot_id", grant.BotID).
				Msg("Failed to apply initial grant")
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"profile_id":   resp.ProfileID,
		"access_token": resp.AccessToken,
	})
}

// grantPermissions sets a profile's capabilities on one bot, replacing any
// existing grant for the pair.
func (s *APIServer) grantPermissions(w http.ResponseWriter, r *http.Request) {
	profileID := pathVar(r, "id")

	var req GrantRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	if err := s.authService.GrantPermissions(ctx, profileID, req.BotID, req.Capabilities); err != nil {
		s.writeServiceError(w, err)
		return
	}

	_ = s.encodeJSONResponse(w, map[string]string{"status": "ok"})
}

// verifyKey resolves an access token to its profile and grants. An invalid
// token yields a well-formed negative response rather than an error.
func (s *APIServer) verifyKey(w http.ResponseWriter, r *http.Request) {
	var req VerifyKeyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), defaultTimeout)
	defer cancel()

	resolution, err := s.authService.ResolveToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			_ = s.encodeJSONResponse(w, VerifyKeyResponse{Valid: false})
			return
		}

		s.writeServiceError(w, err)

		return
	}

	bots := make([]BotAccess, 0, len(resolution.Grants))

	for _, grant := range resolution.Grants {
		bot, err := s.engine.Store().GetBot(ctx, grant.BotID)
		if err != nil {
			// A bot removed administratively leaves its grants behind;
			// the stale grant is simply not reported.
			if errors.Is(err, db.ErrBotNotFound) {
				continue
			}

			s.writeServiceError(w, err)

			return
		}

		bots = append(bots, BotAccess{
			BotID:        bot.ID,
			Name:         bot.Name,
			Status:       bot.Status,
			Capabilities: grant.Capabilities,
		})
	}

	_ = s.encodeJSONResponse(w, VerifyKeyResponse{
		Valid:   true,
		Profile: &resolution.Profile,
		Grants:  resolution.Grants,
		Bots:    bots,
	})
}

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

//go:generate mockgen -destination=mock_auth.go -package=auth github.com/fleetpulse/fleetpulse/pkg/core/auth AuthService

package auth

import (
	"context"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// CreateProfileRequest carries the inputs for minting a new tenant profile.
type CreateProfileRequest struct {
	Name                 string
	Description          string
	NotificationsEnabled bool
}

// CreateProfileResponse returns the profile id and the access token. The
// token is returned here exactly once and is not otherwise recoverable.
type CreateProfileResponse struct {
	ProfileID   string
	AccessToken string
}

// Resolution is the result of resolving an access token: the owning profile
// and every grant it holds.
type Resolution struct {
	Profile models.Profile
	Grants  []models.PermissionGrant
}

// AuthService is the single authorization entry point for the engine. Every
// operation acting on a bot on behalf of a profile resolves the token and
// checks the required capability bit through it.
type AuthService interface {
	CreateProfile(ctx context.Context, req CreateProfileRequest) (*CreateProfileResponse, error)
	GrantPermissions(ctx context.Context, profileID, botID string, capabilities models.Capabilities) error
	ResolveToken(ctx context.Context, token string) (*Resolution, error)
	// Authorize resolves the token and requires the named capability on the
	// bot. A missing grant or a false bit fails with ErrForbidden.
	Authorize(ctx context.Context, token, botID string, capability models.Capability) (*models.Profile, error)
}

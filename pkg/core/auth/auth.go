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

// Package auth implements the capability-token permission model: opaque
// tokens bound to tenant profiles, with per-bot boolean capability grants
// and deny-by-default checks.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

const (
	tokenBytes = 32

	// Collisions on 256 random bits are negligible; the retry bound exists
	// so a broken store cannot spin the mint loop forever.
	maxMintAttempts = 5
)

// Auth implements AuthService against the entity store.
type Auth struct {
	store  db.Service
	logger logger.Logger
}

// NewAuth creates the access control service.
func NewAuth(store db.Service, log logger.Logger) *Auth {
	return &Auth{
		store:  store,
		logger: log,
	}
}

func mintToken() (string, error) {
	buf := make([]byte, tokenBytes)

	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenMintFailed, err)
	}

	return hex.EncodeToString(buf), nil
}

// CreateProfile mints a token and persists the profile. A token uniqueness
// violation regenerates and retries instead of surfacing to the caller.
func (a *Auth) CreateProfile(
	ctx context.Context, req CreateProfileRequest) (*CreateProfileResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyProfileName
	}

	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		token, err := mintToken()
		if err != nil {
			return nil, err
		}

		profile := &models.Profile{
			Name:                 req.Name,
			Description:          req.Description,
			AccessToken:          token,
			NotificationsEnabled: req.NotificationsEnabled,
			CreatedAt:            time.Now(),
		}

		err = a.store.CreateProfile(ctx, profile)
		if err == nil {
			a.logger.Info().
				Str("profile_id", profile.ID).
				Str("profile_name", profile.Name).
				Msg("Profile created")

			return &CreateProfileResponse{
				ProfileID:   profile.ID,
				AccessToken: token,
			}, nil
		}

		if !errors.Is(err, db.ErrTokenExists) {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}

		a.logger.Warn().
			Int("attempt", attempt+1).
			Msg("Access token collision, regenerating")
	}

	return nil, ErrTokenMintFailed
}

// GrantPermissions upserts the grant for a (profile, bot) pair, replacing any
// prior grant wholesale.
func (a *Auth) GrantPermissions(
	ctx context.Context, profileID, botID string, capabilities models.Capabilities) error {
	if _, err := a.store.GetProfile(ctx, profileID); err != nil {
		return err
	}

	if _, err := a.store.GetBot(ctx, botID); err != nil {
		return err
	}

	grant := &models.PermissionGrant{
		ProfileID:    profileID,
		BotID:        botID,
		Capabilities: capabilities,
	}

	if err := a.store.UpsertPermissionGrant(ctx, grant); err != nil {
		return fmt.Errorf("failed to store permission grant: %w", err)
	}

	return nil
}

// ResolveToken maps a token to its profile and grants. An unknown token is a
// hard failure, never a default profile.
func (a *Auth) ResolveToken(ctx context.Context, token string) (*Resolution, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	profile, err := a.store.GetProfileByToken(ctx, token)
	if err != nil {
		if errors.Is(err, db.ErrProfileNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	grants, err := a.store.ListGrantsForProfile(ctx, profile.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}

	return &Resolution{
		Profile: *profile,
		Grants:  grants,
	}, nil
}

// Authorize resolves the token and requires one capability bit on one bot.
// A missing grant is the zero capability set: all false.
func (a *Auth) Authorize(
	ctx context.Context, token, botID string, capability models.Capability) (*models.Profile, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	profile, err := a.store.GetProfileByToken(ctx, token)
	if err != nil {
		if errors.Is(err, db.ErrProfileNotFound) {
			return nil, ErrInvalidToken
		}

		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	grant, err := a.store.GetPermissionGrant(ctx, profile.ID, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permission grant: %w", err)
	}

	var capabilities models.Capabilities
	if grant != nil {
		capabilities = grant.Capabilities
	}

	if !capabilities.Has(capability) {
		return nil, fmt.Errorf("%w: profile %q lacks %s on bot %s",
			ErrForbidden, profile.Name, capability, botID)
	}

	return profile, nil
}

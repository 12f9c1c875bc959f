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
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fleetpulse/fleetpulse/pkg/core"
	"github.com/fleetpulse/fleetpulse/pkg/core/auth"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second

	// History source tag for node heartbeats that arrive without one.
	defaultNodeSource = "node-agent"
)

// APIServer is the HTTP and websocket front end for the fleet state engine.
type APIServer struct {
	router      *mux.Router
	httpServer  *http.Server
	corsConfig  models.CORSConfig
	apiKey      string
	engine      *core.Server
	authService auth.AuthService
	hub         *hub.Hub
	logger      logger.Logger
}

// PingRequest is the body of a bot heartbeat.
type PingRequest struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Source  string `json:"source,omitempty"`
}

// NodeHeartbeatRequest is the body of a fleet node heartbeat.
type NodeHeartbeatRequest struct {
	Name        string   `json:"name"`
	Address     string   `json:"address,omitempty"`
	CPUUsage    float64  `json:"cpu_usage"`
	MemoryUsage float64  `json:"memory_usage"`
	DiskUsage   float64  `json:"disk_usage"`
	RunningBots []string `json:"running_bots,omitempty"`
	Source      string   `json:"source,omitempty"`
}

// ControlRequest is the body of a bot control command.
type ControlRequest struct {
	Action string `json:"action"`
}

// FilesRequest is the body of a bot file replacement.
type FilesRequest struct {
	Files []core.FileInput `json:"files"`
}

// CreateProfileRequest is the body for minting a new profile. Initial
// grants are applied best-effort after the profile exists.
type CreateProfileRequest struct {
	Name                 string         `json:"name"`
	Description          string         `json:"description,omitempty"`
	NotificationsEnabled bool           `json:"notifications_enabled"`
	Grants               []GrantRequest `json:"grants,omitempty"`
}

// GrantRequest is the body for granting capabilities on a bot.
type GrantRequest struct {
	BotID        string              `json:"bot_id"`
	Capabilities models.Capabilities `json:"capabilities"`
}

// VerifyKeyRequest is the body for verifying an access token.
type VerifyKeyRequest struct {
	Token string `json:"token"`
}

// VerifyKeyResponse describes the profile a token resolves to, without ever
// echoing the token back.
type VerifyKeyResponse struct {
	Valid   bool                     `json:"valid"`
	Profile *models.Profile          `json:"profile,omitempty"`
	Grants  []models.PermissionGrant `json:"grants,omitempty"`
	Bots    []BotAccess              `json:"bots,omitempty"`
}

// BotAccess pairs a bot summary with the capability bits the verified
// profile holds over it, so clients can build their views from the
// verify-key response alone.
type BotAccess struct {
	BotID  string              `json:"bot_id"`
	Name   string              `json:"name"`
	Status models.EntityStatus `json:"status"`
	models.Capabilities
}

// BotDetail is a bot plus its recent status history and current file set.
type BotDetail struct {
	Bot     models.Bot                  `json:"bot"`
	History []models.StatusHistoryEntry `json:"history"`
	Files   []models.BotFile            `json:"files"`
}

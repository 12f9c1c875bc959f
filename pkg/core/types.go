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

// Package core implements the fleet state engine: heartbeat ingestion, the
// liveness state machine with time-based demotion, control intent recording,
// content-addressed file versioning, and notification dispatch.
package core

import (
	"context"
	"sync"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

const (
	defaultBotStaleThreshold  = 2 * time.Minute
	defaultNodeStaleThreshold = 1 * time.Minute
	defaultSweepInterval      = 30 * time.Second
	defaultHistoryLimit       = 100

	defaultHeartbeatMessage = "Heartbeat received"

	// Source tag written on sweep-driven demotions.
	sourceSystemSweep = "system-sweep"
)

// TransitionPublisher publishes liveness transitions to an external event
// stream. Implementations must not block the pipeline; failures are logged
// and dropped.
type TransitionPublisher interface {
	PublishTransition(ctx context.Context, event models.TransitionEvent) error
}

// Server is the fleet state engine. It owns the entity store, the realtime
// hub, and the sweep scheduler.
type Server struct {
	store  db.Service
	hub    *hub.Hub
	events TransitionPublisher
	logger logger.Logger

	botStaleThreshold  time.Duration
	nodeStaleThreshold time.Duration
	sweepInterval      time.Duration
	historyLimit       int

	// scopedBroadcast restricts notification events to subscribers whose
	// token belongs to an entitled profile. Off by default: subscribers
	// hear all notification events.
	scopedBroadcast bool

	// entityLocks serializes status writes per entity. The sweep and
	// heartbeat paths for one entity exclude each other; unrelated
	// entities proceed in parallel.
	entityLocks keyedMutex

	// fileLocks serializes file set replacement per bot.
	fileLocks keyedMutex

	ShutdownChan chan struct{}
}

// HeartbeatRequest is one liveness report from a bot.
type HeartbeatRequest struct {
	Name    string
	Status  string
	Message string
	Source  string
}

// NodeHeartbeatRequest is one liveness report from a fleet node. Gauges are
// recorded verbatim, not interpreted.
type NodeHeartbeatRequest struct {
	Name        string
	Address     string
	CPUUsage    float64
	MemoryUsage float64
	DiskUsage   float64
	RunningBots []string
	Source      string
}

// HeartbeatResult describes what a heartbeat did: the entity it touched and
// whether the status transitioned.
type HeartbeatResult struct {
	EntityID     string              `json:"entity_id"`
	Transitioned bool                `json:"transitioned"`
	From         models.EntityStatus `json:"from,omitempty"`
	To           models.EntityStatus `json:"to"`
}

// FileInput is one file submitted for a bot file-set replacement.
type FileInput struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// keyedMutex provides one mutex per string key.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	value, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()

	return mu.Unlock
}

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
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// Option configures the Server.
type Option func(*Server)

// WithTransitionPublisher attaches an external event stream publisher.
func WithTransitionPublisher(publisher TransitionPublisher) Option {
	return func(s *Server) {
		s.events = publisher
	}
}

// NewServer wires the engine from its collaborators and configuration.
func NewServer(
	store db.Service, broadcastHub *hub.Hub, cfg *models.CoreServiceConfig,
	log logger.Logger, options ...Option) *Server {
	s := &Server{
		store:              store,
		hub:                broadcastHub,
		logger:             log,
		botStaleThreshold:  defaultBotStaleThreshold,
		nodeStaleThreshold: defaultNodeStaleThreshold,
		sweepInterval:      defaultSweepInterval,
		historyLimit:       defaultHistoryLimit,
		ShutdownChan:       make(chan struct{}),
	}

	if cfg != nil {
		if d := time.Duration(cfg.BotStaleThreshold); d > 0 {
			s.botStaleThreshold = d
		}

		if d := time.Duration(cfg.NodeStaleThreshold); d > 0 {
			s.nodeStaleThreshold = d
		}

		if d := time.Duration(cfg.SweepInterval); d > 0 {
			s.sweepInterval = d
		}

		if cfg.HistoryLimit > 0 {
			s.historyLimit = cfg.HistoryLimit
		}

		s.scopedBroadcast = cfg.ScopedBroadcast
	}

	for _, o := range options {
		o(s)
	}

	return s
}

// Store exposes the entity store for read-side consumers (the API server).
func (s *Server) Store() db.Service {
	return s.store
}

// Hub exposes the realtime hub.
func (s *Server) Hub() *hub.Hub {
	return s.hub
}

// HistoryLimit is the default bound for history reads.
func (s *Server) HistoryLimit() int {
	return s.historyLimit
}

// Stop signals the sweep scheduler to exit.
func (s *Server) Stop() {
	select {
	case <-s.ShutdownChan:
	default:
		close(s.ShutdownChan)
	}
}

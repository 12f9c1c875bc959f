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

// Package app boots the core service.
package app

import (
	"context"

	"github.com/nats-io/nats.go"

	"github.com/fleetpulse/fleetpulse/pkg/config"
	"github.com/fleetpulse/fleetpulse/pkg/core"
	"github.com/fleetpulse/fleetpulse/pkg/core/api"
	"github.com/fleetpulse/fleetpulse/pkg/core/auth"
	"github.com/fleetpulse/fleetpulse/pkg/db"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/lifecycle"
	"github.com/fleetpulse/fleetpulse/pkg/models"
	"github.com/fleetpulse/fleetpulse/pkg/natsutil"
)

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
}

// service adapts the core engine plus API server to the lifecycle runner.
type service struct {
	engine    *core.Server
	apiServer *api.APIServer
	store     db.Service
	natsConn  *nats.Conn
	listen    string
	sweepStop context.CancelFunc
}

func (s *service) Start(ctx context.Context) error {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.sweepStop = cancel

	go s.engine.MonitorEntities(sweepCtx)

	return s.apiServer.Start(s.listen)
}

func (s *service) Stop(ctx context.Context) error {
	if s.sweepStop != nil {
		s.sweepStop()
	}

	s.engine.Stop()
	s.engine.Hub().Shutdown()

	err := s.apiServer.Shutdown(ctx)

	if s.natsConn != nil {
		s.natsConn.Close()
	}

	if closeErr := s.store.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}

// Run boots the core service using the provided options.
func Run(ctx context.Context, opts Options) error {
	var cfg models.CoreServiceConfig

	bootstrapLogger, err := lifecycle.CreateComponentLogger("core-config", nil)
	if err != nil {
		return err
	}

	if err := config.NewConfig(bootstrapLogger).LoadAndValidate(ctx, opts.ConfigPath, &cfg); err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger("core", cfg.Logging)
	if err != nil {
		return err
	}

	var store db.Service

	if cfg.Database != nil && cfg.Database.Host != "" {
		pg, err := db.NewPostgres(ctx, cfg.Database, mainLogger)
		if err != nil {
			return err
		}

		store = pg
	} else {
		mainLogger.Warn().Msg("No database configured, using in-memory store")

		store = db.NewMemoryStore()
	}

	broadcastHub := hub.NewHub(mainLogger)

	var engineOptions []core.Option

	var natsConn *nats.Conn

	if cfg.NATS != nil && cfg.NATS.Enabled {
		publisher, nc, err := natsutil.ConnectWithEventPublisher(ctx, cfg.NATS, mainLogger)
		if err != nil {
			return err
		}

		natsConn = nc

		engineOptions = append(engineOptions, core.WithTransitionPublisher(publisher))
	}

	engine := core.NewServer(store, broadcastHub, &cfg, mainLogger, engineOptions...)
	authService := auth.NewAuth(store, mainLogger)

	apiServer := api.NewAPIServer(cfg.CORS,
		api.WithEngine(engine),
		api.WithAuthService(authService),
		api.WithHub(broadcastHub),
		api.WithAPIKey(cfg.APIKey),
		api.WithLogger(mainLogger),
	)

	mainLogger.Info().
		Str("listen_addr", cfg.ListenAddr).
		Msg("Starting fleet state engine")

	return lifecycle.RunServer(ctx, &lifecycle.Options{
		Service: &service{
			engine:    engine,
			apiServer: apiServer,
			store:     store,
			natsConn:  natsConn,
			listen:    cfg.ListenAddr,
		},
		Logger: mainLogger,
	})
}

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

// Package api provides the HTTP API server for the fleet state engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/fleetpulse/fleetpulse/pkg/core"
	"github.com/fleetpulse/fleetpulse/pkg/core/auth"
	"github.com/fleetpulse/fleetpulse/pkg/db"
	fpHttp "github.com/fleetpulse/fleetpulse/pkg/http"
	"github.com/fleetpulse/fleetpulse/pkg/hub"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

// NewAPIServer creates a new API server instance with the given configuration.
func NewAPIServer(config models.CORSConfig, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:     mux.NewRouter(),
		corsConfig: config,
	}

	for _, o := range options {
		o(s)
	}

	if s.logger == nil {
		s.logger = logger.NewTestLogger()
	}

	s.setupRoutes()

	return s
}

// WithEngine wires the fleet state engine into the API server.
func WithEngine(engine *core.Server) func(server *APIServer) {
	return func(server *APIServer) {
		server.engine = engine
	}
}

// WithAuthService adds an authorization service to the API server.
func WithAuthService(a auth.AuthService) func(server *APIServer) {
	return func(server *APIServer) {
		server.authService = a
	}
}

// WithHub adds the realtime subscriber hub to the API server.
func WithHub(h *hub.Hub) func(server *APIServer) {
	return func(server *APIServer) {
		server.hub = h
	}
}

// WithAPIKey sets the shared service key required on ingest and admin routes.
func WithAPIKey(key string) func(server *APIServer) {
	return func(server *APIServer) {
		server.apiKey = key
	}
}

// WithLogger adds a logger to the API server.
func WithLogger(log logger.Logger) func(server *APIServer) {
	return func(server *APIServer) {
		server.logger = log
	}
}

func (s *APIServer) setupRoutes() {
	s.router.Use(fpHttp.CommonMiddleware(s.corsConfig, s.logger))

	// Ingest and admin routes authenticate with the shared service key.
	keyed := s.router.PathPrefix("/api").Subrouter()
	keyed.Use(fpHttp.APIKeyMiddleware(s.apiKey, s.logger))

	keyed.HandleFunc("/bot/ping", s.handleBotPing).Methods(http.MethodPost)
	keyed.HandleFunc("/raspberry/heartbeat", s.handleNodeHeartbeat).Methods(http.MethodPost)
	keyed.HandleFunc("/nodes", s.getNodes).Methods(http.MethodGet)
	keyed.HandleFunc("/status", s.getSystemStatus).Methods(http.MethodGet)
	keyed.HandleFunc("/profiles", s.createProfile).Methods(http.MethodPost)
	keyed.HandleFunc("/profiles/{id}/permissions", s.grantPermissions).Methods(http.MethodPost)

	// Scoped routes authenticate per request with a capability token.
	s.router.HandleFunc("/api/auth/verify-key", s.verifyKey).Methods(http.MethodPost)
	s.router.HandleFunc("/api/bots", s.getBots).Methods(http.MethodGet)
	s.router.HandleFunc("/api/bot/{id}", s.getBot).Methods(http.MethodGet)
	s.router.HandleFunc("/api/bot/{id}/control", s.controlBot).Methods(http.MethodPost)
	s.router.HandleFunc("/api/bot/{id}/files", s.getBotFiles).Methods(http.MethodGet)
	s.router.HandleFunc("/api/bot/{id}/files", s.replaceBotFiles).Methods(http.MethodPost)
	s.router.HandleFunc("/api/notifications", s.getNotifications).Methods(http.MethodGet)
	s.router.HandleFunc("/api/notifications/{id}/read", s.markNotificationRead).Methods(http.MethodPost)

	s.router.HandleFunc("/api/ws", s.handleWebSocket)
}

// Start begins serving HTTP requests on addr and blocks.
func (s *APIServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *APIServer) Router() http.Handler {
	return s.router
}

// bearerToken extracts the capability token from the Authorization header or
// the access_token query parameter.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return r.URL.Query().Get("access_token")
}

func (s *APIServer) encodeJSONResponse(w http.ResponseWriter, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Error encoding JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return err
	}

	return nil
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errResponse := models.ErrorResponse{
		Message: message,
		Status:  statusCode,
	}

	if err := json.NewEncoder(w).Encode(errResponse); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

// writeServiceError maps engine and store errors onto HTTP status codes.
func (s *APIServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrBotNotFound),
		errors.Is(err, db.ErrNodeNotFound),
		errors.Is(err, db.ErrProfileNotFound),
		errors.Is(err, db.ErrNotificationNotFound):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, "Invalid access token", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, models.ErrInvalidStatus),
		errors.Is(err, models.ErrInvalidAction),
		errors.Is(err, core.ErrEmptyEntityName),
		errors.Is(err, core.ErrEmptyFileSet),
		errors.Is(err, core.ErrEmptySource),
		errors.Is(err, auth.ErrEmptyProfileName),
		errors.Is(err, db.ErrBotNameExists):
		writeError(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error().Err(err).Msg("Internal API error")
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}

	return true
}

func pathVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

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

package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetpulse/fleetpulse/pkg/logger"
)

// Duration wraps time.Duration to accept "2m"-style strings in JSON config.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return ErrInvalidDuration
	}
}

// Database holds Postgres connection settings for the entity store. An empty
// Host selects the in-memory store.
type Database struct {
	Host            string `json:"host"`
	Port            uint16 `json:"port"`
	Database        string `json:"database"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	SSLMode         string `json:"ssl_mode"`
	ApplicationName string `json:"application_name"`
	MaxConnections  int32  `json:"max_connections"`
	MinConnections  int32  `json:"min_connections"`
}

// NATSConfig holds the optional JetStream event publishing settings.
type NATSConfig struct {
	URL     string `json:"url"`
	Stream  string `json:"stream"`
	Enabled bool   `json:"enabled"`
}

// CORSConfig controls the API server's cross-origin policy.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// CoreServiceConfig is the top-level configuration for the core service.
type CoreServiceConfig struct {
	ListenAddr         string         `json:"listen_addr"`
	APIKey             string         `json:"api_key"`
	BotStaleThreshold  Duration       `json:"bot_stale_threshold"`
	NodeStaleThreshold Duration       `json:"node_stale_threshold"`
	SweepInterval      Duration       `json:"sweep_interval"`
	HistoryLimit       int            `json:"history_limit"`
	ScopedBroadcast    bool           `json:"scoped_broadcast"`
	Database           *Database      `json:"database,omitempty"`
	NATS               *NATSConfig    `json:"nats,omitempty"`
	CORS               CORSConfig     `json:"cors"`
	Logging            *logger.Config `json:"logging,omitempty"`
}

// Validate checks the core service configuration after loading.
func (c *CoreServiceConfig) Validate() error {
	if c.ListenAddr == "" {
		return ErrListenAddrRequired
	}

	return nil
}

// NodeAgentConfig configures the fleet-node heartbeat agent.
type NodeAgentConfig struct {
	CoreURL           string         `json:"core_url"`
	APIKey            string         `json:"api_key"`
	NodeName          string         `json:"node_name"`
	Address           string         `json:"address"`
	HeartbeatInterval Duration       `json:"heartbeat_interval"`
	DiskPath          string         `json:"disk_path"`
	Logging           *logger.Config `json:"logging,omitempty"`
}

// Validate checks the node agent configuration after loading.
func (c *NodeAgentConfig) Validate() error {
	if c.CoreURL == "" {
		return ErrCoreURLRequired
	}

	if c.NodeName == "" {
		return ErrNodeNameRequired
	}

	return nil
}

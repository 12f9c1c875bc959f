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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fleetpulse/fleetpulse/pkg/models"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "core.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{
		"listen_addr": ":8090",
		"bot_stale_threshold": "2m",
		"node_stale_threshold": "1m"
	}`)

	var cfg models.CoreServiceConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	require.Equal(t, ":8090", cfg.ListenAddr)
	require.Equal(t, 2*time.Minute, time.Duration(cfg.BotStaleThreshold))
	require.Equal(t, time.Minute, time.Duration(cfg.NodeStaleThreshold))
}

func TestLoadAndValidateFailsValidation(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{}`)

	var cfg models.CoreServiceConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, models.ErrListenAddrRequired)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	var cfg models.CoreServiceConfig
	err := NewConfig(nil).LoadAndValidate(
		context.Background(), filepath.Join(t.TempDir(), "absent.json"), &cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to read file")
}

func TestLoadMalformedJSON(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `{"listen_addr": `)

	var cfg models.CoreServiceConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to unmarshal JSON")
}

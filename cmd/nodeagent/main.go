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

// The nodeagent binary runs on each fleet node and reports liveness plus
// resource gauges to the core service.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/fleetpulse/fleetpulse/pkg/config"
	"github.com/fleetpulse/fleetpulse/pkg/lifecycle"
	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultDiskPath          = "/"
	requestTimeout           = 10 * time.Second
)

type heartbeatPayload struct {
	Name        string  `json:"name"`
	Address     string  `json:"address,omitempty"`
	CPUUsage    float64 `json:"cpu_usage"`
	MemoryUsage float64 `json:"memory_usage"`
	DiskUsage   float64 `json:"disk_usage"`
	Source      string  `json:"source"`
}

type agent struct {
	cfg    *models.NodeAgentConfig
	client *http.Client
	logger logger.Logger
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/fleetpulse/nodeagent.json", "Path to node agent config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg models.NodeAgentConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger("nodeagent", cfg.Logging)
	if err != nil {
		return err
	}

	a := &agent{
		cfg:    &cfg,
		client: &http.Client{Timeout: requestTimeout},
		logger: mainLogger,
	}

	interval := time.Duration(cfg.HeartbeatInterval)
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	mainLogger.Info().
		Str("core_url", cfg.CoreURL).
		Str("node_name", cfg.NodeName).
		Dur("interval", interval).
		Msg("Starting node agent")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.report(ctx)

	for {
		select {
		case <-ctx.Done():
			mainLogger.Info().Msg("Node agent shutting down")
			return nil
		case <-ticker.C:
			a.report(ctx)
		}
	}
}

// report samples resource gauges and posts one heartbeat. Sampling errors
// degrade to zero gauges rather than skipping the heartbeat: liveness
// matters more than metrics.
func (a *agent) report(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	payload := heartbeatPayload{
		Name:    a.cfg.NodeName,
		Address: a.cfg.Address,
		Source:  "node-agent",
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		a.logger.Warn().Err(err).Msg("CPU sampling failed")
	} else if len(percents) > 0 {
		payload.CPUUsage = percents[0]
	}

	if vmStats, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Memory sampling failed")
	} else {
		payload.MemoryUsage = vmStats.UsedPercent
	}

	diskPath := a.cfg.DiskPath
	if diskPath == "" {
		diskPath = defaultDiskPath
	}

	if usage, err := disk.UsageWithContext(ctx, diskPath); err != nil {
		a.logger.Warn().Err(err).Msg("Disk sampling failed")
	} else {
		payload.DiskUsage = usage.UsedPercent
	}

	if err := a.send(ctx, &payload); err != nil {
		a.logger.Error().Err(err).Msg("Heartbeat failed")
		return
	}

	a.logger.Debug().
		Float64("cpu", payload.CPUUsage).
		Float64("memory", payload.MemoryUsage).
		Float64("disk", payload.DiskUsage).
		Msg("Heartbeat sent")
}

func (a *agent) send(ctx context.Context, payload *heartbeatPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.CoreURL+"/api/raspberry/heartbeat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build heartbeat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if a.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send heartbeat: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat rejected: %s", resp.Status)
	}

	return nil
}

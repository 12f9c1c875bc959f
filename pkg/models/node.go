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

import "time"

// FleetNode is an edge host that executes bots and reports its own heartbeat
// with resource gauges. Node liveness is observed independently of the bots
// running on it.
type FleetNode struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Address       string       `json:"address"`
	Status        EntityStatus `json:"status"`
	LastHeartbeat time.Time    `json:"last_heartbeat"`
	CPUUsage      float64      `json:"cpu_usage"`
	MemoryUsage   float64      `json:"memory_usage"`
	DiskUsage     float64      `json:"disk_usage"`
	RunningBots   []string     `json:"running_bots"`
}

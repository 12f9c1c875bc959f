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

// ErrorResponse is the JSON body returned for API errors.
type ErrorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// SystemStatus summarizes the engine for the status endpoint.
type SystemStatus struct {
	TotalBots    int       `json:"total_bots"`
	OnlineBots   int       `json:"online_bots"`
	TotalNodes   int       `json:"total_nodes"`
	OnlineNodes  int       `json:"online_nodes"`
	Subscribers  int       `json:"subscribers"`
	LastUpdated  time.Time `json:"last_updated"`
}

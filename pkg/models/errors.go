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

import "errors"

var (
	ErrInvalidStatus   = errors.New("invalid entity status")
	ErrInvalidAction   = errors.New("invalid control action")
	ErrInvalidDuration = errors.New("invalid duration")

	ErrListenAddrRequired = errors.New("listen_addr is required")
	ErrCoreURLRequired    = errors.New("core_url is required")
	ErrNodeNameRequired   = errors.New("node_name is required")
)

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

// Package natsutil publishes liveness transitions to NATS JetStream as
// CloudEvents for external consumers.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fleetpulse/fleetpulse/pkg/logger"
	"github.com/fleetpulse/fleetpulse/pkg/models"
)

const (
	eventSource         = "fleetpulse/core"
	transitionEventType = "io.fleetpulse.bot.transition"
	transitionSubject   = "events.bot.transition"
)

// EventPublisher publishes CloudEvents to a JetStream stream.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
	logger logger.Logger
}

// NewEventPublisher wraps an existing JetStream context.
func NewEventPublisher(js jetstream.JetStream, streamName string, log logger.Logger) *EventPublisher {
	return &EventPublisher{
		js:     js,
		stream: streamName,
		logger: log,
	}
}

// PublishTransition publishes one liveness transition as a CloudEvent.
func (p *EventPublisher) PublishTransition(ctx context.Context, event models.TransitionEvent) error {
	ce := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            transitionEventType,
		DataContentType: "application/json",
		Subject:         transitionSubject,
		Time:            &event.Timestamp,
		Data:            event,
	}

	payload, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("failed to marshal transition event: %w", err)
	}

	ack, err := p.js.Publish(ctx, ce.Subject, payload)
	if err != nil {
		return fmt.Errorf("failed to publish transition event: %w", err)
	}

	p.logger.Debug().
		Str("event_id", ce.ID).
		Str("subject", ce.Subject).
		Uint64("sequence", ack.Sequence).
		Msg("Published transition event")

	return nil
}

// ConnectWithEventPublisher connects to NATS, ensures the stream exists, and
// returns a publisher plus the connection for the caller to close.
func ConnectWithEventPublisher(ctx context.Context, cfg *models.NATSConfig, log logger.Logger) (*EventPublisher, *nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("fleetpulse-core"),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err = js.Stream(ctx, cfg.Stream); err != nil {
		_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: []string{"events.bot.*"},
		})
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("failed to create or get stream %s: %w", cfg.Stream, err)
		}

		log.Info().Str("stream", cfg.Stream).Msg("Created JetStream stream")
	}

	return NewEventPublisher(js, cfg.Stream, log), nc, nil
}

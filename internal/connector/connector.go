// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package connector

import (
	"context"
	"log/slog"
	"time"

	"github.com/streambridge/sns-connector/internal/endpoint"
	"github.com/streambridge/sns-connector/internal/logging"
	"github.com/streambridge/sns-connector/internal/publish"
	"github.com/streambridge/sns-connector/internal/stream"
	"github.com/streambridge/sns-connector/pkg/config"
	"github.com/streambridge/sns-connector/pkg/core"
	"github.com/streambridge/sns-connector/pkg/topics"
)

// Connector is one configured channel, incoming or outgoing.
type Connector interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Incoming bridges webhook deliveries for one topic into a pull-based
// stream: endpoint -> handoff queue -> pull adapter.
type Incoming struct {
	name     string
	endpoint *endpoint.Endpoint
	source   *stream.Source
	queue    *core.HandoffQueue
	gate     *core.ReadinessGate
	cancel   context.CancelFunc
	logger   *slog.Logger
}

func NewIncoming(cfg config.ChannelConfig, client topics.Client, logger *slog.Logger, traffic *logging.TrafficLogger) *Incoming {
	gate := core.NewReadinessGate()
	queue := core.NewHandoffQueue(cfg.QueueSize)

	ep := endpoint.New(endpoint.Options{
		Name:           cfg.Name,
		Topic:          cfg.TopicName(),
		AppHost:        cfg.AppHost,
		Port:           cfg.ListenPort(),
		Path:           cfg.Path(),
		EnqueueTimeout: cfg.Timeout(),
	}, client, queue, gate, logger.With("component", "endpoint"), traffic)

	src := stream.NewSource(queue, gate, cfg.Broadcast, cfg.Buffer(), logger.With("component", "stream"))

	return &Incoming{
		name:     cfg.Name,
		endpoint: ep,
		source:   src,
		queue:    queue,
		gate:     gate,
		logger:   logger,
	}
}

func (c *Incoming) Name() string { return c.name }

// Subscribe attaches a downstream consumer to the incoming stream.
func (c *Incoming) Subscribe() (*stream.Subscription, error) {
	return c.source.Subscribe()
}

// Err reports the stream's terminal error after shutdown; a handshake
// failure surfaces here.
func (c *Incoming) Err() error { return c.source.Err() }

// Addr returns the endpoint's bound listen address once started.
func (c *Incoming) Addr() string { return c.endpoint.Addr() }

func (c *Incoming) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		if err := c.endpoint.Start(runCtx); err != nil {
			c.logger.Error("endpoint failed", "connector", c.name, "error", err)
		}
	}()
	go func() {
		c.source.Run(runCtx)
	}()
	return nil
}

// Stop runs the shutdown sequence: stop accepting callbacks, close the
// queue so the pull adapter observes end-of-sequence, then release the
// dequeue goroutine.
func (c *Incoming) Stop(ctx context.Context) error {
	err := c.endpoint.Stop(ctx)
	c.queue.Close()
	// An unresolved gate leaves the pull adapter parked waiting for a
	// confirmation that will never arrive; release it as a clean
	// end-of-sequence. No-op once the handshake resolved.
	c.gate.Resolve(core.ErrQueueClosed)

	select {
	case <-c.source.Done():
	case <-ctx.Done():
		c.logger.Warn("pull adapter did not drain before deadline", "connector", c.name)
	}

	if c.cancel != nil {
		c.cancel()
	}
	return err
}

// Outgoing publishes stream elements to one topic through the publish
// pipeline.
type Outgoing struct {
	name     string
	pipeline *publish.Pipeline
	cancel   context.CancelFunc
	done     chan struct{}
	err      error
	logger   *slog.Logger
}

func NewOutgoing(cfg config.ChannelConfig, client topics.Client, logger *slog.Logger, traffic *logging.TrafficLogger) *Outgoing {
	return &Outgoing{
		name:     cfg.Name,
		pipeline: publish.New(client, cfg.TopicName(), cfg.InFlight(), logger.With("component", "publish"), traffic),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

func (c *Outgoing) Name() string { return c.name }

// Input feeds the pipeline. Closing it stops the connector cleanly.
func (c *Outgoing) Input() chan<- core.OutboundMessage { return c.pipeline.Input() }

// Output carries acked messages through; the caller may drain or ignore it.
func (c *Outgoing) Output() <-chan core.OutboundMessage { return c.pipeline.Output() }

// Err reports the pipeline's terminal error after it stops.
func (c *Outgoing) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Outgoing) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	go func() {
		defer close(c.done)
		c.err = c.pipeline.Run(runCtx)
		if c.err != nil {
			c.logger.Error("outgoing pipeline terminated", "connector", c.name, "error", c.err)
		}
	}()
	return nil
}

func (c *Outgoing) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	select {
	case <-c.done:
	case <-ctx.Done():
		c.logger.Warn("pipeline did not stop before deadline", "connector", c.name)
	}
	return nil
}

// StopTimeout bounds how long StopAll waits per connector.
const StopTimeout = 10 * time.Second

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

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/streambridge/sns-connector/internal/connector"
	"github.com/streambridge/sns-connector/internal/logging"
	"github.com/streambridge/sns-connector/pkg/config"
	"github.com/streambridge/sns-connector/pkg/topics"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "/etc/sns-connector/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	traffic := logging.NewTrafficLogger(logger.With("component", "traffic"))
	registry := connector.NewRegistry(logger)

	var mock *topics.MemoryClient
	for _, ch := range cfg.Channels {
		client, err := buildClient(ctx, ch, &mock, logger)
		if err != nil {
			logger.Error("failed to build topic client", "channel", ch.Name, "error", err)
			os.Exit(1)
		}
		switch ch.Direction {
		case "incoming":
			registry.Register(connector.NewIncoming(ch, client, logger.With("connector", ch.Name), traffic))
		case "outgoing":
			out := connector.NewOutgoing(ch, client, logger.With("connector", ch.Name), traffic)
			go drainOutput(ctx, out)
			registry.Register(out)
		}
	}

	registry.StartAll(ctx)
	logger.Info("sns connector started", "config", configPath, "channels", len(cfg.Channels))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down sns connector")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), connector.StopTimeout)
	defer shutdownCancel()

	registry.StopAll(shutdownCtx)
	if mock != nil {
		mock.Close()
	}

	logger.Info("sns connector stopped")
}

func buildClient(ctx context.Context, ch config.ChannelConfig, mock **topics.MemoryClient, logger *slog.Logger) (topics.Client, error) {
	if ch.Mock() {
		if *mock == nil {
			*mock = topics.NewMemoryClient(logger.With("component", "mock-sns"))
		}
		return *mock, nil
	}
	return topics.NewSNSClient(ctx, ch.SNSURL, logger.With("component", "sns"))
}

// drainOutput consumes acked pass-through messages the server itself has
// no further use for.
func drainOutput(ctx context.Context, out *connector.Outgoing) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-out.Output():
			if !ok {
				return
			}
		}
	}
}

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
	"sync"
)

// Registry holds the configured connectors and drives their lifecycle.
type Registry struct {
	connectors map[string]Connector
	logger     *slog.Logger
	mu         sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		connectors: make(map[string]Connector),
		logger:     logger,
	}
}

func (r *Registry) Register(c Connector) {
	r.mu.Lock()
	r.connectors[c.Name()] = c
	r.mu.Unlock()
	r.logger.Info("registered connector", "name", c.Name())
}

func (r *Registry) Get(name string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connectors[name]
	return c, ok
}

func (r *Registry) StartAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, c := range r.connectors {
		if err := c.Start(ctx); err != nil {
			r.logger.Error("connector start failed", "name", name, "error", err)
		}
	}
}

func (r *Registry) StopAll(ctx context.Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, c := range r.connectors {
		r.logger.Info("stopping connector", "name", name)
		if err := c.Stop(ctx); err != nil {
			r.logger.Warn("connector stop error", "name", name, "error", err)
		}
	}
}

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

package core

import (
	"context"
	"sync"
)

// ReadinessGate is a write-once, read-many signal. The endpoint resolves it
// exactly once, with nil after a confirmed subscription handshake or with the
// handshake error. Readers never block past the first resolution.
type ReadinessGate struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewReadinessGate() *ReadinessGate {
	return &ReadinessGate{done: make(chan struct{})}
}

// Resolve fires the gate. Calls after the first are no-ops.
func (g *ReadinessGate) Resolve(err error) {
	g.once.Do(func() {
		g.err = err
		close(g.done)
	})
}

// Done is closed once the gate has resolved, either way.
func (g *ReadinessGate) Done() <-chan struct{} { return g.done }

// Err returns the resolution error. Valid only after Done is closed;
// before resolution it reports nil.
func (g *ReadinessGate) Err() error {
	select {
	case <-g.done:
		return g.err
	default:
		return nil
	}
}

// Wait blocks until the gate resolves or ctx is cancelled.
func (g *ReadinessGate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return g.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

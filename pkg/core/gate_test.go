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
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGateResolvesOnce(t *testing.T) {
	g := NewReadinessGate()

	if g.Err() != nil {
		t.Fatalf("unresolved gate should report nil, got %v", g.Err())
	}

	first := errors.New("handshake broken")
	g.Resolve(first)
	g.Resolve(nil)
	g.Resolve(errors.New("other"))

	select {
	case <-g.Done():
	default:
		t.Fatal("gate should be resolved")
	}
	if !errors.Is(g.Err(), first) {
		t.Fatalf("expected first resolution to win, got %v", g.Err())
	}
}

func TestGateManyReaders(t *testing.T) {
	g := NewReadinessGate()

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = g.Wait(context.Background())
		}(i)
	}

	g.Resolve(nil)
	wg.Wait()

	for i, err := range results {
		if err != nil {
			t.Fatalf("reader %d got %v, want nil", i, err)
		}
	}
}

func TestGateWaitCancelled(t *testing.T) {
	g := NewReadinessGate()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := g.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

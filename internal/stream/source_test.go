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

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streambridge/sns-connector/pkg/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func put(t *testing.T, q *core.HandoffQueue, payloads ...string) {
	t.Helper()
	for i, p := range payloads {
		msg := core.InboundMessage{ID: fmt.Sprintf("m-%d", i), Payload: p}
		if err := q.Put(context.Background(), msg, time.Second); err != nil {
			t.Fatalf("put %s: %v", p, err)
		}
	}
}

func TestSingleSubscriberFIFO(t *testing.T) {
	queue := core.NewHandoffQueue(16)
	gate := core.NewReadinessGate()
	src := NewSource(queue, gate, false, 0, discardLogger())

	sub, err := src.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	gate.Resolve(nil)
	go src.Run(context.Background())

	put(t, queue, "0", "1", "2", "3", "4")

	for i := 0; i < 5; i++ {
		select {
		case msg := <-sub.C:
			if want := fmt.Sprintf("%d", i); msg.Payload != want {
				t.Fatalf("order broken: got %s at %d", msg.Payload, i)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for element %d", i)
		}
	}

	queue.Close()
	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatal("expected end of sequence after close")
		}
	case <-time.After(time.Second):
		t.Fatal("sequence did not terminate")
	}
	if src.Err() != nil {
		t.Fatalf("clean shutdown must not be an error, got %v", src.Err())
	}
}

func TestNoDequeueBeforeGate(t *testing.T) {
	queue := core.NewHandoffQueue(16)
	gate := core.NewReadinessGate()
	src := NewSource(queue, gate, false, 0, discardLogger())

	sub, _ := src.Subscribe()
	go src.Run(context.Background())

	put(t, queue, "early-1", "early-2")

	time.Sleep(50 * time.Millisecond)
	if queue.Len() != 2 {
		t.Fatalf("dequeued before gate resolved: %d left in queue", queue.Len())
	}

	gate.Resolve(nil)
	select {
	case msg := <-sub.C:
		if msg.Payload != "early-1" {
			t.Fatalf("expected early-1 first, got %s", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no element after gate resolved")
	}
}

func TestGateFailureTerminatesWithError(t *testing.T) {
	queue := core.NewHandoffQueue(16)
	gate := core.NewReadinessGate()
	src := NewSource(queue, gate, false, 0, discardLogger())

	sub, _ := src.Subscribe()
	put(t, queue, "never-delivered")

	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(context.Background()) }()

	handshakeErr := fmt.Errorf("%w: confirm call returned 500", core.ErrHandshakeFailed)
	gate.Resolve(handshakeErr)

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatal("failed gate must not emit elements")
		}
	case <-time.After(time.Second):
		t.Fatal("sequence did not terminate")
	}

	if err := <-errCh; !errors.Is(err, core.ErrHandshakeFailed) {
		t.Fatalf("expected handshake error, got %v", err)
	}
	if !errors.Is(src.Err(), core.ErrHandshakeFailed) {
		t.Fatalf("Err should surface the handshake error, got %v", src.Err())
	}
	if queue.Len() != 1 {
		t.Fatal("failed gate must never dequeue")
	}
}

func TestGateClosedQueueEndsSequenceCleanly(t *testing.T) {
	queue := core.NewHandoffQueue(16)
	gate := core.NewReadinessGate()
	src := NewSource(queue, gate, false, 0, discardLogger())

	sub, _ := src.Subscribe()

	errCh := make(chan error, 1)
	go func() { errCh <- src.Run(context.Background()) }()

	// Shutdown before the handshake ever resolved.
	queue.Close()
	gate.Resolve(core.ErrQueueClosed)

	select {
	case _, ok := <-sub.C:
		if ok {
			t.Fatal("no elements expected before confirmation")
		}
	case <-time.After(time.Second):
		t.Fatal("sequence did not terminate")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("shutdown before confirmation is clean termination, got %v", err)
	}
	if src.Err() != nil {
		t.Fatalf("Err should be nil on clean termination, got %v", src.Err())
	}
}

func TestSingleModeRejectsSecondSubscriber(t *testing.T) {
	src := NewSource(core.NewHandoffQueue(4), core.NewReadinessGate(), false, 0, discardLogger())

	if _, err := src.Subscribe(); err != nil {
		t.Fatalf("first subscribe: %v", err)
	}
	if _, err := src.Subscribe(); !errors.Is(err, ErrSingleSubscriber) {
		t.Fatalf("expected ErrSingleSubscriber, got %v", err)
	}
}

func TestBroadcastDeliversToAll(t *testing.T) {
	queue := core.NewHandoffQueue(16)
	gate := core.NewReadinessGate()
	src := NewSource(queue, gate, true, 8, discardLogger())

	sub1, _ := src.Subscribe()
	sub2, _ := src.Subscribe()

	gate.Resolve(nil)
	go src.Run(context.Background())

	put(t, queue, "a", "b", "c")

	for _, sub := range []*Subscription{sub1, sub2} {
		for _, want := range []string{"a", "b", "c"} {
			select {
			case msg := <-sub.C:
				if msg.Payload != want {
					t.Fatalf("expected %s, got %s", want, msg.Payload)
				}
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for %s", want)
			}
		}
	}
}

func TestBroadcastNoReplayForLateSubscriber(t *testing.T) {
	queue := core.NewHandoffQueue(16)
	gate := core.NewReadinessGate()
	src := NewSource(queue, gate, true, 8, discardLogger())

	early, _ := src.Subscribe()
	gate.Resolve(nil)
	go src.Run(context.Background())

	put(t, queue, "e1")
	select {
	case msg := <-early.C:
		if msg.Payload != "e1" {
			t.Fatalf("expected e1, got %s", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("early subscriber missed e1")
	}

	late, _ := src.Subscribe()
	put(t, queue, "e2")

	select {
	case msg := <-late.C:
		if msg.Payload != "e2" {
			t.Fatalf("late subscriber must start at e2, got %s", msg.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("late subscriber missed e2")
	}
}

func TestBroadcastDropsOldestForSlowSubscriber(t *testing.T) {
	queue := core.NewHandoffQueue(16)
	gate := core.NewReadinessGate()
	src := NewSource(queue, gate, true, 2, discardLogger())

	slow, _ := src.Subscribe()
	fast, _ := src.Subscribe()

	gate.Resolve(nil)
	done := make(chan struct{})
	go func() {
		src.Run(context.Background())
		close(done)
	}()

	// The fast subscriber drains in lockstep with the enqueues, so its
	// buffer never overflows; the slow one never reads. Receiving element
	// k from the fast subscriber proves dispatch of k completed for both
	// before element k+1 is enqueued.
	for _, p := range []string{"1", "2", "3", "4", "5"} {
		put(t, queue, p)
		select {
		case msg := <-fast.C:
			if msg.Payload != p {
				t.Fatalf("fast subscriber expected %s, got %s", p, msg.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("fast subscriber missed %s", p)
		}
	}

	queue.Close()
	<-done

	if _, ok := <-fast.C; ok {
		t.Fatal("fast subscriber should see end of sequence")
	}

	var got []string
	for msg := range slow.C {
		got = append(got, msg.Payload)
	}
	if len(got) != 2 {
		t.Fatalf("slow subscriber buffer should hold 2 newest, got %v", got)
	}
	if got[0] != "4" || got[1] != "5" {
		t.Fatalf("expected newest elements [4 5], got %v", got)
	}
}

func TestSubscribeAfterTermination(t *testing.T) {
	queue := core.NewHandoffQueue(4)
	gate := core.NewReadinessGate()
	src := NewSource(queue, gate, true, 4, discardLogger())

	gate.Resolve(nil)
	done := make(chan struct{})
	go func() {
		src.Run(context.Background())
		close(done)
	}()

	queue.Close()
	<-done

	sub, err := src.Subscribe()
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("subscription on a terminated source must be an ended sequence")
	}
}

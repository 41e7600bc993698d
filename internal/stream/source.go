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
	"log/slog"
	"sync"

	"github.com/streambridge/sns-connector/pkg/core"
)

var ErrSingleSubscriber = errors.New("source already has a subscriber")

// Source converts the handoff queue into a demand-driven sequence of
// inbound messages. The dequeue loop runs on its own goroutine and begins
// only after the readiness gate resolves; a gate failure terminates the
// sequence with that error before any dequeue. A Source is bound to one
// endpoint/gate pair and is not restartable.
type Source struct {
	queue     *core.HandoffQueue
	gate      *core.ReadinessGate
	broadcast bool
	buffer    int
	logger    *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64

	done     chan struct{}
	finished bool
	err      error
}

// Subscription is one downstream consumer. C is closed on termination
// (shutdown or gate failure); Source.Err distinguishes the two.
type Subscription struct {
	C <-chan core.InboundMessage

	id     uint64
	ch     chan core.InboundMessage
	closed chan struct{}
	once   sync.Once
	src    *Source
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.closed)
		s.src.remove(s.id)
	})
}

func NewSource(queue *core.HandoffQueue, gate *core.ReadinessGate, broadcast bool, buffer int, logger *slog.Logger) *Source {
	if buffer <= 0 {
		buffer = core.DefaultQueueSize
	}
	return &Source{
		queue:     queue,
		gate:      gate,
		broadcast: broadcast,
		buffer:    buffer,
		logger:    logger,
		subs:      make(map[uint64]*Subscription),
		done:      make(chan struct{}),
	}
}

// Subscribe attaches a downstream consumer. In single-subscriber mode only
// one attachment is permitted and delivery blocks on the consumer's pace;
// in broadcast mode every attached subscriber receives each element emitted
// after it attached, buffered per subscriber with drop-oldest overflow.
func (s *Source) Subscribe() (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.broadcast && len(s.subs) > 0 {
		return nil, ErrSingleSubscriber
	}

	buffer := 0
	if s.broadcast {
		buffer = s.buffer
	}
	s.nextID++
	sub := &Subscription{
		id:     s.nextID,
		ch:     make(chan core.InboundMessage, buffer),
		closed: make(chan struct{}),
		src:    s,
	}
	sub.C = sub.ch

	if s.finished {
		// Already terminated: hand back an ended sequence.
		close(sub.ch)
	} else {
		s.subs[sub.id] = sub
	}
	return sub, nil
}

// Run executes the dequeue loop until shutdown. It returns the gate error
// when the handshake failed, nil on clean termination.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.done)

	if err := s.gate.Wait(ctx); err != nil {
		// A gate resolved with ErrQueueClosed is shutdown before the
		// handshake ever confirmed: end of sequence, not a failure.
		if ctx.Err() != nil || errors.Is(err, core.ErrQueueClosed) {
			s.finish(nil)
			return nil
		}
		s.finish(err)
		return err
	}

	s.logger.Info("pull adapter started", "broadcast", s.broadcast)

	for {
		msg, ok := s.queue.Get(ctx)
		if !ok {
			s.finish(nil)
			return nil
		}
		s.dispatch(ctx, msg)
	}
}

// Done is closed once the dequeue loop has terminated.
func (s *Source) Done() <-chan struct{} { return s.done }

// Err reports the terminal error. Valid after Done is closed.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Source) dispatch(ctx context.Context, msg core.InboundMessage) {
	if s.broadcast {
		s.fanOut(msg)
		return
	}

	s.mu.Lock()
	var sub *Subscription
	for _, v := range s.subs {
		sub = v
	}
	s.mu.Unlock()
	if sub == nil {
		return
	}

	// Backpressure: block at the lone consumer's pace.
	select {
	case sub.ch <- msg:
	case <-sub.closed:
	case <-ctx.Done():
	}
}

// fanOut delivers to every attached subscriber without blocking the dequeue
// loop: when a subscriber's buffer is full, its oldest element is dropped.
func (s *Source) fanOut(msg core.InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub.ch <- msg:
			continue
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

func (s *Source) remove(id uint64) {
	s.mu.Lock()
	delete(s.subs, id)
	s.mu.Unlock()
}

func (s *Source) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
	s.err = err
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
	if err != nil {
		s.logger.Error("pull adapter terminated", "error", err)
	}
}

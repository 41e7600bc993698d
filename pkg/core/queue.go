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
	"fmt"
	"sync"
	"time"
)

const DefaultQueueSize = 16

// HandoffQueue is the bounded FIFO channel between the notification endpoint
// (producer, HTTP handler goroutines) and the pull adapter (single consumer).
// Producers block when the queue is full, bounded by a timeout; closing the
// queue wakes blocked producers with ErrQueueClosed and lets the consumer
// observe end-of-sequence.
type HandoffQueue struct {
	ch   chan InboundMessage
	done chan struct{}
	once sync.Once
}

func NewHandoffQueue(capacity int) *HandoffQueue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &HandoffQueue{
		ch:   make(chan InboundMessage, capacity),
		done: make(chan struct{}),
	}
}

// Put enqueues msg, blocking up to timeout when the queue is full.
func (q *HandoffQueue) Put(ctx context.Context, msg InboundMessage, timeout time.Duration) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.ch <- msg:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: no space after %s", ErrEnqueueTimeout, timeout)
	}
}

// Get dequeues one message, blocking until data arrives, the queue closes,
// or ctx is cancelled. ok is false on end-of-sequence.
func (q *HandoffQueue) Get(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	case <-q.done:
		// Drain what was enqueued before the close.
		select {
		case msg := <-q.ch:
			return msg, true
		default:
			return InboundMessage{}, false
		}
	case <-ctx.Done():
		return InboundMessage{}, false
	}
}

// Close is idempotent.
func (q *HandoffQueue) Close() {
	q.once.Do(func() { close(q.done) })
}

func (q *HandoffQueue) Len() int { return len(q.ch) }

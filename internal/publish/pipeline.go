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

package publish

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streambridge/sns-connector/internal/logging"
	"github.com/streambridge/sns-connector/pkg/core"
	"github.com/streambridge/sns-connector/pkg/topics"
)

// Pipeline delivers outbound messages to the configured topic, creating it
// on first use. Acked messages pass through to Output. The first failed
// create or publish nacks that message and terminates the pipeline;
// messages behind it are never attempted.
type Pipeline struct {
	client      topics.Client
	topic       string
	maxInFlight int
	grace       time.Duration

	in    chan core.OutboundMessage
	out   chan core.OutboundMessage
	cache sync.Map // topic name -> *topicEntry

	logger  *slog.Logger
	traffic *logging.TrafficLogger
}

// topicEntry memoizes one topic resolution. Racing messages for the same
// name share the winner's create call; the cache is never invalidated
// within a pipeline instance.
type topicEntry struct {
	once      sync.Once
	arn       string
	err       error
	createdAt time.Time
}

func New(client topics.Client, topic string, maxInFlight int, logger *slog.Logger, traffic *logging.TrafficLogger) *Pipeline {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Pipeline{
		client:      client,
		topic:       topic,
		maxInFlight: maxInFlight,
		grace:       5 * time.Second,
		in:          make(chan core.OutboundMessage),
		out:         make(chan core.OutboundMessage, maxInFlight),
		logger:      logger,
		traffic:     traffic,
	}
}

// Input is where upstream producers feed messages. Closing it shuts the
// pipeline down cleanly.
func (p *Pipeline) Input() chan<- core.OutboundMessage { return p.in }

// Output carries each successfully published message, after its ack. The
// consumer must drain it.
func (p *Pipeline) Output() <-chan core.OutboundMessage { return p.out }

// Run consumes Input until it closes, ctx is cancelled, or a publish
// fails. It returns the terminal *core.PublishError, or nil on clean
// shutdown. In-flight publishes get a bounded grace period on termination;
// those that do not complete are nacked by their own goroutines when the
// context dies.
func (p *Pipeline) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, p.maxInFlight)
	failure := make(chan error, 1)
	var wg sync.WaitGroup

loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case err := <-failure:
			cancel()
			p.await(&wg)
			return err
		case msg, ok := <-p.in:
			if !ok {
				break loop
			}
			select {
			case sem <- struct{}{}:
				// A slot freed by a failed publish means the failure is
				// already recorded; do not attempt this message.
				select {
				case err := <-failure:
					<-sem
					p.nack(msg, err)
					cancel()
					p.await(&wg)
					return err
				default:
				}
			case <-runCtx.Done():
				p.nack(msg, runCtx.Err())
				break loop
			case err := <-failure:
				p.nack(msg, err)
				cancel()
				p.await(&wg)
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				p.send(runCtx, msg, failure)
			}()
		}
	}

	terminal := p.drain(&wg, failure)
	if terminal != nil {
		cancel()
	}
	return terminal
}

func (p *Pipeline) send(ctx context.Context, msg core.OutboundMessage, failure chan<- error) {
	arn, err := p.resolve(ctx, p.topic)
	if err != nil {
		p.fail(msg, err, failure)
		return
	}

	receipt, err := p.client.Publish(ctx, arn, msg.Payload)
	if err != nil {
		p.fail(msg, err, failure)
		return
	}

	if msg.Ack != nil {
		msg.Ack()
	}
	if p.traffic != nil {
		p.traffic.Log("outgoing", p.topic, receipt, len(msg.Payload))
	}
	p.logger.Debug("message published", "topic", p.topic, "receipt_id", receipt)

	select {
	case p.out <- msg:
	case <-ctx.Done():
	}
}

// resolve returns the cached topic handle, issuing at most one create call
// per topic name for the lifetime of the pipeline.
func (p *Pipeline) resolve(ctx context.Context, name string) (string, error) {
	v, _ := p.cache.LoadOrStore(name, &topicEntry{})
	entry := v.(*topicEntry)
	entry.once.Do(func() {
		entry.createdAt = time.Now().UTC()
		entry.arn, entry.err = p.client.CreateTopic(ctx, name)
	})
	return entry.arn, entry.err
}

func (p *Pipeline) fail(msg core.OutboundMessage, err error, failure chan<- error) {
	perr := &core.PublishError{Topic: p.topic, MessageID: msg.ID, Err: err}
	p.nack(msg, perr)
	p.logger.Error("publish failed", "topic", p.topic, "message_id", msg.ID, "error", err)
	select {
	case failure <- perr:
	default:
	}
}

func (p *Pipeline) nack(msg core.OutboundMessage, err error) {
	if msg.Nack != nil {
		msg.Nack(err)
	}
}

// drain waits for in-flight publishes, bounded by the grace period, and
// surfaces a failure that raced with shutdown.
func (p *Pipeline) drain(wg *sync.WaitGroup, failure <-chan error) error {
	p.await(wg)
	select {
	case err := <-failure:
		return err
	default:
		return nil
	}
}

func (p *Pipeline) await(wg *sync.WaitGroup) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.grace):
		p.logger.Warn("shutdown grace period elapsed with publishes in flight", "topic", p.topic)
	}
}

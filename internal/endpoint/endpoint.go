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

package endpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/streambridge/sns-connector/internal/logging"
	"github.com/streambridge/sns-connector/pkg/core"
	"github.com/streambridge/sns-connector/pkg/topics"
)

// Endpoint accepts webhook callbacks from the topic service, performs the
// one-time subscription handshake, and places validated notification
// payloads on the handoff queue. The readiness gate is resolved exactly
// once, on Confirmed or Failed.
type Endpoint struct {
	name           string
	topic          string
	appHost        string
	port           int
	path           string
	enqueueTimeout time.Duration

	client  topics.Client
	queue   *core.HandoffQueue
	gate    *core.ReadinessGate
	state   atomic.Int32
	server  *http.Server
	httpc   *http.Client
	addr    atomic.Value // string, set once listening
	maxBody int64

	logger  *slog.Logger
	traffic *logging.TrafficLogger
}

type Options struct {
	Name           string
	Topic          string
	AppHost        string
	Port           int
	Path           string
	EnqueueTimeout time.Duration
}

func New(opts Options, client topics.Client, queue *core.HandoffQueue, gate *core.ReadinessGate,
	logger *slog.Logger, traffic *logging.TrafficLogger) *Endpoint {
	path := opts.Path
	if path == "" {
		path = "/"
	}
	host := opts.AppHost
	if host == "" {
		host = "127.0.0.1"
	}
	return &Endpoint{
		name:           opts.Name,
		topic:          opts.Topic,
		appHost:        host,
		port:           opts.Port,
		path:           path,
		enqueueTimeout: opts.EnqueueTimeout,
		client:         client,
		queue:          queue,
		gate:           gate,
		httpc:          &http.Client{Timeout: 10 * time.Second},
		maxBody:        1 << 20,
		logger:         logger,
		traffic:        traffic,
	}
}

func (e *Endpoint) Name() string { return e.name }

func (e *Endpoint) State() core.HandshakeState {
	return core.HandshakeState(e.state.Load())
}

// Addr returns the bound listen address once Start has opened the listener.
func (e *Endpoint) Addr() string {
	if v := e.addr.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// CallbackURL is the externally reachable webhook target handed to the
// topic service during registration.
func (e *Endpoint) CallbackURL() string {
	port := e.port
	if addr := e.Addr(); addr != "" {
		if _, p, err := net.SplitHostPort(addr); err == nil {
			if n, err := strconv.Atoi(p); err == nil {
				port = n
			}
		}
	}
	return fmt.Sprintf("http://%s:%d%s", e.appHost, port, e.path)
}

// Start binds the listener, issues the subscription request, and serves
// callbacks until ctx is cancelled or Stop is called. It blocks.
func (e *Endpoint) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", e.port))
	if err != nil {
		e.state.Store(int32(core.HandshakeFailed))
		e.gate.Resolve(fmt.Errorf("%w: listen: %v", core.ErrHandshakeFailed, err))
		return err
	}
	e.addr.Store(ln.Addr().String())

	mux := http.NewServeMux()
	mux.HandleFunc(e.path, e.handleCallback)
	mux.HandleFunc("/health", e.handleHealth)

	e.server = &http.Server{Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.server.Shutdown(shutdownCtx)
	}()

	e.state.Store(int32(core.HandshakeConfirmationPending))
	go e.register(ctx)

	e.logger.Info("notification endpoint starting",
		"name", e.name, "topic", e.topic, "addr", ln.Addr().String(), "path", e.path)

	if err := e.server.Serve(ln); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops accepting callbacks and releases the listener. In-flight
// enqueues drain within their own timeout.
func (e *Endpoint) Stop(ctx context.Context) error {
	e.httpc.CloseIdleConnections()
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

// register resolves the topic and requests the webhook subscription. The
// gate fires later, when the confirmation callback arrives; a registration
// failure fails it immediately.
func (e *Endpoint) register(ctx context.Context) {
	arn, err := e.client.CreateTopic(ctx, e.topic)
	if err != nil {
		e.failHandshake(fmt.Errorf("%w: create topic: %v", core.ErrHandshakeFailed, err))
		return
	}
	if _, err := e.client.Subscribe(ctx, arn, e.CallbackURL()); err != nil {
		e.failHandshake(fmt.Errorf("%w: subscribe: %v", core.ErrHandshakeFailed, err))
		return
	}
	e.logger.Info("subscription requested", "name", e.name, "topic", e.topic, "callback", e.CallbackURL())
}

func (e *Endpoint) failHandshake(err error) {
	e.state.Store(int32(core.HandshakeFailed))
	e.gate.Resolve(err)
	e.logger.Error("handshake failed", "name", e.name, "topic", e.topic, "error", err)
}

func (e *Endpoint) handleCallback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Liveness probe; also the confirm target synthesized in mock mode.
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, e.maxBody))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var cb topics.Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		e.logger.Warn("callback rejected", "name", e.name, "error", core.ErrMalformedCallback)
		http.Error(w, "malformed callback", http.StatusBadRequest)
		return
	}
	kind := cb.Type
	if kind == "" {
		kind = r.Header.Get(topics.MessageTypeHeader)
	}

	switch kind {
	case topics.CallbackSubscriptionConfirmation:
		e.handleConfirmation(r.Context(), w, cb)
	case topics.CallbackNotification:
		e.handleNotification(r.Context(), w, cb)
	case topics.CallbackUnsubscribeConfirmation:
		e.logger.Info("unsubscribe confirmation received", "name", e.name, "topic_arn", cb.TopicArn)
		w.WriteHeader(http.StatusOK)
	default:
		e.logger.Warn("callback rejected", "name", e.name, "kind", kind, "error", core.ErrMalformedCallback)
		http.Error(w, "unknown callback type", http.StatusBadRequest)
	}
}

func (e *Endpoint) handleConfirmation(ctx context.Context, w http.ResponseWriter, cb topics.Callback) {
	if cb.SubscribeURL == "" {
		http.Error(w, "missing SubscribeURL", http.StatusBadRequest)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cb.SubscribeURL, nil)
	if err != nil {
		e.failHandshake(fmt.Errorf("%w: %v", core.ErrHandshakeFailed, err))
		http.Error(w, "confirmation failed", http.StatusInternalServerError)
		return
	}
	resp, err := e.httpc.Do(req)
	if err != nil {
		e.failHandshake(fmt.Errorf("%w: confirm call: %v", core.ErrHandshakeFailed, err))
		http.Error(w, "confirmation failed", http.StatusInternalServerError)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		e.failHandshake(fmt.Errorf("%w: confirm call returned %d", core.ErrHandshakeFailed, resp.StatusCode))
		http.Error(w, "confirmation failed", http.StatusInternalServerError)
		return
	}

	e.state.Store(int32(core.HandshakeConfirmed))
	e.gate.Resolve(nil)
	e.logger.Info("subscription confirmed", "name", e.name, "topic", e.topic)
	w.WriteHeader(http.StatusOK)
}

func (e *Endpoint) handleNotification(ctx context.Context, w http.ResponseWriter, cb topics.Callback) {
	if cb.Message == nil {
		e.logger.Warn("notification without message field", "name", e.name)
		http.Error(w, "missing Message", http.StatusBadRequest)
		return
	}

	msg := core.InboundMessage{
		ID:      cb.MessageID,
		Payload: *cb.Message,
		Metadata: map[string]string{
			"sns_topic_arn": cb.TopicArn,
		},
		Timestamp: time.Now().UTC(),
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if cb.Subject != "" {
		msg.Metadata["sns_subject"] = cb.Subject
	}
	if cb.Timestamp != "" {
		msg.Metadata["sns_timestamp"] = cb.Timestamp
	}

	if err := e.queue.Put(ctx, msg, e.enqueueTimeout); err != nil {
		// Retryable: the topic service's own retry policy re-delivers.
		e.logger.Warn("enqueue failed", "name", e.name, "message_id", msg.ID, "error", err)
		http.Error(w, "enqueue failed, retry later", http.StatusServiceUnavailable)
		return
	}

	if e.traffic != nil {
		e.traffic.Log("incoming", e.topic, msg.ID, len(msg.Payload))
	}
	w.WriteHeader(http.StatusOK)
}

func (e *Endpoint) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"name":%q,"topic":%q,"handshake":%q,"queued":%d}`,
		e.name, e.topic, e.State().String(), e.queue.Len())
}

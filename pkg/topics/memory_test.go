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

package topics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEndpoint acts as the webhook target the mock delivers to.
type fakeEndpoint struct {
	mu        sync.Mutex
	callbacks []Callback
	srv       *httptest.Server
}

func newFakeEndpoint(t *testing.T) *fakeEndpoint {
	t.Helper()
	f := &fakeEndpoint{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusOK)
			return
		}
		var cb Callback
		if err := json.NewDecoder(r.Body).Decode(&cb); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeEndpoint) received(kind string) []Callback {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Callback
	for _, cb := range f.callbacks {
		if cb.Type == kind {
			out = append(out, cb)
		}
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCreateTopicIdempotent(t *testing.T) {
	c := NewMemoryClient(discardLogger())
	defer c.Close()
	ctx := context.Background()

	arn1, err := c.CreateTopic(ctx, "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	arn2, err := c.CreateTopic(ctx, "orders")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arn1 != arn2 {
		t.Fatalf("expected same handle, got %s and %s", arn1, arn2)
	}
}

func TestSubscribeSynthesizesHandshake(t *testing.T) {
	c := NewMemoryClient(discardLogger())
	defer c.Close()
	ctx := context.Background()
	ep := newFakeEndpoint(t)

	arn, _ := c.CreateTopic(ctx, "orders")
	if _, err := c.Subscribe(ctx, arn, ep.srv.URL); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	waitFor(t, func() bool { return len(ep.received(CallbackSubscriptionConfirmation)) == 1 })

	cb := ep.received(CallbackSubscriptionConfirmation)[0]
	if cb.TopicArn != arn {
		t.Fatalf("confirmation for wrong topic: %s", cb.TopicArn)
	}
	if cb.SubscribeURL == "" || cb.Token == "" {
		t.Fatalf("confirmation missing handshake fields: %+v", cb)
	}
}

func TestPublishDeliversToConfirmedSubscribers(t *testing.T) {
	c := NewMemoryClient(discardLogger())
	defer c.Close()
	ctx := context.Background()
	ep := newFakeEndpoint(t)

	arn, _ := c.CreateTopic(ctx, "orders")
	c.Subscribe(ctx, arn, ep.srv.URL)
	waitFor(t, func() bool { return c.Subscribers(arn) == 1 })

	id, err := c.Publish(ctx, arn, "42")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if id == "" {
		t.Fatal("expected a receipt id")
	}

	notes := ep.received(CallbackNotification)
	if len(notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notes))
	}
	if notes[0].Message == nil || *notes[0].Message != "42" {
		t.Fatalf("unexpected payload: %+v", notes[0].Message)
	}
}

func TestSubscribeUnknownTopic(t *testing.T) {
	c := NewMemoryClient(discardLogger())
	defer c.Close()

	if _, err := c.Subscribe(context.Background(), "arn:aws:sns:local:000000000000:ghost", "http://127.0.0.1:1"); err == nil {
		t.Fatal("expected error for unknown topic")
	}
}

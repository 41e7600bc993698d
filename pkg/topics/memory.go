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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryClient is the mock-mode topic service. Topics live in memory and
// the subscription handshake is synthesized: Subscribe delivers a
// SubscriptionConfirmation callback to the endpoint URL, with a
// SubscribeURL pointing back at the endpoint itself (a GET on the webhook
// path answers 200). The subscription is treated as confirmed once the
// endpoint acknowledges the synthesized callback.
type MemoryClient struct {
	mu     sync.Mutex
	topics map[string]string   // name -> arn
	subs   map[string][]string // arn -> confirmed endpoint URLs
	wg     sync.WaitGroup
	httpc  *http.Client
	logger *slog.Logger
}

func NewMemoryClient(logger *slog.Logger) *MemoryClient {
	return &MemoryClient{
		topics: make(map[string]string),
		subs:   make(map[string][]string),
		httpc:  &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

func (c *MemoryClient) CreateTopic(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if arn, ok := c.topics[name]; ok {
		return arn, nil
	}
	arn := "arn:aws:sns:local:000000000000:" + name
	c.topics[name] = arn
	c.logger.Info("mock topic created", "topic", name, "arn", arn)
	return arn, nil
}

func (c *MemoryClient) Subscribe(ctx context.Context, arn, endpointURL string) (string, error) {
	c.mu.Lock()
	_, known := c.topics[topicNameFromARN(arn)]
	c.mu.Unlock()
	if !known {
		return "", fmt.Errorf("unknown topic arn %s", arn)
	}

	subARN := arn + ":" + uuid.New().String()
	confirmation := Callback{
		Type:         CallbackSubscriptionConfirmation,
		MessageID:    uuid.New().String(),
		Token:        uuid.New().String(),
		TopicArn:     arn,
		SubscribeURL: endpointURL,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		status, err := c.deliver(endpointURL, confirmation)
		if err != nil || status != http.StatusOK {
			c.logger.Error("mock handshake delivery failed",
				"endpoint", endpointURL, "status", status, "error", err)
			return
		}
		c.mu.Lock()
		c.subs[arn] = append(c.subs[arn], endpointURL)
		c.mu.Unlock()
		c.logger.Info("mock subscription confirmed", "topic_arn", arn, "endpoint", endpointURL)
	}()

	return subARN, nil
}

func (c *MemoryClient) Publish(ctx context.Context, arn, payload string) (string, error) {
	c.mu.Lock()
	targets := append([]string(nil), c.subs[arn]...)
	c.mu.Unlock()

	messageID := uuid.New().String()
	notification := Callback{
		Type:      CallbackNotification,
		MessageID: messageID,
		TopicArn:  arn,
		Message:   &payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	for _, target := range targets {
		status, err := c.deliver(target, notification)
		if err != nil {
			return "", fmt.Errorf("deliver to %s: %w", target, err)
		}
		if status >= 300 {
			c.logger.Warn("mock delivery rejected", "endpoint", target, "status", status)
		}
	}
	return messageID, nil
}

// Subscribers reports how many confirmed subscriptions a topic has.
func (c *MemoryClient) Subscribers(arn string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs[arn])
}

// Close waits for in-flight handshake deliveries and releases idle
// connections.
func (c *MemoryClient) Close() {
	c.wg.Wait()
	c.httpc.CloseIdleConnections()
}

func (c *MemoryClient) deliver(url string, cb Callback) (int, error) {
	body, err := json.Marshal(cb)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(MessageTypeHeader, cb.Type)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func topicNameFromARN(arn string) string {
	for i := len(arn) - 1; i >= 0; i-- {
		if arn[i] == ':' {
			return arn[i+1:]
		}
	}
	return arn
}

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
	"errors"
	"fmt"
)

var (
	// Configuration errors, fatal at startup.
	ErrMissingTopic      = errors.New("channel/topic must be set")
	ErrMissingAppHost    = errors.New("app-host must be set")
	ErrMissingServiceURL = errors.New("sns-url must be set")

	// ErrHandshakeFailed fails the readiness gate and terminates the
	// incoming stream before any element is emitted.
	ErrHandshakeFailed = errors.New("subscription handshake failed")

	// ErrEnqueueTimeout is surfaced to the HTTP caller as retryable.
	ErrEnqueueTimeout = errors.New("handoff queue full")

	ErrQueueClosed = errors.New("handoff queue closed")

	// ErrMalformedCallback rejects a callback without changing state.
	ErrMalformedCallback = errors.New("malformed callback payload")
)

// PublishError is a failed topic-create or publish call. The first one
// terminates the outgoing pipeline.
type PublishError struct {
	Topic     string
	MessageID string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to topic %s failed for message %s: %v", e.Topic, e.MessageID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

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

import "time"

// HandshakeState tracks the one-time subscription-confirmation exchange
// between the notification endpoint and the topic service.
type HandshakeState int32

const (
	HandshakeUnregistered HandshakeState = iota
	HandshakeConfirmationPending
	HandshakeConfirmed
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeUnregistered:
		return "unregistered"
	case HandshakeConfirmationPending:
		return "confirmation_pending"
	case HandshakeConfirmed:
		return "confirmed"
	case HandshakeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InboundMessage is one delivery received from the topic service.
// Immutable after the endpoint builds it from a validated callback.
type InboundMessage struct {
	ID        string            `json:"id"`
	Payload   string            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
}

// OutboundMessage is one element the publish pipeline delivers to a topic.
// Exactly one of Ack or Nack is invoked per message by the pipeline.
type OutboundMessage struct {
	ID      string
	Payload string
	Ack     func() error
	Nack    func(error) error
}

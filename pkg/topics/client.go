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

import "context"

// Client is the topic service collaborator. Implementations must be safe
// for concurrent calls.
type Client interface {
	// CreateTopic is idempotent: creating an existing topic returns the
	// existing handle.
	CreateTopic(ctx context.Context, name string) (arn string, err error)

	// Publish delivers payload to the topic and returns a receipt id.
	Publish(ctx context.Context, arn, payload string) (messageID string, err error)

	// Subscribe registers endpointURL as an HTTP callback target for the
	// topic. The service confirms the subscription by delivering a
	// SubscriptionConfirmation callback to that URL.
	Subscribe(ctx context.Context, arn, endpointURL string) (subscriptionARN string, err error)
}

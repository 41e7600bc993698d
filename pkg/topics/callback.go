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

// Callback kinds, carried in the Type field of the webhook body and the
// x-amz-sns-message-type header.
const (
	CallbackSubscriptionConfirmation = "SubscriptionConfirmation"
	CallbackNotification             = "Notification"
	CallbackUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

// MessageTypeHeader identifies the callback kind at the transport level.
const MessageTypeHeader = "x-amz-sns-message-type"

// Callback is the wire shape of an SNS webhook delivery. Message is a
// pointer so a missing field is distinguishable from an empty payload.
type Callback struct {
	Type         string  `json:"Type"`
	MessageID    string  `json:"MessageId"`
	Token        string  `json:"Token,omitempty"`
	TopicArn     string  `json:"TopicArn"`
	Subject      string  `json:"Subject,omitempty"`
	Message      *string `json:"Message,omitempty"`
	SubscribeURL string  `json:"SubscribeURL,omitempty"`
	Timestamp    string  `json:"Timestamp,omitempty"`
}

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
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSClient implements Client against AWS SNS. An endpointURL override
// points the SDK at a local stand-in service (localstack, fake SNS).
type SNSClient struct {
	sns    *sns.Client
	logger *slog.Logger
}

func NewSNSClient(ctx context.Context, endpointURL string, logger *slog.Logger) (*SNSClient, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if endpointURL != "" {
		// Local stand-in services accept any credentials.
		loadOpts = append(loadOpts,
			awsconfig.WithRegion("us-east-1"),
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			),
		)
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if endpointURL != "" {
			o.BaseEndpoint = aws.String(endpointURL)
		}
	})

	return &SNSClient{sns: client, logger: logger}, nil
}

func (c *SNSClient) CreateTopic(ctx context.Context, name string) (string, error) {
	out, err := c.sns.CreateTopic(ctx, &sns.CreateTopicInput{Name: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("create topic %s: %w", name, err)
	}
	return aws.ToString(out.TopicArn), nil
}

func (c *SNSClient) Publish(ctx context.Context, arn, payload string) (string, error) {
	out, err := c.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(arn),
		Message:  aws.String(payload),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.MessageId), nil
}

func (c *SNSClient) Subscribe(ctx context.Context, arn, endpointURL string) (string, error) {
	out, err := c.sns.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn:              aws.String(arn),
		Protocol:              aws.String("http"),
		Endpoint:              aws.String(endpointURL),
		ReturnSubscriptionArn: true,
	})
	if err != nil {
		return "", fmt.Errorf("subscribe %s to %s: %w", endpointURL, arn, err)
	}
	c.logger.Info("sns subscription requested", "topic_arn", arn, "endpoint", endpointURL)
	return aws.ToString(out.SubscriptionArn), nil
}

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

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/streambridge/sns-connector/pkg/core"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort             = 8080
	DefaultWebhookPath      = "/"
	DefaultEnqueueTimeout   = 5 * time.Second
	DefaultSubscriberBuffer = 16
	DefaultMaxInFlight      = 1
)

type Config struct {
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig describes one connector instance, incoming or outgoing.
type ChannelConfig struct {
	Name      string `yaml:"name"`
	Direction string `yaml:"direction"` // incoming | outgoing

	// Channel takes precedence over Topic when both are set.
	Channel string `yaml:"channel"`
	Topic   string `yaml:"topic"`

	AppHost    string `yaml:"app-host"`
	SNSURL     string `yaml:"sns-url"`
	MockTopics *bool  `yaml:"mock-topics"` // default true
	Port       int    `yaml:"port"`
	Broadcast  bool   `yaml:"broadcast"`

	WebhookPath      string        `yaml:"webhook_path"`
	QueueSize        int           `yaml:"queue_size"`
	EnqueueTimeout   time.Duration `yaml:"enqueue_timeout"`
	SubscriberBuffer int           `yaml:"subscriber_buffer"`
	MaxInFlight      int           `yaml:"max_in_flight"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	for i := range c.Channels {
		if err := c.Channels[i].Validate(); err != nil {
			return fmt.Errorf("channel %q: %w", c.Channels[i].Name, err)
		}
	}
	return nil
}

func (c *ChannelConfig) Validate() error {
	if c.TopicName() == "" {
		return core.ErrMissingTopic
	}
	switch c.Direction {
	case "incoming", "outgoing":
	default:
		return fmt.Errorf("direction must be incoming or outgoing, got %q", c.Direction)
	}
	if !c.Mock() {
		if c.SNSURL == "" {
			return core.ErrMissingServiceURL
		}
		if c.Direction == "incoming" && c.AppHost == "" {
			return core.ErrMissingAppHost
		}
	}
	return nil
}

// TopicName returns the configured topic, with channel taking precedence.
func (c *ChannelConfig) TopicName() string {
	if c.Channel != "" {
		return c.Channel
	}
	return c.Topic
}

// Mock reports whether the handshake is synthesized instead of calling the
// real topic service. Defaults to true.
func (c *ChannelConfig) Mock() bool {
	if c.MockTopics == nil {
		return true
	}
	return *c.MockTopics
}

func (c *ChannelConfig) ListenPort() int {
	if c.Port <= 0 {
		return DefaultPort
	}
	return c.Port
}

func (c *ChannelConfig) Path() string {
	if c.WebhookPath == "" {
		return DefaultWebhookPath
	}
	return c.WebhookPath
}

func (c *ChannelConfig) Timeout() time.Duration {
	if c.EnqueueTimeout <= 0 {
		return DefaultEnqueueTimeout
	}
	return c.EnqueueTimeout
}

func (c *ChannelConfig) Buffer() int {
	if c.SubscriberBuffer <= 0 {
		return DefaultSubscriberBuffer
	}
	return c.SubscriberBuffer
}

func (c *ChannelConfig) InFlight() int {
	if c.MaxInFlight <= 0 {
		return DefaultMaxInFlight
	}
	return c.MaxInFlight
}

// Copyright 2024-2026 Aiku AI

package flowdock

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default backend endpoints. Overridable for tests and self-hosted
// proxies.
const (
	DefaultAPIURL    = "https://api.flowdock.com"
	DefaultStreamURL = "https://stream.flowdock.com"
)

// ErrNoToken is returned when a client is constructed without an API
// token and without an injected session.
var ErrNoToken = errors.New("flowdock: api token is required")

// Config holds the client configuration.
type Config struct {
	// Token is the Flowdock API token used for all REST and stream
	// authentication.
	Token string `yaml:"token"`
	// Flows is an optional allow-list of flow identifiers (id, short
	// name, "org/flow" path, or display name) to subscribe to. When
	// empty, every flow the current user has joined is subscribed.
	Flows []string `yaml:"flows"`
	// Stream holds free-form query options passed through to the live
	// event stream unmodified.
	Stream map[string]string `yaml:"stream"`

	APIURL    string `yaml:"api_url"`
	StreamURL string `yaml:"stream_url"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// PostProcess fills endpoint defaults.
func (c *Config) PostProcess() error {
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.StreamURL == "" {
		c.StreamURL = DefaultStreamURL
	}
	return nil
}

// LoadConfig reads a yaml config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

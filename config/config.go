// Package config loads and validates the application configuration from
// a YAML file. Secrets may be left out of the file and supplied through
// environment variables instead.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilroybot/kilroy-face-twitter/errors"
	"github.com/kilroybot/kilroy-face-twitter/processor"
)

// Default values applied when the file leaves a field empty.
const (
	DefaultHost            = "0.0.0.0"
	DefaultPort            = 10000
	DefaultShutdownTimeout = 30 * time.Second
	DefaultContentShape    = processor.DefaultCategory
)

// Environment variable names for secrets and overrides.
const (
	EnvConsumerKey       = "KILROY_FACE_TWITTER_CONSUMER_KEY"
	EnvConsumerSecret    = "KILROY_FACE_TWITTER_CONSUMER_SECRET"
	EnvAccessToken       = "KILROY_FACE_TWITTER_ACCESS_TOKEN"
	EnvAccessTokenSecret = "KILROY_FACE_TWITTER_ACCESS_TOKEN_SECRET"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Face     FaceConfig     `yaml:"face"`
	Twitter  TwitterConfig  `yaml:"twitter"`
	Toxicity ToxicityConfig `yaml:"toxicity"`
}

// ServerConfig configures the HTTP/WebSocket gateway.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ShutdownTimeoutDuration parses the shutdown timeout, falling back to
// the default for an empty or unparsable value.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	if s.ShutdownTimeout == "" {
		return DefaultShutdownTimeout
	}
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil {
		return DefaultShutdownTimeout
	}
	return d
}

// FaceConfig configures the face itself.
type FaceConfig struct {
	// ContentShape selects the processor category the face is built for.
	// It is fixed for the process lifetime.
	ContentShape string `yaml:"content_shape"`

	// StateDir is where state snapshots are persisted. Empty disables
	// persistence.
	StateDir string `yaml:"state_dir"`
}

// TwitterConfig carries the OAuth 1.0a user context. Fields left empty
// in the file are filled from the KILROY_FACE_TWITTER_* environment
// variables at load time.
type TwitterConfig struct {
	ConsumerKey       string `yaml:"consumer_key"`
	ConsumerSecret    string `yaml:"consumer_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
}

// ToxicityConfig configures the external toxicity estimator. An empty
// endpoint means toxicity gating is unavailable; enabling the modifier
// or restriction then fails at configuration time.
type ToxicityConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// Load reads the configuration file, applies environment overrides and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Config", "Load", "configuration read")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Load", "configuration decoding")
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	overlay(&c.Twitter.ConsumerKey, EnvConsumerKey)
	overlay(&c.Twitter.ConsumerSecret, EnvConsumerSecret)
	overlay(&c.Twitter.AccessToken, EnvAccessToken)
	overlay(&c.Twitter.AccessTokenSecret, EnvAccessTokenSecret)
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Face.ContentShape == "" {
		c.Face.ContentShape = DefaultContentShape
	}
}

// Validate checks the configuration for internal consistency. Whether
// the content shape names a registered processor is checked by the face
// build, which owns the registry.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: server port %d outside [1, 65535]", errors.ErrInvalidConfig, c.Server.Port),
			"Config", "Validate", "server port check")
	}
	if c.Server.ShutdownTimeout != "" {
		if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
			return errors.WrapInvalid(
				fmt.Errorf("%w: shutdown timeout %q: %v", errors.ErrInvalidConfig, c.Server.ShutdownTimeout, err),
				"Config", "Validate", "shutdown timeout check")
		}
	}

	missing := ""
	switch {
	case c.Twitter.ConsumerKey == "":
		missing = "consumer_key"
	case c.Twitter.ConsumerSecret == "":
		missing = "consumer_secret"
	case c.Twitter.AccessToken == "":
		missing = "access_token"
	case c.Twitter.AccessTokenSecret == "":
		missing = "access_token_secret"
	}
	if missing != "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: twitter.%s", errors.ErrMissingConfig, missing),
			"Config", "Validate", "twitter credentials check")
	}

	return nil
}

func overlay(field *string, env string) {
	if *field != "" {
		return
	}
	if value := os.Getenv(env); value != "" {
		*field = value
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIBaseURL         string `env:"JOURNEY_API_BASE_URL" envDefault:"http://localhost:8000"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	OAuthCallbackPort  int    `env:"OAUTH_CALLBACK_PORT" envDefault:"8423"`
	StorePath          string `env:"JOURNEY_STORE_PATH"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	RecordSeconds      int    `env:"RECORD_SECONDS" envDefault:"30"`
	RecordCommand      string `env:"RECORD_COMMAND"`
}

func (c *Config) CallbackAddr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.OAuthCallbackPort)
}

func (c *Config) RedirectURL() string {
	return fmt.Sprintf("http://%s/oauth/callback", c.CallbackAddr())
}

func (c *Config) Validate() error {
	if c.RecordSeconds <= 0 {
		return fmt.Errorf("RECORD_SECONDS must be positive, got %d", c.RecordSeconds)
	}
	if c.OAuthCallbackPort <= 0 || c.OAuthCallbackPort > 65535 {
		return fmt.Errorf("OAUTH_CALLBACK_PORT must be a valid port, got %d", c.OAuthCallbackPort)
	}
	return nil
}

// RequireGoogle checks that the OAuth client credentials are configured.
// Only the login and register commands need them.
func (c *Config) RequireGoogle() error {
	if c.GoogleClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is required for Google sign-in")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is required for Google sign-in")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.StorePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		cfg.StorePath = filepath.Join(home, ".journey", "session.db")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

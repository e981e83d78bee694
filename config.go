package restproxy

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config holds the environment-driven settings of a Builder.
type Config struct {
	// BaseURL of the remote API. ENV: RESTPROXY_BASE_URL
	BaseURL string `env:"RESTPROXY_BASE_URL"`
	// Timeout of a whole exchange, 0 for none. ENV: RESTPROXY_TIMEOUT
	Timeout time.Duration `env:"RESTPROXY_TIMEOUT,default=30s"`
	// MaxErrorBodySize caps error bodies. ENV: RESTPROXY_MAX_ERROR_BODY
	MaxErrorBodySize int64 `env:"RESTPROXY_MAX_ERROR_BODY,default=1048576"`
	// UserAgent sent unless a method sets one. ENV: RESTPROXY_USER_AGENT
	UserAgent string `env:"RESTPROXY_USER_AGENT,default=restproxy"`
}

// LoadConfig reads Config from the environment. Unset variables keep their
// defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("restproxy: load config: %w", err)
	}
	return cfg, nil
}

// NewBuilderFromConfig returns a Builder using an *http.Client with
// cfg.Timeout, cfg.BaseURL, and a User-Agent default header.
func NewBuilderFromConfig(cfg Config) *Builder {
	b := NewBuilder().
		HTTPClient(&http.Client{Timeout: cfg.Timeout}).
		MaxErrorBodySize(cfg.MaxErrorBodySize)
	if cfg.BaseURL != "" {
		b.BaseURL(cfg.BaseURL)
	}
	if cfg.UserAgent != "" {
		b.WithFilter(DefaultHeader("User-Agent", cfg.UserAgent))
	}
	return b
}

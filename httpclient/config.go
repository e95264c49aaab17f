package httpclient

import (
	"fmt"
	"time"

	"github.com/nacos-group/nacos-serving-go/resilience"
)

// Config holds HTTP client configuration.
type Config struct {
	// BaseURL is prepended to every request path.
	BaseURL string `mapstructure:"base_url"`
	// Timeout bounds a single request including body read.
	Timeout time.Duration `mapstructure:"timeout"`
	// Headers are applied to every request.
	Headers map[string]string `mapstructure:"headers"`
	// Retry, when set, retries transient failures per attempt policy.
	Retry *resilience.RetryConfig `mapstructure:"-"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("httpclient: base_url is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("httpclient: timeout must be >= 0")
	}
	return nil
}

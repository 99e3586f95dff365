package eventbus

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the event bus configuration
type Config struct {
	URL     string        `json:"url" yaml:"url" mapstructure:"url"`
	Subject string        `json:"subject" yaml:"subject" mapstructure:"subject"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// DefaultConfig returns default event bus configuration. The URL is empty,
// which leaves publishing disabled.
func DefaultConfig() *Config {
	return &Config{
		Subject: DefaultSubject,
		Timeout: 5 * time.Second,
	}
}

// Enabled reports whether a NATS server is configured.
func (c *Config) Enabled() bool {
	return c != nil && strings.TrimSpace(c.URL) != ""
}

// Validate validates the event bus configuration
func (c *Config) Validate() error {
	if !c.Enabled() {
		return fmt.Errorf("NATS URL is required")
	}

	if c.Subject == "" {
		c.Subject = DefaultSubject
	}

	if strings.ContainsAny(c.Subject, " \t\r\n") {
		return fmt.Errorf("invalid NATS subject %q", c.Subject)
	}

	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}

	return nil
}

// Package config loads and validates the server's TOML configuration file.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mehranr/socks5gate/pkg/socks5"
)

// defaultDialSeconds and defaultHandshakeSeconds are applied when the
// config file omits the corresponding [server.timeout] key.
const (
	defaultDialSeconds      = 10
	defaultHandshakeSeconds = 30
)

// Account is one TOML-decoded credential pair.
type Account struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type timeoutSection struct {
	DialSeconds      int `toml:"dialSeconds"`
	HandshakeSeconds int `toml:"handshakeSeconds"`
}

type serverSection struct {
	Endpoint string         `toml:"endpoint"`
	Timeout  timeoutSection `toml:"timeout"`
}

// Config is the server's complete, validated configuration.
type Config struct {
	Server      serverSection `toml:"server"`
	Credentials []Account     `toml:"credentials"`
}

// Load reads path, decodes it as TOML, validates it, and applies defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfigFile, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Server.Endpoint) == 0 {
		return ErrMissingEndpoint
	}
	if len(c.Credentials) > 1 {
		return ErrTooManyCredentials
	}
	for _, acct := range c.Credentials {
		if len(acct.Username) == 0 || len(acct.Password) == 0 {
			return ErrEmptyCredential
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Timeout.DialSeconds == 0 {
		c.Server.Timeout.DialSeconds = defaultDialSeconds
	}
	if c.Server.Timeout.HandshakeSeconds == 0 {
		c.Server.Timeout.HandshakeSeconds = defaultHandshakeSeconds
	}
}

// DialTimeout is the configured (or default) outbound connect timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Server.Timeout.DialSeconds) * time.Second
}

// HandshakeTimeout is the configured (or default) accept-to-Proxying budget.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.Server.Timeout.HandshakeSeconds) * time.Second
}

// Credential builds the core's Credentials value from the configured
// account, or nil if the server requires no authentication.
func (c *Config) Credential() *socks5.Credentials {
	if len(c.Credentials) == 0 {
		return nil
	}
	acct := c.Credentials[0]
	return socks5.NewCredentials(acct.Username, acct.Password)
}

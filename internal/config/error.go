package config

import "errors"

var (
	// ErrInvalidConfigFile wraps any failure to read, parse, or validate
	// the config file; cmd/socks5gate treats it as exit code 1.
	ErrInvalidConfigFile = errors.New("invalid config file")
	ErrMissingEndpoint    = errors.New("server.endpoint is required")
	ErrTooManyCredentials = errors.New("at most one [[credentials]] entry is supported")
	ErrEmptyCredential    = errors.New("credentials entry has an empty username or password")
)

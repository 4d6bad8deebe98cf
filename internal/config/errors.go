package config

import "errors"

// Configuration errors.
var (
	// ErrInvalidConfig is the sentinel wrapped by validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownFormat is returned for config files that are neither
	// TOML nor YAML.
	ErrUnknownFormat = errors.New("unknown configuration format")
)

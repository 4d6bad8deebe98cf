// Package config defines the engine configuration: snippet directories,
// scope aliases, evaluator limits, and file watching. Files are TOML by
// convention; YAML is accepted for hosts that already carry one.
package config

import (
	"fmt"
	"time"
)

// Default limits.
const (
	DefaultEvaluatorTimeoutMS = 2000
	DefaultEvaluatorQueueSize = 64
	DefaultWatchDebounceMS    = 200
)

// Config is the root configuration.
type Config struct {
	// Directories are the snippet roots, searched in order. Each root
	// holds <scope>.snippets files or <scope>/*.snippets directories.
	Directories []string `toml:"directories" yaml:"directories"`

	// Scopes maps a scope to extra scopes resolved into it, on top of
	// extends directives declared in the files themselves.
	Scopes map[string][]string `toml:"scopes" yaml:"scopes"`

	Evaluator Evaluator `toml:"evaluator" yaml:"evaluator"`
	Watch     Watch     `toml:"watch" yaml:"watch"`
}

// Evaluator bounds the embedded interpreter.
type Evaluator struct {
	// Disabled turns scriptlet and guard evaluation off; guarded
	// definitions then never match and scriptlets substitute empty.
	Disabled bool `toml:"disabled" yaml:"disabled"`

	// TimeoutMS bounds one interpreter round trip, in milliseconds.
	TimeoutMS int `toml:"timeout_ms" yaml:"timeout_ms"`

	// QueueSize is the interpreter submission queue depth.
	QueueSize int `toml:"queue_size" yaml:"queue_size"`
}

// Timeout returns the round-trip bound as a duration.
func (e Evaluator) Timeout() time.Duration {
	return time.Duration(e.TimeoutMS) * time.Millisecond
}

// Watch configures definition-file watching.
type Watch struct {
	// Enabled turns directory watching on.
	Enabled bool `toml:"enabled" yaml:"enabled"`

	// DebounceMS is the event coalescing window, in milliseconds.
	DebounceMS int `toml:"debounce_ms" yaml:"debounce_ms"`
}

// Debounce returns the coalescing window as a duration.
func (w Watch) Debounce() time.Duration {
	return time.Duration(w.DebounceMS) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Evaluator: Evaluator{
			TimeoutMS: DefaultEvaluatorTimeoutMS,
			QueueSize: DefaultEvaluatorQueueSize,
		},
		Watch: Watch{
			Enabled:    true,
			DebounceMS: DefaultWatchDebounceMS,
		},
	}
}

// Validate checks ranges and fills unset limits with defaults.
func (c *Config) Validate() error {
	if c.Evaluator.TimeoutMS < 0 {
		return fmt.Errorf("%w: evaluator.timeout_ms must not be negative", ErrInvalidConfig)
	}
	if c.Evaluator.QueueSize < 0 {
		return fmt.Errorf("%w: evaluator.queue_size must not be negative", ErrInvalidConfig)
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("%w: watch.debounce_ms must not be negative", ErrInvalidConfig)
	}
	for _, dir := range c.Directories {
		if dir == "" {
			return fmt.Errorf("%w: empty snippet directory", ErrInvalidConfig)
		}
	}

	if c.Evaluator.TimeoutMS == 0 {
		c.Evaluator.TimeoutMS = DefaultEvaluatorTimeoutMS
	}
	if c.Evaluator.QueueSize == 0 {
		c.Evaluator.QueueSize = DefaultEvaluatorQueueSize
	}
	if c.Watch.DebounceMS == 0 {
		c.Watch.DebounceMS = DefaultWatchDebounceMS
	}
	return nil
}

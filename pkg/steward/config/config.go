// Package config aggregates the per-component configuration into one
// YAML file and handles loading it with environment variable expansion
// and secret resolution.
package config

import (
	"github.com/avoncourt/steward/pkg/steward/actuate"
	"github.com/avoncourt/steward/pkg/steward/capture"
	"github.com/avoncourt/steward/pkg/steward/history"
	"github.com/avoncourt/steward/pkg/steward/instruct"
	"github.com/avoncourt/steward/pkg/steward/janitor"
	"github.com/avoncourt/steward/pkg/steward/notify"
	"github.com/avoncourt/steward/pkg/steward/supervisor"
)

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Config is the full steward configuration.
type Config struct {
	Logging    LoggingConfig     `yaml:"logging"`
	Supervisor supervisor.Config `yaml:"supervisor"`
	Capture    capture.Config    `yaml:"capture"`
	Instruct   instruct.Config   `yaml:"instruct"`
	Actuate    actuate.Config    `yaml:"actuate"`
	History    history.Config    `yaml:"history"`
	Notify     notify.Config     `yaml:"notify"`
	Janitor    janitor.Config    `yaml:"janitor"`
}

// DefaultConfig returns a Config with every component at its defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging:    LoggingConfig{Level: "info", Format: "text"},
		Supervisor: supervisor.DefaultConfig(),
		Capture:    capture.DefaultConfig(),
		Instruct:   instruct.DefaultConfig(),
		Actuate:    actuate.DefaultConfig(),
		History:    history.DefaultConfig(),
		Notify:     notify.DefaultConfig(),
		Janitor:    janitor.DefaultConfig(),
	}
}

// Copyright 2026 The VMD Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes the stats helper's polling behavior. Everything here has
// a workable default; the file only needs to name the fields an
// operator wants to override.
type Config struct {
	// PollInterval overrides the --interval flag default (10s per
	// spec.md §6) when the flag is left at its zero value. Expressed
	// as a Go duration string ("10s", "1m30s").
	PollInterval string `yaml:"poll_interval"`

	// PollJitter adds up to this much random delay before each sample
	// tick, so that many stats helpers on one host don't wake in
	// lockstep and spike /proc read contention.
	PollJitter string `yaml:"poll_jitter"`

	// PreferredBackends names the OS counter backend the stats helper
	// uses, chosen once at startup. The helper implements only
	// "procfs"; unrecognized names are ignored, and an empty list or
	// one naming nothing recognized also selects procfs.
	PreferredBackends []string `yaml:"preferred_backends,omitempty"`
}

// Default returns a Config with every field set to a workable value.
// Used as the base before loading a file, and when no file is given at
// all — the stats helper always has a complete Config.
func Default() *Config {
	return &Config{
		PollInterval:      "10s",
		PollJitter:        "0s",
		PreferredBackends: nil,
	}
}

// Load loads configuration from the VMD_STATS_CONFIG environment
// variable. Returns Default() unchanged if the variable is unset —
// unlike a required config file, this file is genuinely optional.
func Load() (*Config, error) {
	path := os.Getenv("VMD_STATS_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging over
// Default(). A missing field in the file keeps its default value;
// yaml.Unmarshal only overwrites fields present in the document.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Interval parses PollInterval, falling back to 10s (the spec.md §6
// default) on an empty or invalid string.
func (c *Config) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// Jitter parses PollJitter, falling back to zero on an empty or
// invalid string.
func (c *Config) Jitter() time.Duration {
	d, err := time.ParseDuration(c.PollJitter)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Validate checks the configuration for errors that Interval/Jitter
// cannot silently repair, surfacing them to the operator at load time
// instead of at first use.
func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.PollInterval); err != nil {
		return fmt.Errorf("poll_interval: %w", err)
	}
	if c.PollJitter != "" {
		if _, err := time.ParseDuration(c.PollJitter); err != nil {
			return fmt.Errorf("poll_jitter: %w", err)
		}
	}
	return nil
}

// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package config holds the uplink daemon configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/absmach/uplink/calendar"
)

// Config holds all configuration for the uplink delivery daemon.
type Config struct {
	Device DeviceConfig `yaml:"device"`
	Link   LinkConfig   `yaml:"link"`
	Time   TimeConfig   `yaml:"time"`
	Log    LogConfig    `yaml:"log"`
}

// DeviceConfig holds device-wide settings.
type DeviceConfig struct {
	// PoolSize fixes the message slot count for the process lifetime.
	PoolSize int `yaml:"pool_size"`

	// Version is the protocol version stamped into message headers.
	Version uint8 `yaml:"version"`
}

// LinkConfig holds delivery and retry settings.
type LinkConfig struct {
	// MessageTimeout is how long a guaranteed message waits for an
	// acknowledgement before it is retransmitted.
	MessageTimeout time.Duration `yaml:"message_timeout"`

	// ListenWindow bounds the post-transmit wait for a downlink.
	ListenWindow time.Duration `yaml:"listen_window"`

	// CycleInterval is the pause between delivery cycles.
	CycleInterval time.Duration `yaml:"cycle_interval"`

	// FailureThreshold is the consecutive transmit-failure count that
	// restarts the device.
	FailureThreshold uint32 `yaml:"failure_threshold"`

	// RejoinBackoff is the pause before re-initializing the link after
	// a delivery cycle reports transmit failures.
	RejoinBackoff time.Duration `yaml:"rejoin_backoff"`
}

// TimeConfig holds clock and maintenance settings.
type TimeConfig struct {
	// Start is the wall-clock time the device boots with, in
	// "2006-01-02 15:04:05" form, used until the first network sync.
	Start string `yaml:"start"`

	// SweepInterval is the period of the expiry sweep and time resync.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// ExpiryOffsetDays selects the day-of-week bucket the sweep
	// discards: messages stamped (today + offset) mod 7. Valid values
	// are 1..6; today's bucket cannot be swept, since fresh messages
	// carry today's stamp.
	ExpiryOffsetDays int `yaml:"expiry_offset_days"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

const startLayout = "2006-01-02 15:04:05"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			PoolSize: 16,
			Version:  0,
		},
		Link: LinkConfig{
			MessageTimeout:   60 * time.Second,
			ListenWindow:     10 * time.Second,
			CycleInterval:    5 * time.Minute,
			FailureThreshold: 5,
			RejoinBackoff:    15 * time.Second,
		},
		Time: TimeConfig{
			Start:            "2023-02-26 00:00:00",
			SweepInterval:    24 * time.Hour,
			ExpiryOffsetDays: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults
// when the path is empty or the file does not exist.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Device.PoolSize < 1 {
		return fmt.Errorf("device.pool_size must be at least 1")
	}
	if c.Device.Version > 7 {
		return fmt.Errorf("device.version must fit in 3 bits")
	}
	if c.Link.MessageTimeout < time.Second {
		return fmt.Errorf("link.message_timeout must be at least 1 second")
	}
	if c.Link.ListenWindow < time.Second {
		return fmt.Errorf("link.listen_window must be at least 1 second")
	}
	if c.Link.FailureThreshold < 1 {
		return fmt.Errorf("link.failure_threshold must be at least 1")
	}
	if c.Link.RejoinBackoff < time.Second {
		return fmt.Errorf("link.rejoin_backoff must be at least 1 second")
	}
	if _, err := c.StartTime(); err != nil {
		return fmt.Errorf("time.start: %w", err)
	}
	if c.Time.SweepInterval < time.Minute {
		return fmt.Errorf("time.sweep_interval must be at least 1 minute")
	}
	if c.Time.ExpiryOffsetDays < 1 || c.Time.ExpiryOffsetDays > 6 {
		return fmt.Errorf("time.expiry_offset_days must be between 1 and 6")
	}
	return nil
}

// StartTime parses the configured boot time into a calendar DateTime.
func (c *Config) StartTime() (calendar.DateTime, error) {
	t, err := time.Parse(startLayout, c.Time.Start)
	if err != nil {
		return calendar.DateTime{}, fmt.Errorf("failed to parse start time: %w", err)
	}
	dt := calendar.DateTime{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
		Second: t.Second(),
	}
	dt.DOW = calendar.DayOfWeek(dt.Day, dt.Month, dt.Year)
	return dt, nil
}

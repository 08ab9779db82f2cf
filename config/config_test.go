// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uplink.yaml")
	data := `
device:
  pool_size: 32
  version: 2
link:
  message_timeout: 90s
  listen_window: 30s
  rejoin_backoff: 5s
time:
  expiry_offset_days: 3
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Device.PoolSize)
	assert.Equal(t, uint8(2), cfg.Device.Version)
	assert.Equal(t, 90*time.Second, cfg.Link.MessageTimeout)
	assert.Equal(t, 30*time.Second, cfg.Link.ListenWindow)
	assert.Equal(t, 5*time.Second, cfg.Link.RejoinBackoff)
	assert.Equal(t, 3, cfg.Time.ExpiryOffsetDays)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, uint32(5), cfg.Link.FailureThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Time.SweepInterval)
	assert.Equal(t, "2023-02-26 00:00:00", cfg.Time.Start)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: ["), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		desc   string
		mutate func(*Config)
		ok     bool
	}{
		{desc: "defaults are valid", mutate: func(*Config) {}, ok: true},
		{desc: "zero pool", mutate: func(c *Config) { c.Device.PoolSize = 0 }},
		{desc: "version too wide", mutate: func(c *Config) { c.Device.Version = 8 }},
		{desc: "tiny message timeout", mutate: func(c *Config) { c.Link.MessageTimeout = time.Millisecond }},
		{desc: "tiny listen window", mutate: func(c *Config) { c.Link.ListenWindow = 0 }},
		{desc: "zero failure threshold", mutate: func(c *Config) { c.Link.FailureThreshold = 0 }},
		{desc: "tiny rejoin backoff", mutate: func(c *Config) { c.Link.RejoinBackoff = time.Millisecond }},
		{desc: "garbled start time", mutate: func(c *Config) { c.Time.Start = "yesterday" }},
		{desc: "tiny sweep interval", mutate: func(c *Config) { c.Time.SweepInterval = time.Second }},
		{desc: "zero expiry offset", mutate: func(c *Config) { c.Time.ExpiryOffsetDays = 0 }},
		{desc: "expiry offset past the week", mutate: func(c *Config) { c.Time.ExpiryOffsetDays = 7 }},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestStartTime(t *testing.T) {
	cfg := Default()
	dt, err := cfg.StartTime()
	require.NoError(t, err)
	assert.Equal(t, 2023, dt.Year)
	assert.Equal(t, 2, dt.Month)
	assert.Equal(t, 26, dt.Day)
	assert.Equal(t, 0, dt.DOW) // Feb 26 2023 is a Sunday
}

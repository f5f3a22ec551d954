// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "server.toml"))
	require.NoError(t, err)

	assert.Equal(t, "calc-gateway", cfg.Name)
	assert.Equal(t, filepath.Join("..", "..", "schema", "testdata", "calc.yaml"), cfg.Schema)
	assert.Equal(t, "Gateway", cfg.Application)
	assert.Equal(t, ServerConfig{Transport: "json", Addr: "127.0.0.1:9650", Codec: "json"}, cfg.Server)
	assert.Equal(t, HTTPConfig{Path: "/ext/rpc", MetricsPath: "/metrics"}, cfg.HTTP)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
}

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "minimal.toml"))
	require.NoError(t, err)

	want := Default()
	want.Schema = "/etc/msgrpc/calc.yaml"
	assert.Equal(t, want, cfg)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.toml"))
	assert.ErrorContains(t, err, "config load failed")

	_, err = Load(filepath.Join("testdata", "unknown_key.toml"))
	assert.ErrorContains(t, err, "unknown keys server.port")

	_, err = Load(filepath.Join("testdata", "bad_transport.toml"))
	assert.ErrorContains(t, err, `server.transport "smoke-signal"`)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Schema = "calc.yaml"
	require.NoError(t, valid.Validate())

	tests := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"no schema":       {func(c *Config) { c.Schema = " " }, "schema is required"},
		"no addr":         {func(c *Config) { c.Server.Addr = "" }, "server.addr is required"},
		"codec":           {func(c *Config) { c.Server.Codec = "xml" }, "unknown codec"},
		"relative path":   {func(c *Config) { c.HTTP.Path = "rpc" }, "must start with /"},
		"metrics path":    {func(c *Config) { c.HTTP.MetricsPath = "metrics" }, "must start with /"},
		"shared path":     {func(c *Config) { c.HTTP.MetricsPath = "/rpc" }, "are both"},
		"level":           {func(c *Config) { c.Log.Level = "loud" }, "unknown log level"},
		"format":          {func(c *Config) { c.Log.Format = "xml" }, "must be console or json"},
		"transport":       {func(c *Config) { c.Server.Transport = "udp" }, "must be one of"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	// metrics may be disabled
	noMetrics := valid
	noMetrics.HTTP.MetricsPath = ""
	assert.NoError(t, noMetrics.Validate())
}

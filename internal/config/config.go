// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the TOML configuration of a msgrpc server.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/luxfi/msgrpc"
	"github.com/luxfi/msgrpc/internal/logging"
)

type Config struct {
	Name        string       `toml:"name"`
	Schema      string       `toml:"schema"`
	Application string       `toml:"application"`
	Server      ServerConfig `toml:"server"`
	HTTP        HTTPConfig   `toml:"http"`
	Log         LogConfig    `toml:"log"`
}

type ServerConfig struct {
	Transport string `toml:"transport"`
	Addr      string `toml:"addr"`
	Codec     string `toml:"codec"`
}

// HTTPConfig applies to the json transport only.
type HTTPConfig struct {
	Path        string `toml:"path"`
	MetricsPath string `toml:"metrics_path"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used for every key a file leaves out.
func Default() Config {
	return Config{
		Name: "msgrpc",
		Server: ServerConfig{
			Transport: msgrpc.DefaultTransport,
			Addr:      ":9000",
			Codec:     msgrpc.CodecMsgpack,
		},
		HTTP: HTTPConfig{
			Path:        "/rpc",
			MetricsPath: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults. A relative schema path is resolved
// against the directory of the config file.
func Load(path string) (Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(path), cfg.Schema)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.Name) == "" {
		c.Name = def.Name
	}
	if c.Server.Transport == "" {
		c.Server.Transport = def.Server.Transport
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.Codec == "" {
		c.Server.Codec = def.Server.Codec
	}
	if c.HTTP.Path == "" {
		c.HTTP.Path = def.HTTP.Path
	}
	if c.HTTP.MetricsPath == "" {
		c.HTTP.MetricsPath = def.HTTP.MetricsPath
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Schema) == "" {
		return fmt.Errorf("schema is required")
	}
	if !msgrpc.HasTransport(c.Server.Transport) {
		return fmt.Errorf("server.transport %q: must be one of %v", c.Server.Transport, msgrpc.AvailableTransports())
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := msgrpc.CodecByName(c.Server.Codec); err != nil {
		return fmt.Errorf("server.codec: %w", err)
	}
	if !strings.HasPrefix(c.HTTP.Path, "/") {
		return fmt.Errorf("http.path %q must start with /", c.HTTP.Path)
	}
	if c.HTTP.MetricsPath != "" && !strings.HasPrefix(c.HTTP.MetricsPath, "/") {
		return fmt.Errorf("http.metrics_path %q must start with /", c.HTTP.MetricsPath)
	}
	if c.HTTP.MetricsPath == c.HTTP.Path {
		return fmt.Errorf("http.metrics_path and http.path are both %q", c.HTTP.Path)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q: must be console or json", c.Log.Format)
	}
	return nil
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/msgrpc/internal/config"
	"github.com/luxfi/msgrpc/internal/logging"
	"github.com/luxfi/msgrpc/schema"
	"github.com/luxfi/msgrpc/service"
)

func TestServeUntilCancelled(t *testing.T) {
	errOut := &bytes.Buffer{}
	cmd := NewServeCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--config", filepath.Join("testdata", "serve.toml")})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}

	logs := errOut.String()
	assert.Contains(t, logs, `"message":"application ready"`)
	assert.Contains(t, logs, `"application":"Gateway"`)
	assert.Contains(t, logs, `"routes":10`)
	assert.Contains(t, logs, `"app":"calc-cli"`)
}

func TestServeInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing file", []string{"--config", filepath.Join("testdata", "missing.toml")}, "invalid config"},
		{"bad transport", []string{"--config", filepath.Join("testdata", "bad_serve.toml")}, "must be one of"},
		{"bad override", []string{"--config", filepath.Join("testdata", "serve.toml"), "--transport", "smoke"}, "invalid flags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errOut := &bytes.Buffer{}
			cmd := NewServeCommand(&RootOptions{Format: "text"})
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(errOut)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, errOut.String(), "Error [CONFIG]")
			assert.Contains(t, errOut.String(), tt.want)
		})
	}
}

func TestNewServerErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Schema = filepath.Join("testdata", "broken.yaml")
	cfg.Server.Addr = "127.0.0.1:0"
	_, err := NewServer(cfg, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "duplicated")

	cfg.Schema = filepath.Join("testdata", "two_apps.yaml")
	_, err = NewServer(cfg, nil, zerolog.Nop())
	assert.ErrorContains(t, err, "choose an application")

	cfg.Schema = calcSchemaPath
	cfg.Application = "Gateway"
	server, err := NewServer(cfg, calcHandlers, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, server.Close())

	_, err = NewServer(cfg, func(*schema.Schema) map[string]*service.Handlers {
		return map[string]*service.Handlers{"nope": service.NewHandlers()}
	}, zerolog.Nop())
	assert.ErrorContains(t, err, `no scope "nope"`)
}

func TestServerLoggerEnvironment(t *testing.T) {
	t.Setenv(logging.EnvLevel, "warn")
	t.Setenv(logging.EnvFormat, "json")

	cfg := config.Default()
	buf := &bytes.Buffer{}
	logger, err := serverLogger(cfg, buf)
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	t.Setenv(logging.EnvLevel, "loud")
	_, err = serverLogger(cfg, buf)
	assert.Error(t, err)
}

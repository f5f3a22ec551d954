// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLevel  = "MSGRPC_LOG_LEVEL"
	EnvFormat = "MSGRPC_LOG_FORMAT"
)

// Profile is a baseline logger configuration.
type Profile struct {
	Level      zerolog.Level
	JSON       bool
	Timestamps bool
	Out        io.Writer
}

// Runtime logs info and above to stderr through a console writer.
func Runtime() Profile {
	return Profile{Level: zerolog.InfoLevel, Timestamps: true, Out: os.Stderr}
}

// Test logs everything without timestamps so output is stable.
func Test(out io.Writer) Profile {
	return Profile{Level: zerolog.DebugLevel, Out: out}
}

var once sync.Once

// Init configures log.Logger from p and the environment overrides. Only
// the first call has an effect; later calls return the configured logger.
func Init(app string, p Profile) zerolog.Logger {
	once.Do(func() {
		logger, err := New(app, p, os.Getenv(EnvLevel), os.Getenv(EnvFormat))
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		}
		log.Logger = logger
	})
	return log.Logger
}

// New builds a logger from p with optional level and format overrides.
// An invalid override is reported and ignored.
func New(app string, p Profile, level, format string) (zerolog.Logger, error) {
	var errs []string
	if level != "" {
		lvl, err := ParseLevel(level)
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			p.Level = lvl
		}
	}
	switch strings.ToLower(format) {
	case "":
	case "json":
		p.JSON = true
	case "console":
		p.JSON = false
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", format))
	}

	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	if !p.JSON {
		cw := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		if !p.Timestamps {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		out = cw
	}

	ctx := zerolog.New(out).Level(p.Level).With()
	if p.Timestamps {
		ctx = ctx.Timestamp()
	}
	if app != "" {
		ctx = ctx.Str("app", app)
	}
	logger := ctx.Logger()

	if len(errs) > 0 {
		return logger, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return logger, nil
}

// ParseLevel accepts trace, debug, info, warn, error and disabled.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return zerolog.TraceLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "disabled", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

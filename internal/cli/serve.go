// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luxfi/msgrpc"
	"github.com/luxfi/msgrpc/dispatch"
	"github.com/luxfi/msgrpc/internal/config"
	"github.com/luxfi/msgrpc/internal/logging"
	"github.com/luxfi/msgrpc/internal/metrics"
	"github.com/luxfi/msgrpc/schema"
	"github.com/luxfi/msgrpc/service"
)

// ServeOptions override the config file.
type ServeOptions struct {
	Config    string
	Addr      string
	Transport string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an application from a config file",
		Long: `Serve the application named in a TOML config over its transport.

The stand-alone server routes and validates every call against the schema.
Functions have no implementation here, so a well-formed call answers
NOT_IMPLEMENTED; link the dispatch package with handlers to serve real
functions. The json transport also exposes Prometheus metrics.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, opts, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Config, "config", "c", "msgrpc.toml", "config file")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.Transport, "transport", "", "transport (overrides server.transport)")
	return cmd
}

func runServe(rootOpts *RootOptions, opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid config", err)
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if opts.Transport != "" {
		cfg.Server.Transport = opts.Transport
	}
	if err := cfg.Validate(); err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid flags", err)
	}

	logger, err := serverLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring log settings")
	}

	server, err := NewServer(cfg, nil, logger)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeSchema, "cannot serve", err)
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Serve(ctx); err != nil {
		return f.Fail(ExitFailure, ErrCodeDial, "server failed", err)
	}
	logger.Info().Msg("stopped")
	return nil
}

// serverLogger applies the config's log settings, then the environment.
func serverLogger(cfg config.Config, out io.Writer) (zerolog.Logger, error) {
	level, format := cfg.Log.Level, cfg.Log.Format
	if v := os.Getenv(logging.EnvLevel); v != "" {
		level = v
	}
	if v := os.Getenv(logging.EnvFormat); v != "" {
		format = v
	}
	p := logging.Runtime()
	p.Out = out
	return logging.New(cfg.Name, p, level, format)
}

// HandlerSet builds the handlers of an application from the loaded schema,
// keyed by scope name. Records returned by handlers must be built from sch.
type HandlerSet func(sch *schema.Schema) map[string]*service.Handlers

// NewServer loads the schema named by cfg and listens on its address.
// Scopes without handlers answer NOT_IMPLEMENTED for every function; a nil
// HandlerSet serves none.
func NewServer(cfg config.Config, build HandlerSet, logger zerolog.Logger) (msgrpc.Server, error) {
	sch, err := schema.LoadFile(cfg.Schema)
	if err != nil {
		return nil, err
	}
	a, err := selectApplication(sch, cfg.Application)
	if err != nil {
		return nil, err
	}
	var handlers map[string]*service.Handlers
	if build != nil {
		handlers = build(sch)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewWithRegistry(reg)

	app, err := dispatch.New(a, handlers,
		dispatch.WithLogger(logger.With().Str("component", "dispatch").Logger()),
		dispatch.WithObserver(collector),
	)
	if err != nil {
		return nil, err
	}

	codec, err := msgrpc.CodecByName(cfg.Server.Codec)
	if err != nil {
		return nil, err
	}
	server, err := msgrpc.Listen(cfg.Server.Addr,
		msgrpc.WithServerTransport(cfg.Server.Transport),
		msgrpc.WithServerCodec(codec),
		msgrpc.WithServerLogger(logger.With().Str("component", "server").Logger()),
		msgrpc.WithConnObserver(collector),
		msgrpc.WithHTTPPath(cfg.HTTP.Path),
		msgrpc.WithMetrics(cfg.HTTP.MetricsPath, reg),
	)
	if err != nil {
		return nil, err
	}
	server.Handle(app)

	logger.Info().
		Str("application", a.Name()).
		Str("transport", cfg.Server.Transport).
		Str("codec", cfg.Server.Codec).
		Int("routes", len(app.Routes())).
		Msg("application ready")
	return server, nil
}

// contextOrBackground guards commands executed without ExecuteContext.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package msgrpc

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Client is the protocol-agnostic RPC client interface.
// All application code should use this interface.
type Client interface {
	// Call makes a synchronous RPC call
	Call(ctx context.Context, method string, args, reply any) error

	// CallRaw makes a call with a payload already encoded by the codec
	CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error)

	// Notify sends a one-way message (no response expected)
	Notify(ctx context.Context, method string, args any) error

	// Close closes the connection
	Close() error
}

// Server is the protocol-agnostic RPC server interface.
type Server interface {
	// Handle serves every method without a raw handler through d
	Handle(d Dispatcher)

	// RegisterRaw registers a raw byte handler for one method
	RegisterRaw(method string, handler RawHandler) error

	// Serve starts serving requests (blocks until context cancelled)
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// Dispatcher serves a decoded call. *dispatch.Application implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, method string, payload any) (any, error)
}

// DispatcherFunc is a function adapter for Dispatcher
type DispatcherFunc func(ctx context.Context, method string, payload any) (any, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, method string, payload any) (any, error) {
	return f(ctx, method, payload)
}

// RawHandler handles raw byte RPC calls
type RawHandler func(ctx context.Context, payload []byte) ([]byte, error)

// ConnObserver receives transport events. *metrics.Collector implements it.
type ConnObserver interface {
	ConnOpened(transport string)
	ConnClosed(transport string)
	FrameError(transport string)
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec     Codec
	transport string
	log       *zerolog.Logger
	headers   http.Header
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithDialLogger sets the client logger
func WithDialLogger(l zerolog.Logger) DialOption {
	return func(o *dialOptions) { o.log = &l }
}

// WithDialHeader adds an HTTP header to every JSON-RPC request
func WithDialHeader(key, value string) DialOption {
	return func(o *dialOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Add(key, value)
	}
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	codec       Codec
	transport   string
	log         *zerolog.Logger
	observer    ConnObserver
	path        string
	metricsPath string
	gatherer    prometheus.Gatherer
}

// WithServerCodec sets a custom codec for the server
func WithServerCodec(c Codec) ServerOption {
	return func(o *serverOptions) { o.codec = c }
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithServerLogger sets the server logger
func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(o *serverOptions) { o.log = &l }
}

// WithConnObserver reports connection events to obs
func WithConnObserver(obs ConnObserver) ServerOption {
	return func(o *serverOptions) { o.observer = obs }
}

// WithHTTPPath sets the JSON-RPC endpoint path (default "/rpc")
func WithHTTPPath(path string) ServerOption {
	return func(o *serverOptions) { o.path = path }
}

// WithMetrics exposes g on the JSON-RPC server at path
func WithMetrics(path string, g prometheus.Gatherer) ServerOption {
	return func(o *serverOptions) {
		o.metricsPath = path
		o.gatherer = g
	}
}

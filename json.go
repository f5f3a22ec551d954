// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package msgrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	rpc "github.com/gorilla/rpc/v2/json2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/internal/logging"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond
)

func init() {
	registerTransport(TransportJSON, dialJSON, listenJSON)
}

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
// This avoids EOF errors that can occur with connection pooling in complex
// process hierarchies.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError checks if an error is transient and worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// EOF errors are often transient connection issues
	if errors.Is(err, io.EOF) || strings.Contains(errStr, "EOF") {
		return true
	}
	if strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "broken pipe") {
		return true
	}
	return false
}

// Option configures a single JSON-RPC request.
type Option func(*Options)

// Options holds per-request headers and query parameters.
type Options struct {
	headers     http.Header
	queryParams url.Values
	log         zerolog.Logger
}

// NewOptions applies ops over empty headers and parameters.
func NewOptions(ops []Option) *Options {
	o := &Options{
		headers:     make(http.Header),
		queryParams: make(url.Values),
		log:         logging.Component("jsonrpc"),
	}
	for _, op := range ops {
		op(o)
	}
	return o
}

// WithHeader adds an HTTP header to the request.
func WithHeader(key, val string) Option {
	return func(o *Options) { o.headers.Add(key, val) }
}

// WithQueryParam adds a URL query parameter to the request.
func WithQueryParam(key, val string) Option {
	return func(o *Options) { o.queryParams.Add(key, val) }
}

// WithRequestLogger logs retries through l.
func WithRequestLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.log = l }
}

// SendJSONRequest issues a JSON-RPC 2.0 call and decodes the result into
// reply. A JSON-RPC error object is returned as an *errdefs.RemoteError and
// a null result leaves reply untouched.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params any,
	reply any,
	options ...Option,
) error {
	requestBodyBytes, err := rpc.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewOptions(options)
	target := *uri
	target.RawQuery = ops.queryParams.Encode()
	ops.log.Trace().Str("method", method).Str("uri", target.String()).Msg("sending request")

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// body buffer is consumed by each attempt
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			target.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", "application/json")

		client := newHTTPClient()
		resp, err := client.Do(request)
		if err != nil {
			lastErr = err
			retryable := isRetryableError(err)
			ops.log.Debug().Err(err).Int("attempt", attempt+1).Bool("retryable", retryable).Msg("request attempt failed")
			if retryable {
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}
		if attempt > 0 {
			ops.log.Debug().Int("attempt", attempt+1).Msg("request succeeded")
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			CleanlyCloseBody(resp.Body)
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}

		err = rpc.DecodeClientResponse(resp.Body, reply)
		CleanlyCloseBody(resp.Body)
		switch {
		case err == nil, errors.Is(err, rpc.ErrNullResult):
			return nil
		default:
			var jerr *rpc.Error
			if errors.As(err, &jerr) {
				return remoteFromJSON(jerr)
			}
			return fmt.Errorf("failed to decode client response: %w", err)
		}
	}

	return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}

// jsonErrorCodes maps protocol codes onto JSON-RPC 2.0 error codes. The
// protocol code also travels in the error's data member.
var jsonErrorCodes = map[errdefs.Code]rpc.ErrorCode{
	errdefs.CodeShape:          rpc.E_BAD_PARAMS,
	errdefs.CodeRouting:        rpc.E_NO_METHOD,
	errdefs.CodeNotImplemented: rpc.E_INTERNAL,
	errdefs.CodeRemote:         rpc.E_SERVER,
}

func jsonError(err error) *rpc.Error {
	code := errdefs.CodeOf(err)
	return &rpc.Error{Code: jsonErrorCodes[code], Message: err.Error(), Data: string(code)}
}

func remoteFromJSON(e *rpc.Error) error {
	if s, ok := e.Data.(string); ok && s != "" {
		return errdefs.NewRemote(errdefs.Code(s), e.Message)
	}
	switch e.Code {
	case rpc.E_BAD_PARAMS, rpc.E_PARSE, rpc.E_INVALID_REQ:
		return errdefs.NewRemote(errdefs.CodeShape, e.Message)
	case rpc.E_NO_METHOD:
		return errdefs.NewRemote(errdefs.CodeRouting, e.Message)
	}
	return errdefs.NewRemote(errdefs.CodeRemote, e.Message)
}

// dialJSON returns a JSON-RPC client for an http(s) URL or a host:port,
// which is served at /rpc.
func dialJSON(_ context.Context, addr string, o *dialOptions) (Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr + "/rpc"
	}
	uri, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("json dial: %w", err)
	}
	c := &jsonClient{uri: uri, log: *o.log}
	for key, values := range o.headers {
		for _, v := range values {
			c.options = append(c.options, WithHeader(key, v))
		}
	}
	c.options = append(c.options, WithRequestLogger(c.log))
	return c, nil
}

// jsonClient implements Client over HTTP JSON-RPC 2.0. Params and results
// are always JSON; the dial codec does not apply.
type jsonClient struct {
	uri     *url.URL
	options []Option
	log     zerolog.Logger
}

func (c *jsonClient) Call(ctx context.Context, method string, args, reply any) error {
	var raw json.RawMessage
	if err := SendJSONRequest(ctx, c.uri, method, jsonSafe(args), &raw, c.options...); err != nil {
		return err
	}
	if reply == nil || len(raw) == 0 {
		return nil
	}
	if err := (JSONCodec{}).Decode(raw, reply); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

func (c *jsonClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var params any
	if len(payload) > 0 {
		params = json.RawMessage(payload)
	}
	var raw json.RawMessage
	if err := SendJSONRequest(ctx, c.uri, method, params, &raw, c.options...); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *jsonClient) Notify(ctx context.Context, method string, args any) error {
	return c.Call(ctx, method, args, nil)
}

func (c *jsonClient) Close() error { return nil }

func listenJSON(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &jsonServer{
		mux:      newMux(),
		listener: listener,
		log:      o.log.With().Str("transport", TransportJSON).Logger(),
		observer: o.observer,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Post(o.path, s.serveHTTP)
	if o.metricsPath != "" && o.gatherer != nil {
		r.Handle(o.metricsPath, promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}
	s.srv = &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

// jsonServer implements Server over HTTP JSON-RPC 2.0
type jsonServer struct {
	*mux
	listener net.Listener
	srv      *http.Server
	log      zerolog.Logger
	observer ConnObserver
	closed   atomic.Bool
}

func (s *jsonServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	req := rpc.NewCodec().NewRequest(r)
	method, err := req.Method()
	if err != nil {
		s.observer.FrameError(TransportJSON)
		req.WriteError(w, http.StatusBadRequest, err)
		return
	}

	var params json.RawMessage
	if err := req.ReadRequest(&params); err != nil {
		s.observer.FrameError(TransportJSON)
		req.WriteError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.serve(r.Context(), JSONCodec{}, method, params)
	if err != nil {
		req.WriteError(w, http.StatusOK, jsonError(err))
		return
	}
	req.WriteResponse(w, json.RawMessage(resp))
}

// requestLogger tags each request with an id and logs its outcome.
func (s *jsonServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event := s.log.Debug()
		if ww.Status() >= 500 {
			event = s.log.Error()
		} else if ww.Status() >= 400 {
			event = s.log.Warn()
		}
		event.
			Str("request_id", id).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Int("bytes", ww.BytesWritten()).
			Msg("http_request")
	})
}

func (s *jsonServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.log.Info().Str("addr", s.Addr()).Msg("serving")
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) || s.closed.Load() {
		return nil
	}
	return err
}

func (s *jsonServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	// Shutdown leaves a listener that Serve never took
	_ = s.listener.Close()
	return err
}

func (s *jsonServer) Addr() string {
	return s.listener.Addr().String()
}

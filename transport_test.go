// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package msgrpc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/msgrpc/dispatch"
	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/internal/metrics"
	"github.com/luxfi/msgrpc/record"
	"github.com/luxfi/msgrpc/schema"
	"github.com/luxfi/msgrpc/service"
)

var allTransports = []string{TransportZAP, TransportGRPC, TransportJSON}

func calcSchema(t testing.TB) *schema.Schema {
	t.Helper()
	sch, err := schema.LoadFile(filepath.Join("schema", "testdata", "calc.yaml"))
	require.NoError(t, err)
	return sch
}

// calcHandlers implements add at v1 and v3 and div at v2. Only the legacy
// scope answers ping.
func calcHandlers(sch *schema.Schema) map[string]*service.Handlers {
	result := sch.Message("Result")
	common := func() *service.Handlers {
		return service.NewHandlers().
			Handle(1, "add", func(_ context.Context, args *record.Record) (any, error) {
				return args.Int("a") + args.Int("b"), nil
			}).
			Handle(2, "div", func(_ context.Context, args *record.Record) (any, error) {
				if args.Int("b") == 0 {
					return nil, errors.New("division by zero")
				}
				r := record.New(result)
				if err := r.Set("value", args.Int("a")/args.Int("b")); err != nil {
					return nil, err
				}
				return r, nil
			}).
			Handle(3, "add", func(_ context.Context, args *record.Record) (any, error) {
				return args.Int("a") + args.Int("b") + args.Int("c"), nil
			})
	}
	return map[string]*service.Handlers{
		"calc": common(),
		"legacy": common().Handle(1, "ping", func(context.Context, *record.Record) (any, error) {
			return nil, nil
		}),
	}
}

func calcApplication(t testing.TB, sch *schema.Schema, opts ...dispatch.Option) *dispatch.Application {
	t.Helper()
	opts = append([]dispatch.Option{dispatch.WithLogger(zerolog.Nop())}, opts...)
	app, err := dispatch.New(sch.Application("Gateway"), calcHandlers(sch), opts...)
	require.NoError(t, err)
	return app
}

// startServer listens on a loopback port and serves until the test ends.
func startServer(t testing.TB, transport string, d Dispatcher, opts ...ServerOption) Server {
	t.Helper()
	opts = append([]ServerOption{
		WithServerTransport(transport),
		WithServerLogger(zerolog.Nop()),
	}, opts...)
	server, err := Listen("127.0.0.1:0", opts...)
	require.NoError(t, err)
	if d != nil {
		server.Handle(d)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = server.Close()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return server
}

func dialServer(t testing.TB, transport string, server Server, opts ...DialOption) Client {
	t.Helper()
	opts = append([]DialOption{
		WithTransport(transport),
		WithDialLogger(zerolog.Nop()),
	}, opts...)
	client, err := Dial(context.Background(), server.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAvailableTransports(t *testing.T) {
	assert.Equal(t, []string{TransportGRPC, TransportJSON, TransportZAP}, AvailableTransports())
	assert.True(t, HasTransport(DefaultTransport))
	assert.False(t, HasTransport("carrier-pigeon"))

	_, err := Dial(context.Background(), "127.0.0.1:1", WithTransport("carrier-pigeon"))
	assert.ErrorContains(t, err, "unknown transport")
	_, err = Listen("127.0.0.1:0", WithServerTransport("carrier-pigeon"))
	assert.ErrorContains(t, err, "unknown transport")
}

func TestStubsOverTransports(t *testing.T) {
	for _, transport := range allTransports {
		t.Run(transport, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			sch := calcSchema(t)
			server := startServer(t, transport, calcApplication(t, sch))
			stubs := dispatch.NewClient(sch.Application("Gateway"), NewSession(dialServer(t, transport, server)))

			calc, err := stubs.Scope("calc")
			require.NoError(t, err)
			got, err := calc.Invoke(ctx, "add", 1, 2, 3)
			require.NoError(t, err)
			assert.Equal(t, int64(6), got)

			// b and c are unset
			got, err = calc.Invoke(ctx, "add", 40)
			require.NoError(t, err)
			assert.Equal(t, int64(40), got)

			res, err := calc.Invoke(ctx, "div", 10, 2)
			require.NoError(t, err)
			rec, ok := res.(*record.Record)
			require.True(t, ok, "div returns a Result record, got %T", res)
			assert.Equal(t, int64(5), rec.Int("value"))
			assert.True(t, rec.IsNull("note"))
			assert.Equal(t, int64(1), rec.Int("mode"), "mode defaults to EXACT")

			calc1, err := stubs.ScopeAt("calc", 1)
			require.NoError(t, err)
			got, err = calc1.Invoke(ctx, "add", 1, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(3), got)

			legacy, err := stubs.Scope("legacy")
			require.NoError(t, err)
			got, err = legacy.Invoke(ctx, "ping")
			require.NoError(t, err)
			assert.Nil(t, got)

			def, err := stubs.Default()
			require.NoError(t, err)
			got, err = def.Invoke(ctx, "add", 1, 1, 1)
			require.NoError(t, err)
			assert.Equal(t, int64(3), got)
		})
	}
}

func TestErrorCodesOverTransports(t *testing.T) {
	for _, transport := range allTransports {
		t.Run(transport, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			sch := calcSchema(t)
			server := startServer(t, transport, calcApplication(t, sch))
			session := NewSession(dialServer(t, transport, server))

			cases := []struct {
				method string
				args   []any
				code   errdefs.Code
				target error
			}{
				{"add:nope", []any{1}, errdefs.CodeRouting, errdefs.ErrRouting},
				{"add:calc:9", []any{1}, errdefs.CodeRouting, errdefs.ErrRouting},
				{"add:calc:3", []any{}, errdefs.CodeShape, errdefs.ErrShape},
				{"add:calc:3", []any{"one"}, errdefs.CodeShape, errdefs.ErrShape},
				{"ping:calc:3", []any{}, errdefs.CodeNotImplemented, errdefs.ErrNotImplemented},
				{"div:calc:2", []any{1, 0}, errdefs.CodeRemote, errdefs.ErrRemote},
			}
			for _, tc := range cases {
				_, err := session.CallApply(ctx, tc.method, tc.args)
				require.Error(t, err, tc.method)

				var remote *errdefs.RemoteError
				require.True(t, errors.As(err, &remote), "%s: %v", tc.method, err)
				assert.Equal(t, tc.code, remote.Code, tc.method)
				assert.ErrorIs(t, err, tc.target, tc.method)
			}
		})
	}
}

func TestRawHandlersOverTransports(t *testing.T) {
	for _, transport := range allTransports {
		t.Run(transport, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			server := startServer(t, transport, nil)
			require.NoError(t, server.RegisterRaw("echo", func(_ context.Context, payload []byte) ([]byte, error) {
				return payload, nil
			}))
			client := dialServer(t, transport, server)

			// valid JSON and valid msgpack alike
			payload := []byte(`["hello"]`)
			resp, err := client.CallRaw(ctx, "echo", payload)
			require.NoError(t, err)
			assert.Equal(t, string(payload), string(resp))

			// without a dispatcher every other method is unroutable
			_, err = client.CallRaw(ctx, "add", payload)
			assert.True(t, errdefs.IsRouting(err), "%v", err)
		})
	}
}

func TestConcurrentCallsOverTransports(t *testing.T) {
	for _, transport := range allTransports {
		t.Run(transport, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			sch := calcSchema(t)
			server := startServer(t, transport, calcApplication(t, sch))
			session := NewSession(dialServer(t, transport, server))

			errs := make(chan error, 16)
			for i := 0; i < 16; i++ {
				go func(n int64) {
					got, err := session.CallApply(ctx, "add:calc:1", []any{n, n})
					if err != nil {
						errs <- err
						return
					}
					sum, err := record.DecodeValue(schema.Primitive(schema.KindInt64), got)
					if err == nil && sum != n*2 {
						err = fmt.Errorf("add(%d, %d) = %v", n, n, sum)
					}
					errs <- err
				}(int64(i))
			}
			for i := 0; i < 16; i++ {
				assert.NoError(t, <-errs)
			}
		})
	}
}

func TestMetricsObserveTransportsAndDispatch(t *testing.T) {
	for _, transport := range allTransports {
		t.Run(transport, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			reg := prometheus.NewRegistry()
			collector := metrics.NewWithRegistry(reg)

			sch := calcSchema(t)
			app := calcApplication(t, sch, dispatch.WithObserver(collector))
			server := startServer(t, transport, app, WithConnObserver(collector))
			session := NewSession(dialServer(t, transport, server))

			_, err := session.CallApply(ctx, "add:legacy:1", []any{1, 2})
			require.NoError(t, err)
			_, err = session.CallApply(ctx, "ping:calc:1", []any{})
			require.Error(t, err)

			assert.Equal(t, 1.0, testutil.ToFloat64(collector.CallsTotal.WithLabelValues("legacy", "add", metrics.CodeOK)))
			assert.Equal(t, 1.0, testutil.ToFloat64(collector.CallsTotal.WithLabelValues("calc", "ping", "NOT_IMPLEMENTED")))
			assert.Equal(t, 0.0, testutil.ToFloat64(collector.CallsInFlight))

			if transport != TransportJSON {
				// HTTP connections are not observed
				assert.GreaterOrEqual(t, testutil.ToFloat64(collector.ConnectionsTotal.WithLabelValues(transport)), 1.0)
			}
		})
	}
}

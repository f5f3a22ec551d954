// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package msgrpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	rpc "github.com/gorilla/rpc/v2/json2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/internal/metrics"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{io.EOF, true},
		{errors.New("unexpected EOF"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("write: broken pipe"), true},
		{errors.New("received status code: 500"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), "%v", tt.err)
	}
}

func TestJSONErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code rpc.ErrorCode
	}{
		{errdefs.Shapef("add", "too short"), rpc.E_BAD_PARAMS},
		{&errdefs.RoutingError{Method: "add:x"}, rpc.E_NO_METHOD},
		{&errdefs.NotImplementedError{Service: "Calc", Version: 1, Function: "ping"}, rpc.E_INTERNAL},
		{errors.New("boom"), rpc.E_SERVER},
	}
	for _, tt := range tests {
		jerr := jsonError(tt.err)
		assert.Equal(t, tt.code, jerr.Code)
		assert.Equal(t, string(errdefs.CodeOf(tt.err)), jerr.Data)

		back := remoteFromJSON(jerr)
		assert.Equal(t, errdefs.CodeOf(tt.err), errdefs.CodeOf(back))
	}

	// foreign servers send no data member
	assert.True(t, errdefs.IsShape(remoteFromJSON(&rpc.Error{Code: rpc.E_INVALID_REQ, Message: "bad"})))
	assert.True(t, errdefs.IsRouting(remoteFromJSON(&rpc.Error{Code: rpc.E_NO_METHOD, Message: "nope"})))
	assert.ErrorIs(t, remoteFromJSON(&rpc.Error{Code: -32001, Message: "custom"}), errdefs.ErrRemote)
}

func TestSendJSONRequest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sch := calcSchema(t)
	server := startServer(t, TransportJSON, calcApplication(t, sch))
	uri, err := url.Parse("http://" + server.Addr() + "/rpc")
	require.NoError(t, err)

	var sum int64
	require.NoError(t, SendJSONRequest(ctx, uri, "add:calc:3", []any{1, 2, 3}, &sum, WithHeader("X-Request-Id", "req-1")))
	assert.Equal(t, int64(6), sum)

	// a void result leaves the reply untouched
	reply := "untouched"
	require.NoError(t, SendJSONRequest(ctx, uri, "ping:legacy", []any{}, &reply))
	assert.Equal(t, "untouched", reply)

	err = SendJSONRequest(ctx, uri, "add:calc:3", []any{}, &sum)
	assert.True(t, errdefs.IsShape(err), "%v", err)
}

func TestJSONServerHTTP(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reg := prometheus.NewRegistry()
	collector := metrics.NewWithRegistry(reg)
	server := startServer(t, TransportJSON, calcApplication(t, calcSchema(t)),
		WithHTTPPath("/v1/rpc"),
		WithConnObserver(collector),
		WithMetrics("/metrics", reg),
	)
	base := "http://" + server.Addr()

	post := func(path, body string) *http.Response {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = CleanlyCloseBody(resp.Body) })
		return resp
	}

	resp := post("/v1/rpc", `{"jsonrpc":"2.0","id":1,"method":"add:calc:1","params":[20,22]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"result":42`)

	resp = post("/v1/rpc", `{"jsonrpc":"2.0","id":2,"method":"add:calc:1","params":{"a":1}}`)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"SHAPE"`, "params must be positional")

	resp = post("/rpc", `{"jsonrpc":"2.0","id":3,"method":"add","params":[1]}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "only the configured path serves calls")

	// unparsable bodies count as frame errors
	post("/v1/rpc", `{"jsonrpc":"2.0","id":4,`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/metrics", nil)
	require.NoError(t, err)
	mresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer CleanlyCloseBody(mresp.Body)
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
	metricsBody, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), "msgrpc_frame_errors_total")
}

func TestJSONDialAddress(t *testing.T) {
	c, err := Dial(context.Background(), "localhost:9650", WithTransport(TransportJSON), WithDialHeader("Authorization", "Bearer t"))
	require.NoError(t, err)
	jc := c.(*jsonClient)
	assert.Equal(t, "http://localhost:9650/rpc", jc.uri.String())
	assert.Len(t, jc.options, 2, "one header and the request logger")

	c, err = Dial(context.Background(), "https://node.example.com/ext/rpc", WithTransport(TransportJSON))
	require.NoError(t, err)
	assert.Equal(t, "/ext/rpc", c.(*jsonClient).uri.Path)
	assert.NoError(t, c.Close())
}

func TestJSONLargeIntegersKeepPrecision(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sch := calcSchema(t)
	server := startServer(t, TransportJSON, calcApplication(t, sch))
	session := NewSession(dialServer(t, TransportJSON, server))

	const big = int64(1) << 60
	got, err := session.CallApply(ctx, "add:calc:1", []any{big, int64(1)})
	require.NoError(t, err)
	assert.Equal(t, json.Number("1152921504606846977"), got)
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package msgrpc

import (
	"context"
	"sync"

	"github.com/luxfi/msgrpc/errdefs"
)

// Session adapts a Client to the call capability used by service stubs.
type Session struct {
	client Client
}

func NewSession(c Client) *Session {
	return &Session{client: c}
}

// CallApply sends method with the positional argument array and returns
// the decoded wire result.
func (s *Session) CallApply(ctx context.Context, method string, args []any) (any, error) {
	var reply any
	if err := s.client.Call(ctx, method, args, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// Close closes the underlying client.
func (s *Session) Close() error { return s.client.Close() }

// mux is the request path shared by every server transport: raw handlers
// first, then the dispatcher.
type mux struct {
	mu         sync.RWMutex
	raw        map[string]RawHandler
	dispatcher Dispatcher
}

func newMux() *mux {
	return &mux{raw: make(map[string]RawHandler)}
}

func (m *mux) Handle(d Dispatcher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatcher = d
}

func (m *mux) RegisterRaw(method string, handler RawHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[method] = handler
	return nil
}

func (m *mux) route(method string) (RawHandler, Dispatcher) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.raw[method], m.dispatcher
}

// serve decodes payload with codec, dispatches and encodes the result.
func (m *mux) serve(ctx context.Context, codec Codec, method string, payload []byte) ([]byte, error) {
	raw, d := m.route(method)
	if raw != nil {
		return raw(ctx, payload)
	}
	if d == nil {
		return nil, &errdefs.RoutingError{Method: method, Reason: "unknown method"}
	}

	var args any
	if len(payload) > 0 {
		if err := codec.Decode(payload, &args); err != nil {
			return nil, errdefs.Shapef(method, "undecodable payload: %v", err)
		}
	} else {
		args = []any{}
	}
	result, err := d.Dispatch(ctx, method, args)
	if err != nil {
		return nil, err
	}
	return codec.Encode(result)
}

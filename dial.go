// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package msgrpc

import (
	"context"
	"fmt"

	"github.com/luxfi/msgrpc/internal/logging"
)

// Dial connects to an RPC server using the default transport (ZAP).
// Use WithTransport for transport selection.
func Dial(ctx context.Context, addr string, opts ...DialOption) (Client, error) {
	o := &dialOptions{
		transport: DefaultTransport,
		codec:     defaultCodec,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.codec == nil {
		o.codec = defaultCodec
	}
	if o.log == nil {
		l := logging.Component("client")
		o.log = &l
	}

	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return t.dial(ctx, addr, o)
}

// Listen creates an RPC server listener using the default transport (ZAP).
func Listen(addr string, opts ...ServerOption) (Server, error) {
	o := &serverOptions{
		transport: DefaultTransport,
		codec:     defaultCodec,
		path:      "/rpc",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.codec == nil {
		o.codec = defaultCodec
	}
	if o.log == nil {
		l := logging.Component("server")
		o.log = &l
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}

	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("unknown transport: %s", o.transport)
	}
	return t.listen(addr, o)
}

type nopObserver struct{}

func (nopObserver) ConnOpened(string) {}
func (nopObserver) ConnClosed(string) {}
func (nopObserver) FrameError(string) {}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"
	"fmt"

	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/record"
	"github.com/luxfi/msgrpc/schema"
)

// Endpoint serves the functions of one service version. It is immutable
// once resolved and safe for concurrent use.
type Endpoint struct {
	chain    *Chain
	version  *schema.Version
	bindings map[string]*Binding
}

func (e *Endpoint) Service() *schema.Service { return e.chain.service }

// Version returns the version number this endpoint serves.
func (e *Endpoint) Version() int { return e.version.Number() }

// String renders the endpoint as service:version.
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.chain.service.Name(), e.version.Number())
}

// Binding returns the binding of the named function, or nil.
func (e *Endpoint) Binding(name string) *Binding { return e.bindings[name] }

// Bindings returns every binding ordered by function name.
func (e *Endpoint) Bindings() []*Binding {
	out := make([]*Binding, 0, len(e.bindings))
	for _, fn := range e.version.Functions() {
		out = append(out, e.bindings[fn.Name])
	}
	return out
}

// Earlier returns the endpoint of an earlier version w of the same chain.
func (e *Endpoint) Earlier(w int) (*Endpoint, error) {
	if w < 1 || w >= e.Version() {
		return nil, fmt.Errorf("%s: version %d is not earlier", e, w)
	}
	return e.chain.Endpoint(w), nil
}

// Invoke runs the named function with an argument record built for it.
// A delegated function receives the same record instance.
func (e *Endpoint) Invoke(ctx context.Context, name string, args *record.Record) (any, error) {
	b, ok := e.bindings[name]
	if !ok {
		return nil, &errdefs.RoutingError{Method: name, Reason: "unknown method at " + e.String()}
	}
	if args == nil || args.Message() != b.Function.Args {
		return nil, errdefs.Shapef(name, "argument record is not built for %s.%s", e, name)
	}
	if b.Kind == Unimplemented {
		return nil, &errdefs.NotImplementedError{
			Service:  e.chain.service.Name(),
			Version:  e.Version(),
			Function: name,
		}
	}
	return b.handler(ctx, args)
}

// Call is Invoke with positional parameters.
func (e *Endpoint) Call(ctx context.Context, name string, params ...any) (any, error) {
	b, ok := e.bindings[name]
	if !ok {
		return nil, &errdefs.RoutingError{Method: name, Reason: "unknown method at " + e.String()}
	}
	args, err := NewArgs(b.Function, params...)
	if err != nil {
		return nil, err
	}
	return e.Invoke(ctx, name, args)
}

// Dispatch serves a wire call: payload is the positional argument array
// and the result is the wire form of the return value.
func (e *Endpoint) Dispatch(ctx context.Context, name string, payload any) (any, error) {
	b, ok := e.bindings[name]
	if !ok {
		return nil, &errdefs.RoutingError{Method: name, Reason: "unknown method at " + e.String()}
	}
	args, err := record.Decode(b.Function.Args, payload)
	if err != nil {
		return nil, err
	}
	result, err := e.Invoke(ctx, name, args)
	if err != nil {
		return nil, err
	}
	wire, err := record.Wire(b.Function.Return, result)
	if err != nil {
		return nil, errdefs.Shapef(name, "return value: %v", err)
	}
	return wire, nil
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/record"
	"github.com/luxfi/msgrpc/schema"
)

// Caller sends one call and returns the wire result. args is the
// positional argument array of the call.
type Caller interface {
	CallApply(ctx context.Context, method string, args []any) (any, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, method string, args []any) (any, error)

func (f CallerFunc) CallApply(ctx context.Context, method string, args []any) (any, error) {
	return f(ctx, method, args)
}

// Stub is the client view of a service at one version under one scope.
// Stubs hold no state beyond the shared Caller.
type Stub struct {
	caller  Caller
	service *schema.Service
	scope   string
	fns     *schema.Version
	bare    bool
}

// NewStub returns a stub for svc. Calls are sent as "fn:scope:version", or
// "fn:version" when scope is empty. Version 0 builds an unversioned stub of
// the latest version.
func NewStub(caller Caller, svc *schema.Service, scope string, version int) (*Stub, error) {
	if version == 0 {
		if scope != "" {
			return nil, fmt.Errorf("unversioned stub of %s cannot carry scope %q", svc.Name(), scope)
		}
		return Unversioned(caller, svc, svc.Latest().Number())
	}
	fns := svc.Version(version)
	if fns == nil {
		return nil, fmt.Errorf("service %s has no version %d", svc.Name(), version)
	}
	return &Stub{caller: caller, service: svc, scope: scope, fns: fns}, nil
}

// Unversioned returns a stub offering the functions of svc at version but
// sending bare method names, which the server routes to its default scope.
func Unversioned(caller Caller, svc *schema.Service, version int) (*Stub, error) {
	fns := svc.Version(version)
	if fns == nil {
		return nil, fmt.Errorf("service %s has no version %d", svc.Name(), version)
	}
	return &Stub{caller: caller, service: svc, fns: fns, bare: true}, nil
}

func (s *Stub) Service() *schema.Service { return s.service }
func (s *Stub) Scope() string            { return s.scope }

// Version returns the version whose functions the stub offers.
func (s *Stub) Version() int { return s.fns.Number() }

// Unversioned reports whether calls are sent without a suffix.
func (s *Stub) Unversioned() bool { return s.bare }

// At returns a stub for an earlier version w sharing the same Caller. An
// unversioned stub may also address its own version explicitly.
func (s *Stub) At(w int) (*Stub, error) {
	limit := s.fns.Number()
	if !s.bare {
		limit--
	}
	if w < 1 || w > limit {
		return nil, fmt.Errorf("%s: version %d is not earlier than %d", s.service.Name(), w, s.fns.Number())
	}
	return &Stub{
		caller:  s.caller,
		service: s.service,
		scope:   s.scope,
		fns:     s.service.Version(w),
	}, nil
}

// Function returns the named function at the stub's version, or nil.
func (s *Stub) Function(name string) *schema.Function { return s.fns.Function(name) }

// MethodName returns the wire method name for fn.
func (s *Stub) MethodName(fn string) string {
	switch {
	case s.bare:
		return fn
	case s.scope == "":
		return fn + ":" + strconv.Itoa(s.fns.Number())
	default:
		return fn + ":" + s.scope + ":" + strconv.Itoa(s.fns.Number())
	}
}

// NewArgs returns a default argument record for fn.
func (s *Stub) NewArgs(fn string) (*record.Record, error) {
	f, err := s.function(fn)
	if err != nil {
		return nil, err
	}
	return record.New(f.Args), nil
}

// Call sends fn with an argument record and returns the decoded result.
func (s *Stub) Call(ctx context.Context, fn string, args *record.Record) (any, error) {
	f, err := s.function(fn)
	if err != nil {
		return nil, err
	}
	if args == nil || args.Message() != f.Args {
		return nil, errdefs.Shapef(fn, "argument record is not built for %s", s.MethodName(fn))
	}

	res, err := s.caller.CallApply(ctx, s.MethodName(fn), record.Encode(args))
	if err != nil {
		return nil, err
	}
	out, err := record.DecodeValue(f.Return, res)
	if err != nil {
		return nil, errdefs.Shapef(fn, "result: %v", err)
	}
	return out, nil
}

// Invoke is Call with positional parameters.
func (s *Stub) Invoke(ctx context.Context, fn string, params ...any) (any, error) {
	f, err := s.function(fn)
	if err != nil {
		return nil, err
	}
	args, err := NewArgs(f, params...)
	if err != nil {
		return nil, err
	}
	return s.Call(ctx, fn, args)
}

func (s *Stub) function(name string) (*schema.Function, error) {
	f := s.fns.Function(name)
	if f == nil {
		return nil, &errdefs.RoutingError{Method: name, Scope: s.scope, Reason: fmt.Sprintf("%s:%d has no such function", s.service.Name(), s.fns.Number())}
	}
	return f, nil
}

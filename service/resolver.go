// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"fmt"
	"sort"

	"github.com/luxfi/msgrpc/schema"
)

// BindingKind tags how a function is served at one version.
type BindingKind int

const (
	Unimplemented BindingKind = iota
	Implemented
	Delegated
)

func (k BindingKind) String() string {
	switch k {
	case Implemented:
		return "implemented"
	case Delegated:
		return "delegated"
	default:
		return "unimplemented"
	}
}

// Binding is the resolved implementation of a function at a version.
// Target is the version whose handler runs: the binding's own version when
// Implemented, an earlier one when Delegated and zero when Unimplemented.
type Binding struct {
	Kind     BindingKind
	Function *schema.Function
	Target   int

	handler Handler
}

// Chain holds the endpoints of versions 1..N of one service.
type Chain struct {
	service   *schema.Service
	endpoints []*Endpoint
}

// Resolve binds handlers to versions 1..upTo of svc. Handlers registered
// above upTo are ignored; handlers for a version or function the service
// does not have are an error.
func Resolve(svc *schema.Service, upTo int, handlers *Handlers) (*Chain, error) {
	if upTo < 1 || upTo > len(svc.Versions()) {
		return nil, fmt.Errorf("service %s has no version %d", svc.Name(), upTo)
	}
	if err := checkHandlers(svc, handlers); err != nil {
		return nil, err
	}

	c := &Chain{service: svc}
	for _, v := range svc.UpTo(upTo) {
		ep := &Endpoint{
			chain:    c,
			version:  v,
			bindings: make(map[string]*Binding, len(v.Functions())),
		}
		for _, fn := range v.Functions() {
			ep.bindings[fn.Name] = c.bind(v.Number(), fn, handlers)
		}
		c.endpoints = append(c.endpoints, ep)
	}
	return c, nil
}

// bind resolves fn at version n. Endpoints below n are already built, so a
// delegated binding copies the flattened binding of an earlier version: n-1
// for an inherited function, the super version for a function whose
// argument record extends an earlier one. The extended record is handed to
// the earlier handler unchanged.
func (c *Chain) bind(n int, fn *schema.Function, handlers *Handlers) *Binding {
	if h, ok := handlers.lookup(n, fn.Name); ok {
		return &Binding{Kind: Implemented, Function: fn, Target: n, handler: h}
	}

	var from int
	switch {
	case fn.Inherited():
		from = n - 1
	case fn.SuperVersion > 0 && fn.SuperVersion < n:
		from = fn.SuperVersion
	default:
		return &Binding{Kind: Unimplemented, Function: fn}
	}

	prev := c.endpoints[from-1].bindings[fn.Name]
	if prev == nil || prev.Kind == Unimplemented {
		return &Binding{Kind: Unimplemented, Function: fn}
	}
	return &Binding{Kind: Delegated, Function: fn, Target: prev.Target, handler: prev.handler}
}

func checkHandlers(svc *schema.Service, handlers *Handlers) error {
	if handlers == nil {
		return nil
	}
	versions := make([]int, 0, len(handlers.byVersion))
	for n := range handlers.byVersion {
		versions = append(versions, n)
	}
	sort.Ints(versions)

	for _, n := range versions {
		v := svc.Version(n)
		if v == nil {
			return fmt.Errorf("handler registered for %s:%d: no such version", svc.Name(), n)
		}
		for name := range handlers.byVersion[n] {
			if v.Function(name) == nil {
				return fmt.Errorf("handler registered for %s:%d.%s: no such function", svc.Name(), n, name)
			}
		}
	}
	return nil
}

func (c *Chain) Service() *schema.Service { return c.service }

// Endpoints returns the endpoints ordered from version 1.
func (c *Chain) Endpoints() []*Endpoint { return c.endpoints }

// Endpoint returns the endpoint of version n, or nil.
func (c *Chain) Endpoint(n int) *Endpoint {
	if n < 1 || n > len(c.endpoints) {
		return nil
	}
	return c.endpoints[n-1]
}

// Latest returns the endpoint of the highest resolved version.
func (c *Chain) Latest() *Endpoint { return c.endpoints[len(c.endpoints)-1] }

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

import (
	"errors"
	"fmt"
	"sort"

	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/service"
)

// ErrDuplicateRoute is returned when two registrations claim one key for
// different endpoints. It also matches errdefs.ErrShape.
var ErrDuplicateRoute = errors.New("duplicate route")

// Route is one dispatch table entry.
type Route struct {
	Key      string
	Scope    string
	Endpoint *service.Endpoint
}

// Table maps routing keys ("scope:version", "scope", "version", "") to
// endpoints. It is built once and read-only afterwards.
type Table struct {
	routes map[string]*Route
}

func NewTable() *Table {
	return &Table{routes: make(map[string]*Route)}
}

// Register adds key. Registering a key again for the same endpoint is a
// no-op; a different endpoint is rejected.
func (t *Table) Register(key, scope string, ep *service.Endpoint) error {
	if prev, ok := t.routes[key]; ok {
		if prev.Endpoint == ep {
			return nil
		}
		return &DuplicateRouteError{Key: key, Existing: prev, Scope: scope, Endpoint: ep}
	}
	t.routes[key] = &Route{Key: key, Scope: scope, Endpoint: ep}
	return nil
}

// Lookup returns the route registered under key.
func (t *Table) Lookup(key string) (*Route, bool) {
	r, ok := t.routes[key]
	return r, ok
}

// Routes returns every entry ordered by key.
func (t *Table) Routes() []*Route {
	out := make([]*Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (t *Table) Len() int { return len(t.routes) }

// DuplicateRouteError reports a key claimed by two endpoints.
type DuplicateRouteError struct {
	Key      string
	Existing *Route
	Scope    string
	Endpoint *service.Endpoint
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route %q: scope %q (%s) and scope %q (%s)",
		e.Key, e.Existing.Scope, e.Existing.Endpoint, e.Scope, e.Endpoint)
}

func (e *DuplicateRouteError) Unwrap() []error {
	return []error{ErrDuplicateRoute, errdefs.ErrShape}
}

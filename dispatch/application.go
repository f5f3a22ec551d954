// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/internal/logging"
	"github.com/luxfi/msgrpc/schema"
	"github.com/luxfi/msgrpc/service"
)

// Observer receives call outcomes. *metrics.Collector implements it. scope
// and method are empty unless the call reached a registered scope and a
// function known there, so peers cannot mint new label values.
type Observer interface {
	CallStarted()
	CallFinished(scope, method string, err error, elapsed time.Duration)
}

// Option configures an Application.
type Option func(*options)

type options struct {
	log      zerolog.Logger
	observer Observer
}

// WithLogger sets the logger used for routing and handler failures.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithObserver reports every dispatched call to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Application is the server side of a schema application: one resolved
// version chain per scope and the table routing into them.
type Application struct {
	schema *schema.Application
	table  *Table
	chains map[string]*service.Chain
	log    zerolog.Logger
	obs    Observer
}

// New resolves every scope of app with the handlers registered under the
// scope's name and builds the dispatch table. Scopes without handlers are
// served with every function unimplemented.
func New(app *schema.Application, handlers map[string]*service.Handlers, opts ...Option) (*Application, error) {
	o := &options{log: logging.Component("dispatch")}
	for _, opt := range opts {
		opt(o)
	}

	for name := range handlers {
		if app.Scope(name) == nil {
			return nil, fmt.Errorf("application %s has no scope %q", app.Name(), name)
		}
	}

	a := &Application{
		schema: app,
		table:  NewTable(),
		chains: make(map[string]*service.Chain, len(app.Scopes())),
		log:    o.log.With().Str("application", app.Name()).Logger(),
		obs:    o.observer,
	}
	for _, sc := range app.Scopes() {
		chain, err := service.Resolve(sc.Service, sc.Version, handlers[sc.Name])
		if err != nil {
			return nil, fmt.Errorf("scope %q: %w", sc.Name, err)
		}
		a.chains[sc.Name] = chain
		if err := a.register(sc, chain); err != nil {
			return nil, err
		}
	}
	a.log.Debug().Int("routes", a.table.Len()).Msg("dispatch table built")
	return a, nil
}

func (a *Application) register(sc *schema.Scope, chain *service.Chain) error {
	for _, ep := range chain.Endpoints() {
		v := strconv.Itoa(ep.Version())
		if err := a.table.Register(sc.Name+":"+v, sc.Name, ep); err != nil {
			return err
		}
		if sc.Default {
			if err := a.table.Register(v, sc.Name, ep); err != nil {
				return err
			}
		}
	}
	if err := a.table.Register(sc.Name, sc.Name, chain.Latest()); err != nil {
		return err
	}
	if sc.Default {
		return a.table.Register("", sc.Name, chain.Latest())
	}
	return nil
}

func (a *Application) Name() string { return a.schema.Name() }

// Schema returns the application descriptor the table was built from.
func (a *Application) Schema() *schema.Application { return a.schema }

// Routes returns the dispatch table ordered by key.
func (a *Application) Routes() []*Route { return a.table.Routes() }

// Endpoint returns the endpoint of scope at version, or nil.
func (a *Application) Endpoint(scope string, version int) *service.Endpoint {
	chain, ok := a.chains[scope]
	if !ok {
		return nil
	}
	return chain.Endpoint(version)
}

// Route resolves method to an endpoint and the bare function name.
func (a *Application) Route(method string) (*Route, string, error) {
	name, key := method, ""
	if pos := strings.IndexByte(method, ':'); pos >= 0 {
		name, key = method[:pos], method[pos+1:]
	}
	r, ok := a.table.Lookup(key)
	if !ok {
		reason := "unknown scope"
		if key == "" {
			reason = "no default scope"
		}
		return nil, name, &errdefs.RoutingError{Method: method, Scope: key, Reason: reason}
	}
	return r, name, nil
}

// Dispatch routes method and serves it with the positional argument
// payload. The result is in wire form.
func (a *Application) Dispatch(ctx context.Context, method string, payload any) (any, error) {
	start := time.Now()
	if a.obs != nil {
		a.obs.CallStarted()
	}

	scope, fn := "", ""
	r, name, err := a.Route(method)
	var result any
	if err == nil {
		scope = r.Scope
		if r.Endpoint.Binding(name) != nil {
			fn = name
		}
		result, err = r.Endpoint.Dispatch(ctx, name, payload)
	}

	if a.obs != nil {
		a.obs.CallFinished(scope, fn, err, time.Since(start))
	}
	a.logCall(method, r, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (a *Application) logCall(method string, r *Route, err error, elapsed time.Duration) {
	var ev *zerolog.Event
	switch {
	case err == nil:
		ev = a.log.Debug()
	case errdefs.IsRouting(err), errdefs.IsShape(err), errdefs.IsNotImplemented(err):
		ev = a.log.Warn().Err(err)
	default:
		ev = a.log.Error().Err(err)
	}
	ev = ev.Str("method", method).Dur("duration", elapsed)
	if r != nil {
		ev = ev.Str("scope", r.Scope).Stringer("endpoint", r.Endpoint)
	}
	ev.Msg("dispatch")
}

// Scopes returns the scope names ordered by name.
func (a *Application) Scopes() []string {
	out := make([]string, 0, len(a.chains))
	for name := range a.chains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

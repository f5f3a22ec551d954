// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dispatch

import (
	"fmt"

	"github.com/luxfi/msgrpc/schema"
	"github.com/luxfi/msgrpc/service"
)

// Client is the caller side of an Application: it hands out stubs whose
// method names route to the matching scope on the server.
type Client struct {
	schema *schema.Application
	caller service.Caller
}

func NewClient(app *schema.Application, caller service.Caller) *Client {
	return &Client{schema: app, caller: caller}
}

// Scope returns a stub for the named scope at its configured version.
func (c *Client) Scope(name string) (*service.Stub, error) {
	sc := c.schema.Scope(name)
	if sc == nil {
		return nil, fmt.Errorf("application %s has no scope %q", c.schema.Name(), name)
	}
	return service.NewStub(c.caller, sc.Service, sc.Name, sc.Version)
}

// ScopeAt returns a stub for the named scope at an earlier version w.
func (c *Client) ScopeAt(name string, w int) (*service.Stub, error) {
	stub, err := c.Scope(name)
	if err != nil {
		return nil, err
	}
	return stub.At(w)
}

// Default returns an unversioned stub at the default scope's version. Its
// calls carry no suffix and reach the server's default scope.
func (c *Client) Default() (*service.Stub, error) {
	sc := c.schema.DefaultScope()
	return service.Unversioned(c.caller, sc.Service, sc.Version)
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"context"

	"github.com/luxfi/msgrpc/record"
)

// Handler implements one function. args is the decoded argument record;
// the result is converted to the function's return type by the caller.
type Handler func(ctx context.Context, args *record.Record) (any, error)

// Handlers collects implementations by version and function name.
type Handlers struct {
	byVersion map[int]map[string]Handler
}

func NewHandlers() *Handlers {
	return &Handlers{byVersion: make(map[int]map[string]Handler)}
}

// Handle registers h for fn at version. Registering an inherited function
// overrides the implementation from that version on.
func (h *Handlers) Handle(version int, fn string, handler Handler) *Handlers {
	fns, ok := h.byVersion[version]
	if !ok {
		fns = make(map[string]Handler)
		h.byVersion[version] = fns
	}
	fns[fn] = handler
	return h
}

func (h *Handlers) lookup(version int, fn string) (Handler, bool) {
	if h == nil {
		return nil, false
	}
	handler, ok := h.byVersion[version][fn]
	return handler, ok && handler != nil
}

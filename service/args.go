// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package service

import (
	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/record"
	"github.com/luxfi/msgrpc/schema"
)

// Arity returns the positional parameter counts fn accepts: every argument,
// and the required prefix when the tail is optional. short equals full
// when there is no optional tail.
func Arity(fn *schema.Function) (full, short int) {
	fields := fn.Args.Fields()
	full = len(fields)
	short = full
	if fn.MaxRequiredID() < fn.MaxID() {
		short = 0
		for _, f := range fields {
			if f.ID <= fn.MaxRequiredID() {
				short++
			}
		}
	}
	return full, short
}

// NewArgs builds the argument record of fn from positional parameters in
// declaration order. Omitted optional parameters keep their defaults.
func NewArgs(fn *schema.Function, params ...any) (*record.Record, error) {
	full, short := Arity(fn)
	if len(params) != full && len(params) != short {
		if full == short {
			return nil, errdefs.Shapef(fn.Name, "takes %d arguments, got %d", full, len(params))
		}
		return nil, errdefs.Shapef(fn.Name, "takes %d or %d arguments, got %d", short, full, len(params))
	}

	args := record.New(fn.Args)
	for i, p := range params {
		if err := args.SetID(fn.Args.Fields()[i].ID, p); err != nil {
			return nil, err
		}
	}
	return args, nil
}

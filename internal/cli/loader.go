// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"fmt"
	"strings"

	"github.com/luxfi/msgrpc/schema"
)

// Error codes reported in CLI output.
const (
	ErrCodeSchema = "SCHEMA"
	ErrCodeConfig = "CONFIG"
	ErrCodeApp    = "APPLICATION"
	ErrCodeDial   = "DIAL"
	ErrCodeArgs   = "ARGS"
)

// selectApplication returns the named application. With no name the only
// declared application is used, or the implicit application of the only
// service.
func selectApplication(sch *schema.Schema, name string) (*schema.Application, error) {
	if name != "" {
		app := sch.Application(name)
		if app == nil {
			return nil, fmt.Errorf("no application or service named %q", name)
		}
		return app, nil
	}

	apps := sch.Applications()
	switch {
	case len(apps) == 1:
		return apps[0], nil
	case len(apps) == 0 && len(sch.Services()) == 1:
		return schema.ServiceApplication(sch.Services()[0]), nil
	}

	var names []string
	for _, a := range apps {
		names = append(names, a.Name())
	}
	if len(apps) == 0 {
		for _, s := range sch.Services() {
			names = append(names, s.Name())
		}
	}
	return nil, fmt.Errorf("choose an application with --app: %s", strings.Join(names, ", "))
}

// signature renders a function as "add(a long, [b long]) long". Optional
// arguments are bracketed.
func signature(fn *schema.Function) string {
	var b strings.Builder
	b.WriteString(fn.Name)
	b.WriteByte('(')
	for i, f := range fn.Args.Fields() {
		if i > 0 {
			b.WriteString(", ")
		}
		if f.Required {
			fmt.Fprintf(&b, "%s %s", f.Name, f.Type)
		} else {
			fmt.Fprintf(&b, "[%s %s]", f.Name, f.Type)
		}
	}
	b.WriteByte(')')
	if !fn.Return.IsVoid() {
		b.WriteByte(' ')
		b.WriteString(fn.Return.String())
	}
	return b.String()
}

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luxfi/msgrpc/dispatch"
	"github.com/luxfi/msgrpc/schema"
)

// RoutesResult is the dispatch table of one application.
type RoutesResult struct {
	Application  string      `json:"application"`
	DefaultScope string      `json:"default_scope"`
	Routes       []RouteInfo `json:"routes"`
}

type RouteInfo struct {
	Key      string `json:"key"`
	Scope    string `json:"scope"`
	Endpoint string `json:"endpoint"`
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	var appName string

	cmd := &cobra.Command{
		Use:   "routes <schema.yaml>",
		Short: "Print the dispatch table of an application",
		Long: `Print every routing key of an application and the service version
it reaches. A call "f:KEY" is served by the endpoint listed for KEY; a call
without a suffix uses the "" key of the default scope.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoutes(rootOpts, args[0], appName, cmd)
		},
	}
	cmd.Flags().StringVar(&appName, "app", "", "application or service name")
	return cmd
}

func runRoutes(opts *RootOptions, path, appName string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	sch, err := schema.LoadFile(path)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeSchema, "invalid schema", err)
	}
	a, err := selectApplication(sch, appName)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeApp, "no application", err)
	}
	app, err := dispatch.New(a, nil, dispatch.WithLogger(zerolog.Nop()))
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeSchema, "application "+a.Name(), err)
	}

	res := RoutesResult{Application: a.Name(), DefaultScope: a.DefaultScope().Name}
	for _, r := range app.Routes() {
		res.Routes = append(res.Routes, RouteInfo{Key: r.Key, Scope: r.Scope, Endpoint: r.Endpoint.String()})
	}

	if f.Format == "json" {
		return f.JSON(res)
	}
	writeRoutes(f.Writer, res)
	return nil
}

func writeRoutes(w io.Writer, res RoutesResult) {
	fmt.Fprintf(w, "application %s (default scope %s)\n", res.Application, strconv.Quote(res.DefaultScope))

	display := func(key string) string {
		if key == "" || key[0] == ':' {
			return strconv.Quote(key)
		}
		return key
	}
	keyWidth, scopeWidth := 0, 0
	for _, r := range res.Routes {
		keyWidth = max(keyWidth, len(display(r.Key)))
		scopeWidth = max(scopeWidth, len(display(r.Scope)))
	}
	for _, r := range res.Routes {
		fmt.Fprintf(w, "  %-*s  %-*s  %s\n", keyWidth, display(r.Key), scopeWidth, display(r.Scope), r.Endpoint)
	}
}

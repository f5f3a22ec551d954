// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/luxfi/msgrpc/dispatch"
	"github.com/luxfi/msgrpc/schema"
)

// CheckResult summarizes a valid schema.
type CheckResult struct {
	Namespace    string        `json:"namespace"`
	Enums        []string      `json:"enums"`
	Messages     []string      `json:"messages"`
	Services     []ServiceInfo `json:"services"`
	Applications []AppInfo     `json:"applications"`
	Routes       int           `json:"routes"`
}

type ServiceInfo struct {
	Name     string        `json:"name"`
	Versions []VersionInfo `json:"versions"`
}

// VersionInfo lists the functions declared at one version.
type VersionInfo struct {
	Version   int      `json:"version"`
	Functions []string `json:"functions"`
}

type AppInfo struct {
	Name   string      `json:"name"`
	Scopes []ScopeInfo `json:"scopes"`
	Routes int         `json:"routes"`
}

type ScopeInfo struct {
	Name    string `json:"name"`
	Service string `json:"service"`
	Version int    `json:"version"`
	Default bool   `json:"default,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <schema.yaml>",
		Short: "Validate a schema and its dispatch tables",
		Long: `Load a YAML schema descriptor, validate every message, service and
application, and build the dispatch table of every application so route
conflicts are reported before a server starts.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	sch, err := schema.LoadFile(path)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeSchema, "invalid schema", err)
	}
	f.VerboseLog("loaded %s", path)

	res := CheckResult{Namespace: sch.Namespace}
	for _, e := range sch.Enums() {
		res.Enums = append(res.Enums, e.Name)
	}
	sort.Strings(res.Enums)
	for _, m := range sch.Messages() {
		res.Messages = append(res.Messages, m.Name())
	}
	sort.Strings(res.Messages)

	for _, svc := range sch.Services() {
		info := ServiceInfo{Name: svc.Name()}
		for _, v := range svc.Versions() {
			vi := VersionInfo{Version: v.Number()}
			for _, fn := range v.Own() {
				sig := signature(fn)
				if fn.SuperVersion > 0 {
					sig += fmt.Sprintf(" extends v%d", fn.SuperVersion)
				}
				vi.Functions = append(vi.Functions, sig)
			}
			info.Versions = append(info.Versions, vi)
		}
		res.Services = append(res.Services, info)

		// the implicit per-service application must dispatch too
		if _, err := dispatch.New(schema.ServiceApplication(svc), nil, dispatch.WithLogger(zerolog.Nop())); err != nil {
			return f.Fail(ExitFailure, ErrCodeSchema, "service "+svc.Name(), err)
		}
	}

	for _, a := range sch.Applications() {
		app, err := dispatch.New(a, nil, dispatch.WithLogger(zerolog.Nop()))
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeSchema, "application "+a.Name(), err)
		}
		info := AppInfo{Name: a.Name(), Routes: len(app.Routes())}
		for _, sc := range a.Scopes() {
			info.Scopes = append(info.Scopes, ScopeInfo{
				Name:    sc.Name,
				Service: sc.Service.Name(),
				Version: sc.Version,
				Default: sc.Default,
			})
		}
		res.Applications = append(res.Applications, info)
		res.Routes += info.Routes
	}

	if f.Format == "json" {
		return f.JSON(res)
	}
	writeCheck(f.Writer, res)
	return nil
}

func writeCheck(w io.Writer, res CheckResult) {
	fmt.Fprintf(w, "schema %s\n", res.Namespace)
	if len(res.Enums) > 0 {
		fmt.Fprintf(w, "  enums     %s\n", strings.Join(res.Enums, ", "))
	}
	if len(res.Messages) > 0 {
		fmt.Fprintf(w, "  messages  %s\n", strings.Join(res.Messages, ", "))
	}
	for _, svc := range res.Services {
		fmt.Fprintf(w, "service %s\n", svc.Name)
		for _, v := range svc.Versions {
			if len(v.Functions) == 0 {
				fmt.Fprintf(w, "  v%d (no changes)\n", v.Version)
			}
			for _, fn := range v.Functions {
				fmt.Fprintf(w, "  v%d %s\n", v.Version, fn)
			}
		}
	}
	for _, app := range res.Applications {
		fmt.Fprintf(w, "application %s\n", app.Name)
		width := 0
		for _, sc := range app.Scopes {
			width = max(width, len(sc.Name))
		}
		for _, sc := range app.Scopes {
			line := fmt.Sprintf("  %-*s  %s:%d", width, sc.Name, sc.Service, sc.Version)
			if sc.Default {
				line += "  default"
			}
			fmt.Fprintln(w, line)
		}
	}
	fmt.Fprintf(w, "ok: %d services, %d applications, %d routes\n", len(res.Services), len(res.Applications), res.Routes)
}

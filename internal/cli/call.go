// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/luxfi/msgrpc"
	"github.com/luxfi/msgrpc/dispatch"
	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/internal/logging"
	"github.com/luxfi/msgrpc/record"
	"github.com/luxfi/msgrpc/schema"
	"github.com/luxfi/msgrpc/service"
)

// CallOptions select the server, the scope and the version of a call.
type CallOptions struct {
	Addr      string
	Transport string
	Codec     string
	App       string
	Scope     string
	Version   int
	Timeout   time.Duration
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{}

	cmd := &cobra.Command{
		Use:   "call <schema.yaml> <function> [args...]",
		Short: "Call a remote function",
		Long: `Call a function of a remote application through a client stub.

Arguments are positional and parsed as YAML values: 3, true, "text",
[1, 2], {k: v} and null. Trailing optional arguments may be left out.
Without --scope the call has no suffix and reaches the server's default
scope; --version selects an earlier version of the scope.`,
		Example: `  msgrpc call calc.yaml add 1 2 --scope calc
  msgrpc call calc.yaml div 10 4 --scope calc --version 2 --transport json --addr localhost:9650`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(rootOpts, opts, args[0], args[1], args[2:], cmd)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:9000", "server address")
	cmd.Flags().StringVar(&opts.Transport, "transport", msgrpc.DefaultTransport, "transport (zap|grpc|json)")
	cmd.Flags().StringVar(&opts.Codec, "codec", msgrpc.CodecMsgpack, "payload codec for zap and grpc")
	cmd.Flags().StringVar(&opts.App, "app", "", "application or service name")
	cmd.Flags().StringVar(&opts.Scope, "scope", "", "scope name")
	cmd.Flags().IntVar(&opts.Version, "version", 0, "service version (default: the scope's version)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "call timeout")
	return cmd
}

func runCall(rootOpts *RootOptions, opts *CallOptions, path, fn string, rawArgs []string, cmd *cobra.Command) error {
	f := newFormatter(rootOpts, cmd)

	sch, err := schema.LoadFile(path)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeSchema, "invalid schema", err)
	}
	app, err := selectApplication(sch, opts.App)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeApp, "no application", err)
	}
	params, err := parseArgs(rawArgs)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArgs, "invalid arguments", err)
	}
	codec, err := msgrpc.CodecByName(opts.Codec)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeArgs, "invalid codec", err)
	}

	ctx, cancel := context.WithTimeout(contextOrBackground(cmd.Context()), opts.Timeout)
	defer cancel()

	client, err := msgrpc.Dial(ctx, opts.Addr,
		msgrpc.WithTransport(opts.Transport),
		msgrpc.WithCodec(codec),
		msgrpc.WithDialLogger(logging.Component("call")),
	)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDial, "cannot connect", err)
	}
	session := msgrpc.NewSession(client)
	defer session.Close()

	stub, err := selectStub(dispatch.NewClient(app, session), app, session, opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeApp, "no stub", err)
	}
	f.VerboseLog("calling %s on %s over %s", stub.MethodName(fn), opts.Addr, opts.Transport)

	result, err := stub.Invoke(ctx, fn, params...)
	if err != nil {
		return f.Fail(ExitFailure, string(errdefs.CodeOf(err)), "call failed", err)
	}

	if f.Format == "json" {
		return f.JSON(map[string]any{"method": stub.MethodName(fn), "result": plain(result)})
	}
	writeResult(f.Writer, result)
	return nil
}

func selectStub(client *dispatch.Client, app *schema.Application, caller service.Caller, opts *CallOptions) (*service.Stub, error) {
	switch {
	case opts.Scope != "" && opts.Version > 0:
		return client.ScopeAt(opts.Scope, opts.Version)
	case opts.Scope != "":
		return client.Scope(opts.Scope)
	case opts.Version > 0:
		// "f:V" reaches the default scope at V
		return service.NewStub(caller, app.DefaultScope().Service, "", opts.Version)
	}
	return client.Default()
}

// parseArgs reads each argument as a YAML value.
func parseArgs(raw []string) ([]any, error) {
	out := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("argument %d (%q): %w", i+1, s, err)
		}
		out[i] = v
	}
	return out, nil
}

func writeResult(w io.Writer, v any) {
	switch t := v.(type) {
	case nil:
		fmt.Fprintln(w, "null")
	case *record.Record:
		fmt.Fprintln(w, t.Dump())
	case []byte:
		fmt.Fprintf(w, "%x\n", t)
	default:
		fmt.Fprintf(w, "%v\n", t)
	}
}

// plain converts a decoded result into JSON-encodable values. Records
// become objects keyed by field name.
func plain(v any) any {
	switch t := v.(type) {
	case *record.Record:
		out := make(map[string]any, len(t.Message().Fields()))
		for _, f := range t.Message().Fields() {
			out[f.Name] = plain(t.ByID(f.ID))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = plain(e)
		}
		return out
	}
	return v
}

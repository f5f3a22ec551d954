// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package msgrpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/stats"
	"google.golang.org/grpc/status"

	"github.com/luxfi/msgrpc/errdefs"
)

// grpcService prefixes every method: calls travel as
// "/msgrpc.Dispatch/<method>" with the method name untouched.
const grpcService = "msgrpc.Dispatch"

// grpcSubtype selects rawCodec through the content-type
// "application/grpc+msgrpc".
const grpcSubtype = "msgrpc"

func init() {
	encoding.RegisterCodec(rawCodec{})
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// rawCodec moves payloads already encoded by a Codec.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	}
	return nil, fmt.Errorf("msgrpc codec: cannot marshal %T", v)
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("msgrpc codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return grpcSubtype }

var grpcCodes = map[errdefs.Code]codes.Code{
	errdefs.CodeShape:          codes.InvalidArgument,
	errdefs.CodeRouting:        codes.NotFound,
	errdefs.CodeNotImplemented: codes.Unimplemented,
	errdefs.CodeRemote:         codes.Unknown,
}

func grpcError(err error) error {
	return status.Error(grpcCodes[errdefs.CodeOf(err)], err.Error())
}

// remoteFromGRPC turns coded statuses back into protocol errors. Transport
// statuses such as Unavailable or DeadlineExceeded are returned as is.
func remoteFromGRPC(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for code, gc := range grpcCodes {
		if gc == st.Code() {
			return errdefs.NewRemote(code, st.Message())
		}
	}
	return err
}

func dialGRPC(_ context.Context, addr string, o *dialOptions) (Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(grpcSubtype)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	o.log.Debug().Str("addr", addr).Msg("grpc client created")
	return &grpcClient{conn: conn, codec: o.codec}, nil
}

type grpcClient struct {
	conn  *grpc.ClientConn
	codec Codec
}

func (c *grpcClient) Call(ctx context.Context, method string, args, reply any) error {
	var payload []byte
	if args != nil {
		var err error
		if payload, err = c.codec.Encode(args); err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
	}
	resp, err := c.CallRaw(ctx, method, payload)
	if err != nil {
		return err
	}
	if reply != nil && len(resp) > 0 {
		if err := c.codec.Decode(resp, reply); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
	}
	return nil
}

func (c *grpcClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var resp []byte
	if err := c.conn.Invoke(ctx, "/"+grpcService+"/"+method, payload, &resp); err != nil {
		return nil, remoteFromGRPC(err)
	}
	return resp, nil
}

// Notify is a call whose result is discarded; gRPC has no one-way unary.
func (c *grpcClient) Notify(ctx context.Context, method string, args any) error {
	return c.Call(ctx, method, args, nil)
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}

func listenGRPC(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &grpcServer{
		mux:      newMux(),
		listener: listener,
		codec:    o.codec,
		log:      o.log.With().Str("transport", TransportGRPC).Logger(),
		observer: o.observer,
	}
	s.srv = grpc.NewServer(
		grpc.UnknownServiceHandler(s.handleStream),
		grpc.StatsHandler(connStats{obs: o.observer}),
	)
	return s, nil
}

// connStats reports gRPC connection begin and end to a ConnObserver.
type connStats struct {
	obs ConnObserver
}

func (connStats) TagRPC(ctx context.Context, _ *stats.RPCTagInfo) context.Context   { return ctx }
func (connStats) HandleRPC(context.Context, stats.RPCStats)                         {}
func (connStats) TagConn(ctx context.Context, _ *stats.ConnTagInfo) context.Context { return ctx }

func (c connStats) HandleConn(_ context.Context, s stats.ConnStats) {
	switch s.(type) {
	case *stats.ConnBegin:
		c.obs.ConnOpened(TransportGRPC)
	case *stats.ConnEnd:
		c.obs.ConnClosed(TransportGRPC)
	}
}

// grpcServer implements Server with gRPC. Every call reaches the unknown
// service handler, so no generated service descriptors are needed.
type grpcServer struct {
	*mux
	listener net.Listener
	srv      *grpc.Server
	codec    Codec
	log      zerolog.Logger
	observer ConnObserver
	closed   atomic.Bool
}

func (s *grpcServer) handleStream(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		s.observer.FrameError(TransportGRPC)
		return status.Error(codes.Internal, "no method in stream")
	}
	method, ok := strings.CutPrefix(full, "/"+grpcService+"/")
	if !ok {
		return grpcError(&errdefs.RoutingError{Method: full, Reason: "unknown service"})
	}

	var payload []byte
	if err := stream.RecvMsg(&payload); err != nil {
		s.observer.FrameError(TransportGRPC)
		return err
	}

	resp, err := s.serve(stream.Context(), s.codec, method, payload)
	if err != nil {
		ev := s.log.Debug().Err(err).Str("method", method)
		if p, ok := peer.FromContext(stream.Context()); ok {
			ev = ev.Stringer("remote", p.Addr)
		}
		ev.Msg("request failed")
		return grpcError(err)
	}
	if resp == nil {
		resp = []byte{}
	}
	return stream.SendMsg(resp)
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	s.log.Info().Str("addr", s.Addr()).Msg("serving")

	err := s.srv.Serve(s.listener)
	if s.closed.Load() || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

func (s *grpcServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.srv.Stop()
	return nil
}

func (s *grpcServer) Addr() string {
	return s.listener.Addr().String()
}

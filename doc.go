// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package msgrpc is the transport layer of a schema-driven, versioned RPC
// stack. Records travel as positional arrays; method names carry their
// routing suffix ("add:calc:3").
//
// # Transport Selection
//
// Three transports are registered and chosen at Dial/Listen time:
//
//	zap   length-prefixed frames over TCP (default)
//	grpc  gRPC with a pass-through codec, content-subtype "msgrpc"
//	json  JSON-RPC 2.0 over HTTP
//
// ZAP and gRPC payloads are encoded with a Codec, msgpack by default.
// JSON-RPC always carries JSON.
//
// # Usage
//
// Server usage:
//
//	sch, err := schema.LoadFile("calc.yaml")
//	app, err := dispatch.New(sch.Application("Gateway"), map[string]*service.Handlers{
//	    "calc": service.NewHandlers().Handle(1, "add", add),
//	})
//
//	server, err := msgrpc.Listen(":9000")
//	server.Handle(app)
//	server.Serve(ctx)
//
// Client usage:
//
//	client, err := msgrpc.Dial(ctx, "localhost:9000")
//	defer client.Close()
//
//	stubs := dispatch.NewClient(sch.Application("Gateway"), msgrpc.NewSession(client))
//	calc, err := stubs.Scope("calc")
//	sum, err := calc.Invoke(ctx, "add", 1, 2)
//
// # Errors
//
// Every transport carries the server's error class. A ShapeError raised
// by the server surfaces on the client as an *errdefs.RemoteError with code
// SHAPE, which still matches errdefs.ErrShape.
//
// # Architecture
//
//   - client.go: Client, Server and Dispatcher interfaces, options
//   - codec.go: msgpack, JSON and pass-through codecs
//   - transport.go: transport registry
//   - dial.go: Dial and Listen factory functions
//   - session.go: Session (stub call capability) and the shared server path
//   - zap.go, grpc.go, json.go: transports
package msgrpc

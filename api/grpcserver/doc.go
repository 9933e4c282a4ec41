// Package grpcserver exposes the registry service over gRPC.
//
// Messages are protobuf well-known types, so the service needs no
// generated code: the descriptor in desc.go is written by hand and the
// default proto codec carries the wire format. Every call is
// authenticated with an HS256 bearer token whose subject is the caller.
package grpcserver

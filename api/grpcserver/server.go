package grpcserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"labelreg/domain/ledger"
	"labelreg/domain/registry"
	"labelreg/internal/ctxlog"
)

var errBadRequest = errors.New("bad request")

// Registry is the part of the registry service the API needs.
type Registry interface {
	Set(ctx context.Context, caller ledger.AccountID, label []byte) error
	Clear(ctx context.Context, caller ledger.AccountID) (ledger.Balance, error)
	ForceSet(ctx context.Context, authority, target ledger.AccountID, label []byte) error
	ForceClear(ctx context.Context, authority, target ledger.AccountID) (ledger.Balance, error)
	Endow(ctx context.Context, authority, target ledger.AccountID, amount ledger.Balance) error
	Lookup(account ledger.AccountID) (registry.Entry, bool)
	Balance(account ledger.AccountID) ledger.Account
}

// Server adapts the registry service to gRPC.
type Server struct {
	svc Registry
}

func NewServer(svc Registry) *Server {
	return &Server{svc: svc}
}

// NewGRPCServer returns a grpc.Server with the registry registered and
// authentication installed.
func NewGRPCServer(svc Registry, secret []byte, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(AuthInterceptor(secret)))
	gs := grpc.NewServer(opts...)
	gs.RegisterService(&RegistryServiceDesc, NewServer(svc))
	return gs
}

// -------------------- Commands --------------------

func (s *Server) SetLabel(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.svc.Set(ctx, caller, req.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) ClearLabel(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	deposit, err := s.svc.Clear(ctx, caller)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(uint64(deposit)), nil
}

func (s *Server) ForceSetLabel(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	target, err := stringField(req, "target")
	if err != nil {
		return nil, toStatus(err)
	}
	encoded, err := stringField(req, "label_b64")
	if err != nil {
		return nil, toStatus(err)
	}
	label, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, toStatus(fmt.Errorf("%w: label_b64: %v", errBadRequest, err))
	}
	if err := s.svc.ForceSet(ctx, caller, ledger.AccountID(target), label); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) ForceClearLabel(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.UInt64Value, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	deposit, err := s.svc.ForceClear(ctx, caller, ledger.AccountID(req.GetValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(uint64(deposit)), nil
}

func (s *Server) Endow(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	caller, err := callerOf(ctx)
	if err != nil {
		return nil, err
	}
	account, err := stringField(req, "account")
	if err != nil {
		return nil, toStatus(err)
	}
	amount, err := amountField(req, "amount")
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.svc.Endow(ctx, caller, ledger.AccountID(account), amount); err != nil {
		return nil, toStatus(err)
	}
	ctxlog.FromContext(ctx).Info("endowed", "authority", caller, "account", account, "amount", amount)
	return &emptypb.Empty{}, nil
}

// -------------------- Queries --------------------

func (s *Server) Lookup(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	account := ledger.AccountID(req.GetValue())
	e, ok := s.svc.Lookup(account)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "%s: %v", account, registry.ErrUnregistered)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"account":   structpb.NewStringValue(string(account)),
		"label_b64": structpb.NewStringValue(base64.StdEncoding.EncodeToString(e.Label)),
		"deposit":   amountValue(e.Deposit),
	}}, nil
}

func (s *Server) Balance(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	account := ledger.AccountID(req.GetValue())
	acc := s.svc.Balance(account)
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"account":  structpb.NewStringValue(string(account)),
		"free":     amountValue(acc.Free),
		"reserved": amountValue(acc.Reserved),
	}}, nil
}

// -------------------- Helpers --------------------

func callerOf(ctx context.Context) (ledger.AccountID, error) {
	who, ok := CallerFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, ErrMissingToken.Error())
	}
	return who, nil
}

func stringField(s *structpb.Struct, name string) (string, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return "", fmt.Errorf("%w: missing %s", errBadRequest, name)
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", errBadRequest, name)
	}
	return str.StringValue, nil
}

// Amounts travel as decimal strings; a JSON number is accepted when it
// is an exact integer.
func amountValue(b ledger.Balance) *structpb.Value {
	return structpb.NewStringValue(strconv.FormatUint(uint64(b), 10))
}

func amountField(s *structpb.Struct, name string) (ledger.Balance, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", errBadRequest, name)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
		}
		return ledger.Balance(n), nil
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f < 0 || f != math.Trunc(f) || f >= 1<<53 {
			return 0, fmt.Errorf("%w: %s is not an exact amount", errBadRequest, name)
		}
		return ledger.Balance(f), nil
	default:
		return 0, fmt.Errorf("%w: %s must be a string or number", errBadRequest, name)
	}
}

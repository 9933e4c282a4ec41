package grpcserver

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"labelreg/domain/authority"
	"labelreg/domain/ledger"
	"labelreg/domain/registry"
)

var errorCodes = []struct {
	err  error
	code codes.Code
}{
	{registry.ErrTooShort, codes.InvalidArgument},
	{registry.ErrTooLong, codes.InvalidArgument},
	{errBadRequest, codes.InvalidArgument},
	{registry.ErrUnregistered, codes.NotFound},
	{ledger.ErrInsufficientBalance, codes.FailedPrecondition},
	{ledger.ErrOverflow, codes.OutOfRange},
	{authority.ErrBadOrigin, codes.PermissionDenied},
	{ErrMissingToken, codes.Unauthenticated},
	{ErrInvalidToken, codes.Unauthenticated},
}

// toStatus converts a service error into a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, "an unexpected error occurred")
}

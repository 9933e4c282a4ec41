package registry

import (
	"errors"
	"fmt"
)

var (
	ErrTooShort     = errors.New("registry: label too short")
	ErrTooLong      = errors.New("registry: label too long")
	ErrUnregistered = errors.New("registry: account has no label")
)

// InvariantViolation is the panic value raised when the registry and
// the currency ledger disagree about an escrowed deposit. It is never
// returned as an error.
type InvariantViolation struct {
	Op        string
	Account   AccountID
	Deposit   Balance
	Shortfall Balance
}

func (v *InvariantViolation) Error() string {
	return fmt.Sprintf(
		"registry: %s of %s left shortfall %d of deposit %d",
		v.Op, v.Account, v.Shortfall, v.Deposit,
	)
}

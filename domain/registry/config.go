package registry

import (
	"fmt"

	"labelreg/domain/ledger"
)

// ForceClearPolicy decides what happens to the deposit of a forcibly
// cleared entry.
type ForceClearPolicy uint8

const (
	// ReturnDeposit unreserves the deposit, same as Clear.
	ReturnDeposit ForceClearPolicy = iota
	// SlashDeposit slashes the deposit and hands it to OnSlashed.
	SlashDeposit
)

func (p ForceClearPolicy) String() string {
	switch p {
	case ReturnDeposit:
		return "unreserve"
	case SlashDeposit:
		return "slash"
	default:
		return "unknown"
	}
}

// ParseForceClearPolicy accepts the String form of a policy.
func ParseForceClearPolicy(s string) (ForceClearPolicy, error) {
	switch s {
	case "", "unreserve":
		return ReturnDeposit, nil
	case "slash":
		return SlashDeposit, nil
	default:
		return 0, fmt.Errorf("registry: unknown force clear policy %q", s)
	}
}

// Config holds the deployment constants. They never change at runtime,
// and a store must be reopened with the same ones.
type Config struct {
	MinLength      uint32
	MaxLength      uint32
	ReservationFee ledger.Balance
	ForceClear     ForceClearPolicy
	// SlashTo receives slashed deposits. Empty burns them.
	SlashTo ledger.AccountID
}

func (c Config) Validate() error {
	if c.MaxLength == 0 {
		return fmt.Errorf("registry: max length must be positive")
	}
	if c.MinLength > c.MaxLength {
		return fmt.Errorf("registry: min length %d exceeds max length %d", c.MinLength, c.MaxLength)
	}
	if c.ForceClear > SlashDeposit {
		return fmt.Errorf("registry: invalid force clear policy %d", c.ForceClear)
	}
	return nil
}

package service

import (
	"errors"
	"fmt"

	"labelreg/domain/ledger"
	"labelreg/domain/registry"
	entrywal "labelreg/infra/wal/entry"
)

// ErrConfigMismatch is returned by Recover when the store was created
// with other registry constants than the configured ones.
var ErrConfigMismatch = errors.New("service: registry constants differ from the store")

func paramsOf(c registry.Config) entrywal.Params {
	return entrywal.Params{
		MinLength:      c.MinLength,
		MaxLength:      c.MaxLength,
		ReservationFee: uint64(c.ReservationFee),
		ForceClear:     c.ForceClear.String(),
		SlashTo:        string(c.SlashTo),
	}
}

func configOf(p entrywal.Params) (registry.Config, error) {
	policy, err := registry.ParseForceClearPolicy(p.ForceClear)
	if err != nil {
		return registry.Config{}, err
	}
	return registry.Config{
		MinLength:      p.MinLength,
		MaxLength:      p.MaxLength,
		ReservationFee: ledger.Balance(p.ReservationFee),
		ForceClear:     policy,
		SlashTo:        ledger.AccountID(p.SlashTo),
	}, nil
}

func mismatch(source string, stored, configured registry.Config) error {
	return fmt.Errorf(
		"%w: %s has min=%d max=%d fee=%d force_clear=%s slash_to=%q, configured min=%d max=%d fee=%d force_clear=%s slash_to=%q",
		ErrConfigMismatch, source,
		stored.MinLength, stored.MaxLength, stored.ReservationFee, stored.ForceClear, stored.SlashTo,
		configured.MinLength, configured.MaxLength, configured.ReservationFee, configured.ForceClear, configured.SlashTo,
	)
}

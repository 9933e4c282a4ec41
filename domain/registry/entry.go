package registry

import (
	"bytes"

	"labelreg/domain/ledger"
)

type (
	AccountID = ledger.AccountID
	Balance   = ledger.Balance
)

// Label is a validated label. Its length is within the configured bounds.
type Label []byte

func (l Label) String() string {
	return string(l)
}

// Entry is the per-account registry row.
type Entry struct {
	Label   Label
	Deposit Balance
}

func (e Entry) Equal(o Entry) bool {
	return e.Deposit == o.Deposit && bytes.Equal(e.Label, o.Label)
}

func (e Entry) clone() Entry {
	return Entry{Label: bytes.Clone(e.Label), Deposit: e.Deposit}
}

// ValidateLabel checks raw against the configured bounds and returns
// an owned copy. The upper bound is checked first.
func (c Config) ValidateLabel(raw []byte) (Label, error) {
	if uint64(len(raw)) > uint64(c.MaxLength) {
		return nil, ErrTooLong
	}
	if uint64(len(raw)) < uint64(c.MinLength) {
		return nil, ErrTooShort
	}
	return Label(bytes.Clone(raw)), nil
}

package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"labelreg/domain/ledger"
	"labelreg/domain/registry"
)

// Load restores the snapshot in dir into reg and book and returns its
// sequence. A missing snapshot is not an error: the state is left
// untouched and 0 is returned.
func Load(
	dir string,
	reg *registry.Registry,
	book *ledger.Ledger,
) (uint64, error) {
	s, err := Read(dir)
	if err != nil || s == nil {
		return 0, err
	}
	s.Restore(reg, book)
	return s.Seq, nil
}

// Read decodes the snapshot in dir, or returns nil if there is none.
func Read(dir string) (*Snapshot, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil // snapshot optional
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

// Restore replaces the contents of reg and book.
func (s *Snapshot) Restore(reg *registry.Registry, book *ledger.Ledger) {
	records := make([]registry.Record, 0, len(s.Entries))
	for _, e := range s.Entries {
		records = append(records, registry.Record{
			Account: registry.AccountID(e.Account),
			Entry:   registry.Entry{Label: e.Label, Deposit: registry.Balance(e.Deposit)},
		})
	}
	reg.Restore(records)

	accounts := make([]ledger.AccountBalance, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		accounts = append(accounts, ledger.AccountBalance{
			ID:      ledger.AccountID(a.Account),
			Account: ledger.Account{Free: ledger.Balance(a.Free), Reserved: ledger.Balance(a.Reserved)},
		})
	}
	book.Restore(accounts, ledger.Balance(s.Issuance))
}

package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"labelreg/domain/ledger"
	"labelreg/domain/registry"
)

// ErrStale is returned when the snapshot on disk is newer than the one
// being written.
var ErrStale = errors.New("snapshot: older than the stored snapshot")

type Writer struct {
	Dir string
}

// Write stores s. The file is replaced atomically, and never by an older
// snapshot.
func (w *Writer) Write(s *Snapshot) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}
	current, err := Read(w.Dir)
	if err != nil {
		return err
	}
	if current != nil && current.Seq > s.Seq {
		return fmt.Errorf("%w: have %d, writing %d", ErrStale, current.Seq, s.Seq)
	}

	tmp, err := os.CreateTemp(w.Dir, FileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(s); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(w.Dir, FileName))
}

// Capture copies the state as of seq into a Snapshot.
func Capture(seq uint64, reg *registry.Registry, book *ledger.Ledger) *Snapshot {
	s := &Snapshot{
		Seq:      seq,
		Created:  time.Now(),
		Config:   reg.Config(),
		Issuance: uint64(book.TotalIssuance()),
	}
	for _, rec := range reg.Entries() {
		s.Entries = append(s.Entries, EntryRecord{
			Account: string(rec.Account),
			Label:   rec.Entry.Label,
			Deposit: uint64(rec.Entry.Deposit),
		})
	}
	for _, acc := range book.Accounts() {
		s.Accounts = append(s.Accounts, AccountRecord{
			Account:  string(acc.ID),
			Free:     uint64(acc.Account.Free),
			Reserved: uint64(acc.Account.Reserved),
		})
	}
	return s
}

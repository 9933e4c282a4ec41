package snapshot

import (
	"time"

	"labelreg/domain/registry"
)

const FileName = "snapshot.bin"

type Snapshot struct {
	Seq     uint64
	Created time.Time

	// registry constants the state was built under
	Config registry.Config

	Entries  []EntryRecord
	Accounts []AccountRecord
	Issuance uint64
}

// Compatible reports whether the snapshot was taken under cfg.
func (s *Snapshot) Compatible(cfg registry.Config) bool {
	return s.Config == cfg
}

type EntryRecord struct {
	Account string
	Label   []byte
	Deposit uint64
}

type AccountRecord struct {
	Account  string
	Free     uint64
	Reserved uint64
}

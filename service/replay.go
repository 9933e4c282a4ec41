package service

import (
	"context"
	"fmt"
	"maps"
	"slices"

	entrywal "labelreg/infra/wal/entry"
	"labelreg/internal/ctxlog"
	"labelreg/snapshot"
)

/*
Recover rebuilds in-memory state from the latest snapshot plus the
command journal.

IMPORTANT:
- This MUST run before accepting traffic
- Rejected commands are replayed too and are rejected again
- Events of replayed transitions are re-added to the outbox unless
  they are already there
*/
func (s *RegistryService) Recover(ctx context.Context, snapshotDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := ctxlog.FromContext(ctx)

	snap, err := snapshot.Read(snapshotDir)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	want := s.reg.Config()

	var from uint64
	if snap != nil {
		if !snap.Compatible(want) {
			return mismatch("snapshot", snap.Config, want)
		}
		snap.Restore(s.reg, s.book)
		from = snap.Seq
		log.Info("snapshot loaded", "seq", snap.Seq, "entries", len(snap.Entries), "created", snap.Created)
	}

	s.gate.replaying = true
	defer func() { s.gate.replaying = false }()

	// Without a snapshot the journal has to open with its config record.
	anchored := snap != nil
	replayed := 0
	lastSeq, err := entrywal.Replay(s.entryWAL.Dir(), from, func(rec *entrywal.Record) error {
		if rec.Type == entrywal.RecordConfig {
			p, err := entrywal.UnmarshalParams(rec.Data)
			if err != nil {
				return fmt.Errorf("record %d: %w", rec.Seq, err)
			}
			stored, err := configOf(p)
			if err != nil {
				return fmt.Errorf("record %d: %w", rec.Seq, err)
			}
			if stored != want {
				return mismatch("journal", stored, want)
			}
			anchored = true
			s.configSeq = rec.Seq
			return nil
		}
		if !anchored {
			return fmt.Errorf("%w: record %d precedes the config record", ErrConfigMismatch, rec.Seq)
		}

		cmd, err := entrywal.UnmarshalCommand(rec.Data)
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		replayed++

		_, applyErr := s.apply(rec.Type, cmd)
		events := s.events.Drain()
		if applyErr != nil {
			log.Debug("replayed rejected command", "seq", rec.Seq, "op", rec.Type.String(), "err", applyErr)
			return nil
		}
		return s.commitEvents(rec.Seq, events, true)
	})
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}

	// Resume sequencing AFTER replay
	s.seqGen.ResumeAfter(lastSeq)

	if !anchored {
		// brand new store
		seq, err := s.journal(entrywal.RecordConfig, paramsOf(want).Marshal())
		if err != nil {
			return fmt.Errorf("journal config: %w", err)
		}
		if err := s.entryWAL.Sync(); err != nil {
			return fmt.Errorf("journal config: %w", err)
		}
		s.configSeq = seq
		log.Info("store created", "seq", seq)
	}

	log.Info("journal replay completed", "from", from, "last_seq", lastSeq, "records", replayed)
	return nil
}

// ApplyGenesis endows the genesis balances into a store that has never
// seen a transition. On any later start it does nothing. It runs after
// Recover.
func (s *RegistryService) ApplyGenesis(ctx context.Context, balances map[string]uint64) error {
	s.mu.Lock()
	fresh := s.configSeq != 0 && s.seqGen.Current() == s.configSeq
	s.mu.Unlock()
	if !fresh || len(balances) == 0 {
		return nil
	}

	// sorted for a deterministic journal order
	for _, account := range slices.Sorted(maps.Keys(balances)) {
		_, err := s.submit(ctx, entrywal.RecordGenesis, entrywal.Command{
			Target: account,
			Amount: balances[account],
		})
		if err != nil {
			return fmt.Errorf("genesis %s: %w", account, err)
		}
	}
	return s.entryWAL.Sync()
}

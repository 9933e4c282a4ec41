package service

import (
	"context"
	"fmt"
	"time"

	"labelreg/internal/ctxlog"
	"labelreg/snapshot"
)

// TakeSnapshot writes the current state to dir, then truncates the
// journal and collects acknowledged outbox records up to its sequence.
// Concurrent calls run one after the other.
func (s *RegistryService) TakeSnapshot(dir string) (uint64, error) {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	s.mu.Lock()
	snap := snapshot.Capture(s.seqGen.Current(), s.reg, s.book)
	s.mu.Unlock()

	w := &snapshot.Writer{Dir: dir}
	if err := w.Write(snap); err != nil {
		return 0, fmt.Errorf("write snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Truncate ENTRY WAL after snapshot
	if err := s.entryWAL.TruncateBefore(snap.Seq); err != nil {
		return snap.Seq, fmt.Errorf("truncate journal: %w", err)
	}
	// GC EXIT WAL (acked only)
	if err := s.exitWAL.TruncateAckedUpTo(snap.Seq); err != nil {
		return snap.Seq, fmt.Errorf("truncate outbox: %w", err)
	}
	return snap.Seq, nil
}

// StartSnapshotJob snapshots every interval until ctx is done. The
// returned channel is closed once the job has stopped.
func (s *RegistryService) StartSnapshotJob(
	ctx context.Context,
	dir string,
	interval time.Duration,
) <-chan struct{} {
	log := ctxlog.FromContext(ctx).With("component", "snapshot")
	done := make(chan struct{})

	go func() {
		defer close(done)

		t := time.NewTicker(interval)
		defer t.Stop()

		var last uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}

			if s.LastSeq() == last {
				continue
			}
			seq, err := s.TakeSnapshot(dir)
			if err != nil {
				log.Error("snapshot failed", "err", err)
				continue
			}
			last = seq
			log.Info("snapshot written", "seq", seq)
		}
	}()
	return done
}

// Close flushes the journal.
func (s *RegistryService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entryWAL.Sync()
}

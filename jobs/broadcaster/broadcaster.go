package broadcaster

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"labelreg/infra/kafka"
	exitwal "labelreg/infra/wal/exit"
)

type Broadcaster struct {
	exitWAL   *exitwal.ExitWAL
	publisher kafka.Publisher
	interval  time.Duration
	log       *slog.Logger
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

func New(
	exitWAL *exitwal.ExitWAL,
	publisher kafka.Publisher,
	interval time.Duration,
	log *slog.Logger,
) *Broadcaster {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Broadcaster{
		exitWAL:   exitWAL,
		publisher: publisher,
		interval:  interval,
		log:       log.With("component", "broadcaster"),
	}
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run drains the outbox every interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	b.log.Info("started", "interval", b.interval)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("stopped")
			return

		case <-ticker.C:
			if _, err := b.Flush(ctx); err != nil {
				b.log.Warn("flush interrupted", "err", err)
			}
		}
	}
}

// ------------------------------------------------
// FLUSH
// ------------------------------------------------

// Flush publishes pending records in seq order and returns how many
// were acknowledged. It stops at the first publish failure so later
// events never overtake earlier ones.
func (b *Broadcaster) Flush(ctx context.Context) (int, error) {
	var pending []exitwal.ExitRecord
	if err := b.exitWAL.ScanPending(func(rec exitwal.ExitRecord) error {
		pending = append(pending, rec)
		return nil
	}); err != nil {
		return 0, fmt.Errorf("scan outbox: %w", err)
	}

	acked := 0
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return acked, err
		}

		// SENT before publishing: a crash here means at-least-once.
		if err := b.exitWAL.MarkSent(rec.Seq); err != nil {
			return acked, fmt.Errorf("mark sent %d: %w", rec.Seq, err)
		}

		if err := b.publisher.Publish(ctx, keyOf(rec), rec.Payload); err != nil {
			if markErr := b.exitWAL.MarkFailed(rec.Seq); markErr != nil {
				return acked, fmt.Errorf("mark failed %d: %w", rec.Seq, markErr)
			}
			b.log.Warn("publish failed", "seq", rec.Seq, "retries", rec.Retries+1, "err", err)
			return acked, fmt.Errorf("publish %d: %w", rec.Seq, err)
		}

		if err := b.exitWAL.MarkAcked(rec.Seq); err != nil {
			return acked, fmt.Errorf("mark acked %d: %w", rec.Seq, err)
		}
		acked++
	}
	return acked, nil
}

// keyOf partitions by account so one account's events stay ordered.
func keyOf(rec exitwal.ExitRecord) []byte {
	ev, err := DecodeEvent(rec.Payload)
	if err != nil || ev.Account == "" {
		return nil
	}
	return []byte(ev.Account)
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.publisher.Close()
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	entrywal "labelreg/infra/wal/entry"
	exitwal "labelreg/infra/wal/exit"
	"labelreg/internal/config"
	"labelreg/snapshot"
)

func newInspectCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the snapshot, journal and outbox of a stopped server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			return inspect(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default $LABELREG_DATA_DIR)")
	return cmd
}

func inspect(w io.Writer, cfg config.Config) error {
	snap, err := snapshot.Read(cfg.SnapshotDir())
	if err != nil {
		return err
	}
	var from uint64
	if snap == nil {
		fmt.Fprintln(w, "snapshot: none")
	} else {
		from = snap.Seq
		fmt.Fprintf(w, "snapshot: seq=%d created=%s entries=%d accounts=%d issuance=%d\n",
			snap.Seq, snap.Created.Format("2006-01-02T15:04:05Z07:00"),
			len(snap.Entries), len(snap.Accounts), snap.Issuance)
		c := snap.Config
		fmt.Fprintf(w, "  config min=%d max=%d fee=%d force_clear=%s slash_to=%q\n",
			c.MinLength, c.MaxLength, c.ReservationFee, c.ForceClear, c.SlashTo)
	}

	fmt.Fprintln(w, "journal:")
	last, err := entrywal.Replay(cfg.JournalDir(), from, func(rec *entrywal.Record) error {
		if rec.Type == entrywal.RecordConfig {
			p, err := entrywal.UnmarshalParams(rec.Data)
			if err != nil {
				return fmt.Errorf("record %d: %w", rec.Seq, err)
			}
			fmt.Fprintf(w, "  %6d %-11s min=%d max=%d fee=%d force_clear=%s slash_to=%q\n",
				rec.Seq, rec.Type, p.MinLength, p.MaxLength, p.ReservationFee, p.ForceClear, p.SlashTo)
			return nil
		}
		cmd, err := entrywal.UnmarshalCommand(rec.Data)
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		fmt.Fprintf(w, "  %6d %-11s caller=%q target=%q label=%q amount=%d\n",
			rec.Seq, rec.Type, cmd.Caller, cmd.Target, cmd.Label, cmd.Amount)
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "last seq: %d\n", last)

	outbox, err := exitwal.Open(cfg.OutboxDir())
	if err != nil {
		return err
	}
	defer outbox.Close()

	fmt.Fprintln(w, "outbox:")
	return outbox.ScanPending(func(rec exitwal.ExitRecord) error {
		fmt.Fprintf(w, "  %6d %-6s retries=%d %s\n", rec.Seq, rec.State, rec.Retries, rec.Payload)
		return nil
	})
}

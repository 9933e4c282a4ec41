package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"labelreg/api/grpcserver"
	"labelreg/domain/authority"
	"labelreg/domain/ledger"
	"labelreg/infra/kafka"
	"labelreg/infra/sequence"
	entrywal "labelreg/infra/wal/entry"
	exitwal "labelreg/infra/wal/exit"
	"labelreg/internal/config"
	"labelreg/internal/ctxlog"
	"labelreg/internal/telemetry"
	"labelreg/jobs/broadcaster"
	"labelreg/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the registry gRPC server",
		Long: `Run the registry gRPC server.

Configuration is read from LABELREG_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("LABELREG_JWT_SECRET is required")
	}
	rc, err := cfg.Registry()
	if err != nil {
		return err
	}

	logger, err := ctxlog.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	ctx = ctxlog.WithLogger(ctx, logger)

	shutdownTracing, err := telemetry.Setup(ctx, "labelreg", cfg.TraceStdout, os.Stdout)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	// ---------------- Journal ----------------

	journal, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.JournalDir(),
		SegmentSize:     cfg.WALSegmentSize,
		SegmentDuration: time.Hour,
		SyncWrites:      cfg.WALSync,
	})
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer journal.Close()

	// ---------------- Outbox ----------------

	outbox, err := exitwal.Open(cfg.OutboxDir())
	if err != nil {
		return fmt.Errorf("open outbox: %w", err)
	}
	defer outbox.Close()

	// ---------------- Service ----------------

	book := ledger.New()
	svc, err := service.NewRegistryService(
		rc,
		book,
		authority.NewStatic(cfg.AuthorityIDs()...),
		sequence.New(0),
		journal,
		outbox,
	)
	if err != nil {
		return err
	}
	if err := svc.Recover(ctx, cfg.SnapshotDir()); err != nil {
		return fmt.Errorf("recover: %w", err)
	}

	genesis, err := config.LoadGenesis(cfg.GenesisFile)
	if err != nil {
		return err
	}
	if err := svc.ApplyGenesis(ctx, genesis.Balances); err != nil {
		return err
	}

	// ---------------- Background Jobs ----------------

	// Jobs stop before the final snapshot and before the stores close.
	jobCtx, cancelJobs := context.WithCancel(ctx)
	var jobs []<-chan struct{}
	stopJobs := func() {
		cancelJobs()
		for _, done := range jobs {
			<-done
		}
	}

	if len(cfg.KafkaBrokers) > 0 {
		pub, err := kafka.NewPublisher(cfg.Kafka())
		if err != nil {
			cancelJobs()
			return fmt.Errorf("kafka: %w", err)
		}
		bc := broadcaster.New(outbox, pub, cfg.BroadcastInterval, logger)
		defer bc.Close()

		done := make(chan struct{})
		go func() {
			defer close(done)
			bc.Run(jobCtx)
		}()
		jobs = append(jobs, done)
	} else {
		logger.Warn("no kafka brokers configured; events stay in the outbox")
	}

	jobs = append(jobs, svc.StartSnapshotJob(jobCtx, cfg.SnapshotDir(), cfg.SnapshotInterval))
	defer stopJobs()

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	gs := grpcserver.NewGRPCServer(svc, []byte(cfg.JWTSecret))
	go func() {
		<-ctx.Done()
		gs.GracefulStop()
	}()

	logger.Info("labelreg running",
		"addr", lis.Addr().String(),
		"last_seq", svc.LastSeq(),
		"min_length", rc.MinLength,
		"max_length", rc.MaxLength,
		"fee", rc.ReservationFee,
	)
	if err := gs.Serve(lis); err != nil {
		return fmt.Errorf("grpc server exited: %w", err)
	}

	stopJobs()
	if seq, err := svc.TakeSnapshot(cfg.SnapshotDir()); err != nil {
		logger.Error("final snapshot failed", "err", err)
	} else {
		logger.Info("final snapshot written", "seq", seq)
	}
	return svc.Close()
}

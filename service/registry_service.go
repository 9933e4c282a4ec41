package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"labelreg/domain/ledger"
	"labelreg/domain/registry"
	"labelreg/infra/sequence"
	entrywal "labelreg/infra/wal/entry"
	exitwal "labelreg/infra/wal/exit"
	"labelreg/internal/ctxlog"
	"labelreg/jobs/broadcaster"
)

var ErrUnknownRecord = errors.New("service: unknown journal record")

/*
RegistryService is the ONLY write entry point into the system.

All coordination between:
- domain (registry, ledger)
- infra (sequence, journal, outbox)
- snapshot
happens here.
*/
type RegistryService struct {
	mu sync.Mutex
	// snapMu orders snapshots: capture, write and truncate run as one.
	snapMu sync.Mutex

	reg    *registry.Registry
	book   *ledger.Ledger
	gate   *gate
	events *registry.EventBuffer

	seqGen   *sequence.Sequencer
	entryWAL *entrywal.WAL
	exitWAL  *exitwal.ExitWAL

	// configSeq is the seq of the config record when the journal still
	// holds it, 0 otherwise.
	configSeq uint64

	tracer trace.Tracer
}

// NewRegistryService wires all dependencies. Slashed deposits go where
// cfg.SlashTo says.
// No globals. No magic.
func NewRegistryService(
	cfg registry.Config,
	book *ledger.Ledger,
	authz registry.Authorizer,
	seqGen *sequence.Sequencer,
	entryWAL *entrywal.WAL,
	exitWAL *exitwal.ExitWAL,
) (*RegistryService, error) {
	g := &gate{inner: authz}
	events := &registry.EventBuffer{}

	reg, err := registry.New(cfg, registry.Collaborators{
		Currency:   book,
		Authorizer: g,
		Slashed:    ledger.SlashHandler(book, cfg.SlashTo),
		Events:     events,
	})
	if err != nil {
		return nil, err
	}

	return &RegistryService{
		reg:      reg,
		book:     book,
		gate:     g,
		events:   events,
		seqGen:   seqGen,
		entryWAL: entryWAL,
		exitWAL:  exitWAL,
		tracer:   otel.Tracer("labelreg/service"),
	}, nil
}

// gate lets journaled privileged commands through during replay: they
// were authorized when they were first submitted.
type gate struct {
	inner     registry.Authorizer
	replaying bool
}

func (g *gate) AuthorizeForce(who ledger.AccountID) error {
	if g.replaying {
		return nil
	}
	return g.inner.AuthorizeForce(who)
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Set registers or replaces the label of caller.
func (s *RegistryService) Set(ctx context.Context, caller ledger.AccountID, label []byte) error {
	_, err := s.submit(ctx, entrywal.RecordSet, entrywal.Command{
		Caller: string(caller),
		Label:  nonNil(label),
	})
	return err
}

// Clear removes the label of caller and returns the released deposit.
func (s *RegistryService) Clear(ctx context.Context, caller ledger.AccountID) (ledger.Balance, error) {
	return s.submit(ctx, entrywal.RecordClear, entrywal.Command{Caller: string(caller)})
}

func (s *RegistryService) ForceSet(ctx context.Context, authority, target ledger.AccountID, label []byte) error {
	_, err := s.submit(ctx, entrywal.RecordForceSet, entrywal.Command{
		Caller: string(authority),
		Target: string(target),
		Label:  nonNil(label),
	})
	return err
}

// ForceClear removes the label of target and returns its deposit, which
// was either released or slashed depending on the configured policy.
func (s *RegistryService) ForceClear(ctx context.Context, authority, target ledger.AccountID) (ledger.Balance, error) {
	return s.submit(ctx, entrywal.RecordForceClear, entrywal.Command{
		Caller: string(authority),
		Target: string(target),
	})
}

// Endow mints amount into the free balance of target.
func (s *RegistryService) Endow(ctx context.Context, authority, target ledger.AccountID, amount ledger.Balance) error {
	_, err := s.submit(ctx, entrywal.RecordEndow, entrywal.Command{
		Caller: string(authority),
		Target: string(target),
		Amount: uint64(amount),
	})
	return err
}

func (s *RegistryService) submit(
	ctx context.Context,
	typ entrywal.RecordType,
	cmd entrywal.Command,
) (ledger.Balance, error) {
	ctx, span := s.tracer.Start(ctx, "registry."+typ.String(), trace.WithAttributes(
		attribute.String("caller", cmd.Caller),
		attribute.String("target", cmd.Target),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := ctxlog.FromContext(ctx).With("op", typ.String(), "caller", cmd.Caller)

	// Rejected authority checks never reach the journal, so replay does
	// not depend on the authority set in force at the time.
	if privileged(typ) {
		if err := s.gate.AuthorizeForce(ledger.AccountID(cmd.Caller)); err != nil {
			span.SetStatus(codes.Error, err.Error())
			log.Warn("transition rejected", "err", err)
			return 0, err
		}
	}

	// 1️⃣ Journal intent
	seq, err := s.journal(typ, cmd.Marshal())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("journal %s: %w", typ, err)
	}
	span.SetAttributes(attribute.Int64("seq", int64(seq)))
	log = log.With("seq", seq)

	// 2️⃣ Execute deterministic domain logic
	out, err := s.apply(typ, cmd)
	events := s.events.Drain()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Warn("transition rejected", "err", err)
		return 0, err
	}

	// 3️⃣ Commit events to the outbox
	if err := s.commitEvents(seq, events, false); err != nil {
		// The transition is journaled and applied; replay re-emits the
		// event on the next start.
		log.Error("outbox write failed", "err", err)
	}

	log.Info("transition applied", "events", len(events))
	return out, nil
}

// journal appends the next record. The seq is only taken once the
// append succeeded, so the journal never has holes. Callers hold s.mu.
func (s *RegistryService) journal(typ entrywal.RecordType, data []byte) (uint64, error) {
	seq := s.seqGen.Current() + 1
	if err := s.entryWAL.Append(entrywal.NewRecord(typ, seq, data)); err != nil {
		return 0, err
	}
	s.seqGen.ResumeAfter(seq)
	return seq, nil
}

func privileged(typ entrywal.RecordType) bool {
	switch typ {
	case entrywal.RecordForceSet, entrywal.RecordForceClear, entrywal.RecordEndow:
		return true
	default:
		return false
	}
}

func (s *RegistryService) apply(typ entrywal.RecordType, cmd entrywal.Command) (ledger.Balance, error) {
	caller := ledger.AccountID(cmd.Caller)
	target := ledger.AccountID(cmd.Target)

	switch typ {
	case entrywal.RecordSet:
		return 0, s.reg.Set(caller, cmd.Label)
	case entrywal.RecordClear:
		return s.reg.Clear(caller)
	case entrywal.RecordForceSet:
		return 0, s.reg.ForceSet(caller, target, cmd.Label)
	case entrywal.RecordForceClear:
		return s.reg.ForceClear(caller, target)
	case entrywal.RecordEndow:
		if err := s.gate.AuthorizeForce(caller); err != nil {
			return 0, err
		}
		return 0, s.book.Endow(target, ledger.Balance(cmd.Amount))
	case entrywal.RecordGenesis:
		return 0, s.book.Endow(target, ledger.Balance(cmd.Amount))
	default:
		return 0, fmt.Errorf("%w: type %d", ErrUnknownRecord, typ)
	}
}

// commitEvents stores the events of transition seq. A transition emits
// at most one event, so seq alone keys it.
func (s *RegistryService) commitEvents(seq uint64, events []registry.Event, replay bool) error {
	if len(events) > 1 {
		return fmt.Errorf("transition %d emitted %d events", seq, len(events))
	}
	for _, ev := range events {
		payload, err := broadcaster.Event{
			V:       broadcaster.EventVersion,
			Type:    ev.Kind.String(),
			Account: string(ev.Account),
			Deposit: uint64(ev.Deposit),
			Seq:     seq,
		}.Encode()
		if err != nil {
			return err
		}
		if replay {
			_, err = s.exitWAL.PutIfAbsent(seq, payload)
		} else {
			err = s.exitWAL.PutNew(seq, payload)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Lookup returns a copy of the entry of account.
func (s *RegistryService) Lookup(account ledger.AccountID) (registry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Lookup(account)
}

// Balance returns the balances of account.
func (s *RegistryService) Balance(account ledger.AccountID) ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Account(account)
}

// LastSeq is the last sequence number issued.
func (s *RegistryService) LastSeq() uint64 {
	return s.seqGen.Current()
}

// Config returns the registry constants.
func (s *RegistryService) Config() registry.Config {
	return s.reg.Config()
}

package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelreg/domain/authority"
	"labelreg/domain/ledger"
	"labelreg/domain/registry"
	"labelreg/infra/sequence"
	entrywal "labelreg/infra/wal/entry"
	exitwal "labelreg/infra/wal/exit"
	"labelreg/jobs/broadcaster"
	"labelreg/snapshot"
)

var testConfig = registry.Config{MinLength: 3, MaxLength: 10, ReservationFee: 5}

type harness struct {
	dir    string
	svc    *RegistryService
	outbox *exitwal.ExitWAL
	book   *ledger.Ledger
}

func openOutbox(t *testing.T) *exitwal.ExitWAL {
	t.Helper()
	out, err := exitwal.OpenWithOptions("outbox", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = out.Close() })
	return out
}

// start opens and recovers a service over dir. Passing a nil outbox
// opens a fresh one.
func start(t *testing.T, dir string, cfg registry.Config, outbox *exitwal.ExitWAL) *harness {
	t.Helper()
	h := build(t, dir, cfg, outbox)
	require.NoError(t, h.svc.Recover(context.Background(), filepath.Join(dir, "snapshot")))
	return h
}

// reopen builds a service over dir and returns what Recover says.
func reopen(t *testing.T, dir string, cfg registry.Config) error {
	t.Helper()
	return build(t, dir, cfg, nil).svc.Recover(context.Background(), filepath.Join(dir, "snapshot"))
}

func build(t *testing.T, dir string, cfg registry.Config, outbox *exitwal.ExitWAL) *harness {
	t.Helper()
	journal, err := entrywal.Open(entrywal.Config{Dir: filepath.Join(dir, "journal"), SegmentSize: 512})
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })
	if outbox == nil {
		outbox = openOutbox(t)
	}

	book := ledger.New()
	svc, err := NewRegistryService(
		cfg,
		book,
		authority.NewStatic("root"),
		sequence.New(0),
		journal,
		outbox,
	)
	require.NoError(t, err)
	return &harness{dir: dir, svc: svc, outbox: outbox, book: book}
}

func genesis(t *testing.T, h *harness) {
	t.Helper()
	require.NoError(t, h.svc.ApplyGenesis(context.Background(), map[string]uint64{
		"alice": 100, "bob": 100, "carol": 3,
	}))
}

func outboxEvents(t *testing.T, out *exitwal.ExitWAL) []broadcaster.Event {
	t.Helper()
	var events []broadcaster.Event
	require.NoError(t, out.ScanPending(func(rec exitwal.ExitRecord) error {
		ev, err := broadcaster.DecodeEvent(rec.Payload)
		if err != nil {
			return err
		}
		events = append(events, ev)
		return nil
	}))
	return events
}

func TestScenariosThroughService(t *testing.T) {
	ctx := context.Background()
	h := start(t, t.TempDir(), testConfig, nil)
	genesis(t, h)

	require.ErrorIs(t, h.svc.Set(ctx, "alice", []byte("hi")), registry.ErrTooShort)
	require.NoError(t, h.svc.Set(ctx, "alice", []byte("hello")))
	assert.Equal(t, ledger.Account{Free: 95, Reserved: 5}, h.svc.Balance("alice"))
	require.NoError(t, h.svc.Set(ctx, "alice", []byte("world!")))
	assert.Equal(t, ledger.Account{Free: 95, Reserved: 5}, h.svc.Balance("alice"))

	e, ok := h.svc.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "world!", e.Label.String())

	deposit, err := h.svc.Clear(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.Balance(5), deposit)
	assert.Equal(t, ledger.Account{Free: 100}, h.svc.Balance("alice"))

	_, err = h.svc.Clear(ctx, "bob")
	require.ErrorIs(t, err, registry.ErrUnregistered)

	require.ErrorIs(t, h.svc.Set(ctx, "dave", []byte("broke")), ledger.ErrInsufficientBalance)

	events := outboxEvents(t, h.outbox)
	require.Len(t, events, 3)
	assert.Equal(t, "label_set", events[0].Type)
	assert.Equal(t, "label_changed", events[1].Type)
	assert.Equal(t, broadcaster.Event{
		V: 1, Type: "label_cleared", Account: "alice", Deposit: 5, Seq: events[2].Seq,
	}, events[2])
	assert.Less(t, events[0].Seq, events[1].Seq)
}

func TestPrivilegedOperations(t *testing.T) {
	ctx := context.Background()
	h := start(t, t.TempDir(), testConfig, nil)
	genesis(t, h)
	seq := h.svc.LastSeq()

	require.ErrorIs(t, h.svc.ForceSet(ctx, "bob", "alice", []byte("hello")), authority.ErrBadOrigin)
	require.ErrorIs(t, h.svc.Endow(ctx, "alice", "alice", 1), authority.ErrBadOrigin)
	_, err := h.svc.ForceClear(ctx, "bob", "alice")
	require.ErrorIs(t, err, authority.ErrBadOrigin)
	assert.Equal(t, seq, h.svc.LastSeq(), "unauthorized commands must not be journaled")

	require.NoError(t, h.svc.ForceSet(ctx, "root", "alice", []byte("hello")))
	assert.Equal(t, ledger.Balance(5), h.svc.Balance("alice").Reserved)

	require.NoError(t, h.svc.Endow(ctx, "root", "carol", 10))
	assert.Equal(t, ledger.Balance(13), h.svc.Balance("carol").Free)

	deposit, err := h.svc.ForceClear(ctx, "root", "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.Balance(5), deposit)
	assert.Equal(t, ledger.Account{Free: 100}, h.svc.Balance("alice"))
}

func TestRecoverReplaysJournal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	outbox := openOutbox(t)

	h := start(t, dir, testConfig, outbox)
	genesis(t, h)
	require.NoError(t, h.svc.Set(ctx, "alice", []byte("hello")))
	require.NoError(t, h.svc.Set(ctx, "bob", []byte("bobby")))
	require.Error(t, h.svc.Set(ctx, "carol", []byte("poor")))
	_, err := h.svc.Clear(ctx, "bob")
	require.NoError(t, err)
	require.NoError(t, h.svc.Endow(ctx, "root", "carol", 10))
	require.NoError(t, h.svc.ForceSet(ctx, "root", "carol", []byte("gift")))
	require.Error(t, h.svc.ForceSet(ctx, "root", "dave", []byte("gift")))
	require.NoError(t, h.svc.Close())
	lastSeq := h.svc.LastSeq()
	before := len(outboxEvents(t, outbox))

	// same outbox: nothing is added twice
	r := start(t, dir, testConfig, outbox)
	assert.Equal(t, lastSeq, r.svc.LastSeq())
	assert.Equal(t, h.book.Accounts(), r.book.Accounts())
	assert.Len(t, outboxEvents(t, outbox), before)

	e, ok := r.svc.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, registry.Entry{Label: registry.Label("hello"), Deposit: 5}, e)
	_, ok = r.svc.Lookup("bob")
	assert.False(t, ok)

	// genesis is not applied twice
	genesis(t, r)
	assert.Equal(t, lastSeq, r.svc.LastSeq())

	// new commands continue the sequence
	require.NoError(t, r.svc.Set(ctx, "bob", []byte("again")))
	assert.Equal(t, lastSeq+1, r.svc.LastSeq())
}

func TestRecoverRefillsLostOutbox(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	h := start(t, dir, testConfig, nil)
	genesis(t, h)
	require.NoError(t, h.svc.Set(ctx, "alice", []byte("hello")))
	require.NoError(t, h.svc.Set(ctx, "alice", []byte("again")))
	require.NoError(t, h.svc.Close())

	r := start(t, dir, testConfig, nil)
	events := outboxEvents(t, r.outbox)
	require.Len(t, events, 2)
	assert.Equal(t, "label_set", events[0].Type)
	assert.Equal(t, "label_changed", events[1].Type)
}

func TestSnapshotThenRecover(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	outbox := openOutbox(t)
	snapDir := filepath.Join(dir, "snapshot")

	h := start(t, dir, testConfig, outbox)
	genesis(t, h)
	for i := 0; i < 20; i++ {
		require.NoError(t, h.svc.Set(ctx, "alice", []byte(fmt.Sprintf("label-%02d", i))))
	}
	first, err := outbox.Get(h.svc.LastSeq())
	require.NoError(t, err)
	require.NoError(t, outbox.MarkAcked(first.Seq))

	seq, err := h.svc.TakeSnapshot(snapDir)
	require.NoError(t, err)
	assert.Equal(t, h.svc.LastSeq(), seq)
	_, err = outbox.Get(seq)
	require.ErrorIs(t, err, exitwal.ErrNotFound)

	require.NoError(t, h.svc.Set(ctx, "bob", []byte("after")))
	require.NoError(t, h.svc.Close())

	r := start(t, dir, testConfig, outbox)
	assert.Equal(t, h.svc.LastSeq(), r.svc.LastSeq())
	e, ok := r.svc.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "label-19", e.Label.String())
	_, ok = r.svc.Lookup("bob")
	assert.True(t, ok)
	assert.Equal(t, h.book.Accounts(), r.book.Accounts())
}

func TestRecoverRejectsChangedConstants(t *testing.T) {
	dir := t.TempDir()
	h := start(t, dir, testConfig, nil)
	genesis(t, h)
	_, err := h.svc.TakeSnapshot(filepath.Join(dir, "snapshot"))
	require.NoError(t, err)
	require.NoError(t, h.svc.Close())

	changed := testConfig
	changed.ReservationFee = 6
	require.ErrorIs(t, reopen(t, dir, changed), ErrConfigMismatch)
	require.NoError(t, reopen(t, dir, testConfig))
}

func TestRecoverRejectsChangedConstantsWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()
	h := start(t, dir, testConfig, nil)
	genesis(t, h)
	require.NoError(t, h.svc.Set(context.Background(), "alice", []byte("abc")))
	require.NoError(t, h.svc.Close())

	// "abc" would be rejected under the new minimum
	changed := testConfig
	changed.MinLength = 4
	require.ErrorIs(t, reopen(t, dir, changed), ErrConfigMismatch)
}

func TestRecoverRejectsChangedForceClearPolicy(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig
	cfg.ForceClear = registry.SlashDeposit

	h := start(t, dir, cfg, nil)
	genesis(t, h)
	require.NoError(t, h.svc.ForceSet(ctx, "root", "alice", []byte("hello")))
	_, err := h.svc.ForceClear(ctx, "root", "alice")
	require.NoError(t, err)
	assert.Equal(t, ledger.Account{Free: 95}, h.svc.Balance("alice"))
	require.NoError(t, h.svc.Close())

	changed := cfg
	changed.ForceClear = registry.ReturnDeposit
	require.ErrorIs(t, reopen(t, dir, changed), ErrConfigMismatch)

	r := start(t, dir, cfg, nil)
	assert.Equal(t, ledger.Account{Free: 95}, r.svc.Balance("alice"))
}

func TestRecoverRejectsChangedSlashDestination(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig
	cfg.ForceClear = registry.SlashDeposit
	cfg.SlashTo = "treasury"

	h := start(t, dir, cfg, nil)
	genesis(t, h)
	require.NoError(t, h.svc.Set(ctx, "bob", []byte("bobby")))
	_, err := h.svc.ForceClear(ctx, "root", "bob")
	require.NoError(t, err)
	assert.Equal(t, ledger.Account{Free: 5}, h.svc.Balance("treasury"))
	require.NoError(t, h.svc.Close())

	changed := cfg
	changed.SlashTo = ""
	require.ErrorIs(t, reopen(t, dir, changed), ErrConfigMismatch)
}

func TestRecoverJournalsConfigFirst(t *testing.T) {
	dir := t.TempDir()
	h := start(t, dir, testConfig, nil)
	assert.Equal(t, uint64(1), h.svc.LastSeq())
	genesis(t, h)
	require.NoError(t, h.svc.Close())

	var types []entrywal.RecordType
	_, err := entrywal.Replay(filepath.Join(dir, "journal"), 0, func(rec *entrywal.Record) error {
		types = append(types, rec.Type)
		if rec.Type == entrywal.RecordConfig {
			p, err := entrywal.UnmarshalParams(rec.Data)
			require.NoError(t, err)
			assert.Equal(t, paramsOf(testConfig), p)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []entrywal.RecordType{
		entrywal.RecordConfig, entrywal.RecordGenesis, entrywal.RecordGenesis, entrywal.RecordGenesis,
	}, types)
}

func TestRecoverRejectsJournalWithoutConfig(t *testing.T) {
	dir := t.TempDir()
	journal, err := entrywal.Open(entrywal.Config{Dir: filepath.Join(dir, "journal")})
	require.NoError(t, err)
	cmd := entrywal.Command{Target: "alice", Amount: 10}
	require.NoError(t, journal.Append(entrywal.NewRecord(entrywal.RecordGenesis, 1, cmd.Marshal())))
	require.NoError(t, journal.Close())

	require.ErrorIs(t, reopen(t, dir, testConfig), ErrConfigMismatch)
}

func TestSnapshotsRaceWithSubmitters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snapDir := filepath.Join(dir, "snapshot")
	h := start(t, dir, testConfig, nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_, err := h.svc.TakeSnapshot(snapDir)
				assert.NoError(t, err)
			}
		}()
	}

	for i := 0; i < 300; i++ {
		require.NoError(t, h.svc.Endow(ctx, "root", "dave", 1))
	}
	close(stop)
	wg.Wait()
	require.NoError(t, h.svc.Close())

	r := start(t, dir, testConfig, nil)
	assert.Equal(t, ledger.Account{Free: 300}, r.svc.Balance("dave"))
	assert.Equal(t, h.svc.LastSeq(), r.svc.LastSeq())
}

func TestSnapshotJobStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	h := start(t, dir, testConfig, nil)
	genesis(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := h.svc.StartSnapshotJob(ctx, filepath.Join(dir, "snapshot"), time.Millisecond)
	require.Eventually(t, func() bool {
		snap, err := snapshot.Read(filepath.Join(dir, "snapshot"))
		return err == nil && snap != nil && snap.Seq == h.svc.LastSeq()
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot job did not stop")
	}
}

func TestCancelledContext(t *testing.T) {
	h := start(t, t.TempDir(), testConfig, nil)
	genesis(t, h)
	seq := h.svc.LastSeq()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, h.svc.Set(ctx, "alice", []byte("hello")), context.Canceled)
	assert.Equal(t, seq, h.svc.LastSeq())
}

func TestConcurrentSubmitters(t *testing.T) {
	ctx := context.Background()
	h := start(t, t.TempDir(), testConfig, nil)
	require.NoError(t, h.svc.ApplyGenesis(ctx, func() map[string]uint64 {
		m := map[string]uint64{}
		for i := 0; i < 16; i++ {
			m[fmt.Sprintf("acct-%02d", i)] = 50
		}
		return m
	}()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			who := ledger.AccountID(fmt.Sprintf("acct-%02d", i))
			for j := 0; j < 5; j++ {
				assert.NoError(t, h.svc.Set(ctx, who, []byte(fmt.Sprintf("label-%d", j))))
			}
			if i%2 == 0 {
				_, err := h.svc.Clear(ctx, who)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 16; i++ {
		who := ledger.AccountID(fmt.Sprintf("acct-%02d", i))
		e, ok := h.svc.Lookup(who)
		bal := h.svc.Balance(who)
		if i%2 == 0 {
			assert.False(t, ok)
			assert.Equal(t, ledger.Account{Free: 50}, bal)
		} else {
			assert.True(t, ok)
			assert.Equal(t, "label-4", e.Label.String())
			assert.Equal(t, ledger.Account{Free: 45, Reserved: 5}, bal)
		}
	}
}

package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelreg/domain/authority"
	"labelreg/domain/ledger"
)

var scenarioConfig = Config{MinLength: 3, MaxLength: 10, ReservationFee: 5}

type fixture struct {
	reg    *Registry
	ledger *ledger.Ledger
	events *EventBuffer
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	l := ledger.New()
	for _, who := range []AccountID{"alice", "bob", "carol"} {
		require.NoError(t, l.Endow(who, 100))
	}
	events := &EventBuffer{}
	reg, err := New(cfg, Collaborators{
		Currency:   l,
		Authorizer: authority.NewStatic("root"),
		Slashed:    ledger.Burn{Ledger: l},
		Events:     events,
	})
	require.NoError(t, err)
	return &fixture{reg: reg, ledger: l, events: events}
}

func TestScenarios(t *testing.T) {
	f := newFixture(t, scenarioConfig)

	// A
	require.ErrorIs(t, f.reg.Set("alice", []byte("hi")), ErrTooShort)
	assert.Empty(t, f.events.Drain())
	assert.Equal(t, Balance(0), f.ledger.Account("alice").Reserved)

	// B
	require.NoError(t, f.reg.Set("alice", []byte("hello")))
	assert.Equal(t, Balance(5), f.ledger.Account("alice").Reserved)
	assert.Equal(t, []Event{{Kind: LabelSet, Account: "alice", Deposit: 5}}, f.events.Drain())

	// C
	require.NoError(t, f.reg.Set("alice", []byte("world!")))
	assert.Equal(t, Balance(5), f.ledger.Account("alice").Reserved)
	assert.Equal(t, []Event{{Kind: LabelChanged, Account: "alice"}}, f.events.Drain())
	e, ok := f.reg.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "world!", e.Label.String())
	assert.Equal(t, Balance(5), e.Deposit)

	// D
	deposit, err := f.reg.Clear("alice")
	require.NoError(t, err)
	assert.Equal(t, Balance(5), deposit)
	assert.Equal(t, ledger.Account{Free: 100}, f.ledger.Account("alice"))
	assert.Equal(t, []Event{{Kind: LabelCleared, Account: "alice", Deposit: 5}}, f.events.Drain())
	_, ok = f.reg.Lookup("alice")
	assert.False(t, ok)

	// E
	_, err = f.reg.Clear("bob")
	require.ErrorIs(t, err, ErrUnregistered)
	assert.Zero(t, f.reg.Len())
	assert.Empty(t, f.events.Drain())
}

func TestSetTooLong(t *testing.T) {
	f := newFixture(t, scenarioConfig)

	require.ErrorIs(t, f.reg.Set("alice", []byte("this is far too long")), ErrTooLong)
	assert.Zero(t, f.reg.Len())
}

func TestSetBoundsInclusive(t *testing.T) {
	f := newFixture(t, scenarioConfig)

	require.NoError(t, f.reg.Set("alice", []byte("abc")))
	require.NoError(t, f.reg.Set("bob", []byte("0123456789")))
}

func TestSetInsufficientBalancePropagates(t *testing.T) {
	f := newFixture(t, Config{MinLength: 1, MaxLength: 8, ReservationFee: 1000})

	err := f.reg.Set("alice", []byte("label"))
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	_, ok := f.reg.Lookup("alice")
	assert.False(t, ok)
	assert.Empty(t, f.events.Drain())
}

func TestSetCopiesInput(t *testing.T) {
	f := newFixture(t, scenarioConfig)
	raw := []byte("hello")

	require.NoError(t, f.reg.Set("alice", raw))
	raw[0] = 'j'

	e, _ := f.reg.Lookup("alice")
	assert.Equal(t, "hello", e.Label.String())
}

func TestForceSetRequiresAuthority(t *testing.T) {
	f := newFixture(t, scenarioConfig)

	err := f.reg.ForceSet("bob", "alice", []byte("hello"))
	require.ErrorIs(t, err, authority.ErrBadOrigin)
	assert.Zero(t, f.reg.Len())

	require.NoError(t, f.reg.ForceSet("root", "alice", []byte("hello")))
	assert.Equal(t, Balance(5), f.ledger.Account("alice").Reserved)
	assert.Equal(t, ledger.Account{}, f.ledger.Account("root"))
	assert.Equal(t, []Event{{Kind: LabelSet, Account: "alice", Deposit: 5}}, f.events.Drain())
}

func TestForceSetValidatesBeforeTouchingState(t *testing.T) {
	f := newFixture(t, scenarioConfig)

	require.ErrorIs(t, f.reg.ForceSet("root", "alice", []byte("x")), ErrTooShort)
	assert.Zero(t, f.reg.Len())
}

func TestForceClearReturnsDeposit(t *testing.T) {
	f := newFixture(t, scenarioConfig)
	require.NoError(t, f.reg.Set("alice", []byte("hello")))
	f.events.Drain()

	_, err := f.reg.ForceClear("bob", "alice")
	require.ErrorIs(t, err, authority.ErrBadOrigin)

	deposit, err := f.reg.ForceClear("root", "alice")
	require.NoError(t, err)
	assert.Equal(t, Balance(5), deposit)
	assert.Equal(t, ledger.Account{Free: 100}, f.ledger.Account("alice"))
	assert.Equal(t, []Event{{Kind: LabelCleared, Account: "alice", Deposit: 5}}, f.events.Drain())

	_, err = f.reg.ForceClear("root", "alice")
	require.ErrorIs(t, err, ErrUnregistered)
}

func TestForceClearSlashes(t *testing.T) {
	cfg := scenarioConfig
	cfg.ForceClear = SlashDeposit
	f := newFixture(t, cfg)
	require.NoError(t, f.reg.Set("alice", []byte("hello")))
	f.events.Drain()

	deposit, err := f.reg.ForceClear("root", "alice")
	require.NoError(t, err)
	assert.Equal(t, Balance(5), deposit)
	assert.Equal(t, ledger.Account{Free: 95}, f.ledger.Account("alice"))
	assert.Equal(t, Balance(295), f.ledger.TotalIssuance())
	assert.Equal(t, []Event{{Kind: LabelSlashed, Account: "alice", Deposit: 5}}, f.events.Drain())

	// self-clear always returns the deposit
	require.NoError(t, f.reg.Set("bob", []byte("hello")))
	_, err = f.reg.Clear("bob")
	require.NoError(t, err)
	assert.Equal(t, ledger.Account{Free: 100}, f.ledger.Account("bob"))
}

type leakyCurrency struct {
	*ledger.Ledger
}

func (leakyCurrency) Unreserve(AccountID, Balance) Balance { return 1 }

func TestClearShortfallPanics(t *testing.T) {
	l := ledger.New()
	require.NoError(t, l.Endow("alice", 10))
	reg, err := New(scenarioConfig, Collaborators{
		Currency:   leakyCurrency{l},
		Authorizer: authority.NewStatic(),
	})
	require.NoError(t, err)
	require.NoError(t, reg.Set("alice", []byte("hello")))

	defer func() {
		v := recover()
		var iv *InvariantViolation
		require.True(t, errors.As(v.(error), &iv), "panic value %v", v)
		assert.Equal(t, Balance(1), iv.Shortfall)
		assert.Equal(t, AccountID("alice"), iv.Account)
		_, ok := reg.Lookup("alice")
		assert.True(t, ok)
	}()
	_, _ = reg.Clear("alice")
	t.Fatal("expected panic")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"scenario", scenarioConfig, true},
		{"zero min", Config{MaxLength: 1}, true},
		{"zero max", Config{}, false},
		{"inverted", Config{MinLength: 5, MaxLength: 4}, false},
		{"bad policy", Config{MaxLength: 4, ForceClear: 9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestParseForceClearPolicy(t *testing.T) {
	p, err := ParseForceClearPolicy("slash")
	require.NoError(t, err)
	assert.Equal(t, SlashDeposit, p)

	p, err = ParseForceClearPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ReturnDeposit, p)

	_, err = ParseForceClearPolicy("burn")
	require.Error(t, err)
}

func TestEntriesRestore(t *testing.T) {
	f := newFixture(t, scenarioConfig)
	require.NoError(t, f.reg.Set("bob", []byte("bobby")))
	require.NoError(t, f.reg.Set("alice", []byte("alicia")))

	other, err := New(scenarioConfig, Collaborators{})
	require.NoError(t, err)
	other.Restore(f.reg.Entries())

	assert.Equal(t, f.reg.Entries(), other.Entries())
	assert.Equal(t, AccountID("alice"), other.Entries()[0].Account)
}

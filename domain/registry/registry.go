package registry

import (
	"sort"

	"labelreg/domain/ledger"
)

// Currency is the balance collaborator deposits are escrowed with.
type Currency interface {
	Reserve(who AccountID, amount Balance) error
	// Unreserve returns the part of amount it could not release.
	Unreserve(who AccountID, amount Balance) Balance
	SlashReserved(who AccountID, amount Balance) (ledger.Imbalance, Balance)
}

// Authorizer gates the privileged operations.
type Authorizer interface {
	AuthorizeForce(who AccountID) error
}

// Collaborators are the external parties a Registry talks to.
type Collaborators struct {
	Currency   Currency
	Authorizer Authorizer
	Slashed    ledger.OnSlashed
	Events     EventSink
}

// Registry maps accounts to their single label entry.
type Registry struct {
	cfg     Config
	deps    Collaborators
	entries map[AccountID]Entry
}

func New(cfg Config, deps Collaborators) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		cfg:     cfg,
		deps:    deps,
		entries: make(map[AccountID]Entry),
	}, nil
}

func (r *Registry) Config() Config {
	return r.cfg
}

// ──────────────────────────────────────────────────────────
// Transitions
// ──────────────────────────────────────────────────────────

// Set registers or replaces the label of caller.
func (r *Registry) Set(caller AccountID, raw []byte) error {
	return r.set(caller, raw)
}

// ForceSet does what Set does for target once authority is authorized.
func (r *Registry) ForceSet(authority, target AccountID, raw []byte) error {
	if err := r.deps.Authorizer.AuthorizeForce(authority); err != nil {
		return err
	}
	return r.set(target, raw)
}

// Clear removes the label of caller and returns the unreserved deposit.
func (r *Registry) Clear(caller AccountID) (Balance, error) {
	return r.clear(caller, ReturnDeposit)
}

// ForceClear removes the label of target once authority is authorized.
// The deposit is returned or slashed according to the configured policy.
func (r *Registry) ForceClear(authority, target AccountID) (Balance, error) {
	if err := r.deps.Authorizer.AuthorizeForce(authority); err != nil {
		return 0, err
	}
	return r.clear(target, r.cfg.ForceClear)
}

func (r *Registry) set(who AccountID, raw []byte) error {
	label, err := r.cfg.ValidateLabel(raw)
	if err != nil {
		return err
	}

	if e, ok := r.lookup(who); ok {
		e.Label = label
		r.entries[who] = e
		r.emit(Event{Kind: LabelChanged, Account: who})
		return nil
	}

	deposit := r.cfg.ReservationFee
	if err := r.deps.Currency.Reserve(who, deposit); err != nil {
		return err
	}
	r.entries[who] = Entry{Label: label, Deposit: deposit}
	r.emit(Event{Kind: LabelSet, Account: who, Deposit: deposit})
	return nil
}

func (r *Registry) clear(who AccountID, policy ForceClearPolicy) (Balance, error) {
	e, ok := r.lookup(who)
	if !ok {
		return 0, ErrUnregistered
	}

	kind := LabelCleared
	switch policy {
	case SlashDeposit:
		imb, short := r.deps.Currency.SlashReserved(who, e.Deposit)
		r.assertSettled("slash", who, e.Deposit, short)
		if r.deps.Slashed != nil {
			r.deps.Slashed.OnSlashed(imb)
		}
		kind = LabelSlashed
	default:
		short := r.deps.Currency.Unreserve(who, e.Deposit)
		r.assertSettled("unreserve", who, e.Deposit, short)
	}

	delete(r.entries, who)
	r.emit(Event{Kind: kind, Account: who, Deposit: e.Deposit})
	return e.Deposit, nil
}

func (r *Registry) assertSettled(op string, who AccountID, deposit, shortfall Balance) {
	if shortfall != 0 {
		panic(&InvariantViolation{Op: op, Account: who, Deposit: deposit, Shortfall: shortfall})
	}
}

func (r *Registry) emit(e Event) {
	if r.deps.Events != nil {
		r.deps.Events.Emit(e)
	}
}

// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────

func (r *Registry) lookup(who AccountID) (Entry, bool) {
	e, ok := r.entries[who]
	return e, ok
}

// Lookup returns a copy of the entry of who.
func (r *Registry) Lookup(who AccountID) (Entry, bool) {
	e, ok := r.lookup(who)
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Record pairs an account with its entry.
type Record struct {
	Account AccountID
	Entry   Entry
}

// Entries returns a copy of every row, ordered by account.
func (r *Registry) Entries() []Record {
	out := make([]Record, 0, len(r.entries))
	for who, e := range r.entries {
		out = append(out, Record{Account: who, Entry: e.clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out
}

// Restore replaces every row. It does not touch the currency; the
// caller restores the matching reserved balances.
func (r *Registry) Restore(records []Record) {
	r.entries = make(map[AccountID]Entry, len(records))
	for _, rec := range records {
		r.entries[rec.Account] = rec.Entry.clone()
	}
}

package ledger

import (
	"errors"
	"math"
	"sort"
)

var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrOverflow            = errors.New("ledger: balance overflow")
)

// Balance is an amount of the native currency.
type Balance uint64

// AccountID identifies a balance holder.
type AccountID string

// Account holds the two balances of one holder.
type Account struct {
	Free     Balance
	Reserved Balance
}

// Total is free plus reserved.
func (a Account) Total() Balance {
	return a.Free + a.Reserved
}

// Imbalance is value removed from an account that has not been
// accounted for anywhere else yet.
type Imbalance struct {
	From   AccountID
	Amount Balance
}

// Ledger is single-writer and deterministic.
type Ledger struct {
	accounts map[AccountID]Account
	issuance Balance
}

func New() *Ledger {
	return &Ledger{accounts: make(map[AccountID]Account)}
}

// Account returns a copy of the balances of id. Unknown accounts are zero.
func (l *Ledger) Account(id AccountID) Account {
	return l.accounts[id]
}

// TotalIssuance is the sum of every balance ever endowed minus burns.
func (l *Ledger) TotalIssuance() Balance {
	return l.issuance
}

// Endow mints amount into the free balance of id.
func (l *Ledger) Endow(id AccountID, amount Balance) error {
	acc := l.accounts[id]
	if acc.Free > math.MaxUint64-amount || l.issuance > math.MaxUint64-amount {
		return ErrOverflow
	}
	acc.Free += amount
	l.issuance += amount
	l.put(id, acc)
	return nil
}

// Reserve moves amount from free to reserved. Nothing changes on error.
func (l *Ledger) Reserve(id AccountID, amount Balance) error {
	acc := l.accounts[id]
	if acc.Free < amount {
		return ErrInsufficientBalance
	}
	acc.Free -= amount
	acc.Reserved += amount
	l.put(id, acc)
	return nil
}

// Unreserve moves up to amount from reserved back to free and returns
// the part that could not be moved.
func (l *Ledger) Unreserve(id AccountID, amount Balance) Balance {
	acc := l.accounts[id]
	actual := min(amount, acc.Reserved)
	acc.Reserved -= actual
	acc.Free += actual
	l.put(id, acc)
	return amount - actual
}

// SlashReserved removes up to amount from the reserved balance of id.
// It returns the removed value as an imbalance and the shortfall.
func (l *Ledger) SlashReserved(id AccountID, amount Balance) (Imbalance, Balance) {
	acc := l.accounts[id]
	actual := min(amount, acc.Reserved)
	acc.Reserved -= actual
	l.put(id, acc)
	return Imbalance{From: id, Amount: actual}, amount - actual
}

// Accounts returns a copy of every non-empty account, ordered by id.
func (l *Ledger) Accounts() []AccountBalance {
	out := make([]AccountBalance, 0, len(l.accounts))
	for id, acc := range l.accounts {
		out = append(out, AccountBalance{ID: id, Account: acc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore replaces the ledger contents, e.g. from a snapshot.
func (l *Ledger) Restore(accounts []AccountBalance, issuance Balance) {
	l.accounts = make(map[AccountID]Account, len(accounts))
	for _, a := range accounts {
		l.put(a.ID, a.Account)
	}
	l.issuance = issuance
}

// AccountBalance pairs an id with its balances.
type AccountBalance struct {
	ID      AccountID
	Account Account
}

func (l *Ledger) put(id AccountID, acc Account) {
	if acc.Total() == 0 {
		delete(l.accounts, id)
		return
	}
	l.accounts[id] = acc
}

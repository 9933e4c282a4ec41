package ledger

// OnSlashed disposes of value slashed from an account.
type OnSlashed interface {
	OnSlashed(Imbalance)
}

// Burn drops slashed value, shrinking total issuance.
type Burn struct {
	Ledger *Ledger
}

func (b Burn) OnSlashed(imb Imbalance) {
	b.Ledger.issuance -= imb.Amount
}

// Treasury credits slashed value to a fixed account.
type Treasury struct {
	Ledger  *Ledger
	Account AccountID
}

func (t Treasury) OnSlashed(imb Imbalance) {
	acc := t.Ledger.accounts[t.Account]
	acc.Free += imb.Amount
	t.Ledger.put(t.Account, acc)
}

// SlashHandler returns Treasury crediting to, or Burn when to is empty.
func SlashHandler(book *Ledger, to AccountID) OnSlashed {
	if to == "" {
		return Burn{Ledger: book}
	}
	return Treasury{Ledger: book, Account: to}
}

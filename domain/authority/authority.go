// Package authority decides which accounts may act on behalf of others.
package authority

import (
	"errors"

	"labelreg/domain/ledger"
)

// ErrBadOrigin is returned when a caller is not privileged.
var ErrBadOrigin = errors.New("authority: bad origin")

// Static grants privilege to a fixed set of accounts.
type Static struct {
	allowed map[ledger.AccountID]struct{}
}

func NewStatic(accounts ...ledger.AccountID) *Static {
	s := &Static{allowed: make(map[ledger.AccountID]struct{}, len(accounts))}
	for _, a := range accounts {
		if a == "" {
			continue
		}
		s.allowed[a] = struct{}{}
	}
	return s
}

func (s *Static) AuthorizeForce(who ledger.AccountID) error {
	if _, ok := s.allowed[who]; !ok {
		return ErrBadOrigin
	}
	return nil
}

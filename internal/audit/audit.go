// Package audit implements the stateless invariant checks the coordinator
// runs after every mutating command. It takes read-only snapshots of the
// Engine and Ledger state it's handed; it owns nothing and mutates
// nothing, so a failed check never itself corrupts the state it's
// reporting on.
package audit

import (
	"errors"
	"fmt"

	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/ledger"
	"github.com/saiexchange/predictx/internal/market"
)

// ErrInvariantViolated wraps the first failing invariant's detail. The
// coordinator treats any non-nil error from Check as fatal: the in-memory
// state is poisoned and further commands are refused until a reload.
var ErrInvariantViolated = errors.New("audit: invariant violated")

func violated(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolated, fmt.Sprintf(format, args...))
}

// Check runs every invariant in turn, short-circuiting on the first
// failure so the caller always gets exactly one actionable detail rather
// than a pile of derived symptoms.
func Check(e *engine.Engine, l *ledger.Ledger) error {
	if err := checkContractConservation(e); err != nil {
		return err
	}
	if err := checkRegistryBijectivity(e); err != nil {
		return err
	}
	if err := checkBookLedgerConsistency(e, l); err != nil {
		return err
	}
	if err := checkCashConservation(l); err != nil {
		return err
	}
	return nil
}

// checkContractConservation verifies that for every market, the sum of
// positions across all users is zero: contracts are only ever created as
// matched long/short pairs.
func checkContractConservation(e *engine.Engine) error {
	for _, m := range e.Markets() {
		b, ok := e.Book(m)
		if !ok {
			continue
		}
		var sum int64
		for _, p := range b.Positions() {
			sum += p
		}
		if sum != 0 {
			return violated("market %s: positions sum to %d, want 0", m, sum)
		}
	}
	return nil
}

// checkRegistryBijectivity verifies the engine's global order registry's
// key set equals the union of live order ids across all books.
func checkRegistryBijectivity(e *engine.Engine) error {
	live := make(map[market.OrderID]struct{})
	for _, m := range e.Markets() {
		b, ok := e.Book(m)
		if !ok {
			continue
		}
		for _, id := range b.LiveOrderIDs() {
			live[id] = struct{}{}
		}
	}
	registry := make(map[market.OrderID]struct{})
	for _, id := range e.RegistryOrderIDs() {
		registry[id] = struct{}{}
	}
	for id := range live {
		if _, ok := registry[id]; !ok {
			return violated("order %d live in a book but absent from the registry", id)
		}
	}
	for id := range registry {
		if _, ok := live[id]; !ok {
			return violated("order %d in the registry but not live in any book", id)
		}
	}
	return nil
}

// checkBookLedgerConsistency verifies every book's per-user position
// agrees exactly with that user's ledger portfolio entry for the same
// market, in both directions.
func checkBookLedgerConsistency(e *engine.Engine, l *ledger.Ledger) error {
	for _, m := range e.Markets() {
		b, ok := e.Book(m)
		if !ok {
			continue
		}
		for user, bookPos := range b.Positions() {
			ledgerPos := l.Account(user).Portfolio[m]
			if bookPos != ledgerPos {
				return violated("market %s user %d: book position %d, ledger portfolio %d", m, user, bookPos, ledgerPos)
			}
		}
	}
	for _, user := range l.Accounts() {
		acc := l.Account(user)
		for m, ledgerPos := range acc.Portfolio {
			b, ok := e.Book(m)
			if !ok {
				if ledgerPos != 0 {
					return violated("market %s user %d: ledger portfolio %d for a market the engine doesn't know", m, user, ledgerPos)
				}
				continue
			}
			if b.Positions()[user] != ledgerPos {
				return violated("market %s user %d: ledger portfolio %d, book position %d", m, user, ledgerPos, b.Positions()[user])
			}
		}
	}
	return nil
}

// checkCashConservation verifies the sum of every account's available plus
// locked cents equals total minted minus total burned. Settlement trades
// never appear in this equation directly: terminal_price * position summed
// over a market's users is exactly zero whenever contract conservation
// holds, since settlement credits and debits are the same terminal_price
// applied to positions that themselves sum to zero. Burn's floor at zero
// never threatens this either — Ledger.TotalBurned() only ever counts cash
// actually removed, never the requested-but-unavailable shortfall.
func checkCashConservation(l *ledger.Ledger) error {
	var sum int64
	for _, user := range l.Accounts() {
		acc := l.Account(user)
		sum += acc.AvailableCents + acc.LockedCents
	}
	want := l.TotalMinted() - l.TotalBurned()
	if sum != want {
		return violated("sum(available+locked) = %d, want minted(%d) - burned(%d) = %d", sum, l.TotalMinted(), l.TotalBurned(), want)
	}
	return nil
}

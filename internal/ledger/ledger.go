// Package ledger tracks per-user available/locked cash and per-market
// position, and applies the cash side-effects of every trade and
// settlement the engine produces. Like Book and Engine it is touched only
// from the Coordinator's single goroutine and carries no lock of its own.
//
// All arithmetic is integer cents; decimal.Decimal only appears at the
// snapshot/wire boundary via internal/money, the same split the core keeps
// between Price (int64 cents) and the dollar strings on the wire.
package ledger

import (
	"github.com/rs/zerolog/log"

	"github.com/saiexchange/predictx/internal/market"
)

// Account is one user's cash and positions. Cents are always
// non-negative except as noted on ApplySettlementTrade.
type Account struct {
	AvailableCents int64
	LockedCents    int64
	Portfolio      map[market.MarketID]int64
}

func newAccount() *Account {
	return &Account{Portfolio: make(map[market.MarketID]int64)}
}

// Ledger owns every user's Account plus the running totals used by the
// auditor's cash-conservation check.
type Ledger struct {
	accounts     map[market.UserID]*Account
	totalMinted  int64
	totalBurned  int64
	// burnShortfall accumulates burn amounts requested but not applied
	// because available funds fell short. It never enters totalBurned, so
	// the auditor's cash check has no need to read it (see DESIGN.md).
	burnShortfall int64
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[market.UserID]*Account)}
}

func (l *Ledger) account(user market.UserID) *Account {
	a, ok := l.accounts[user]
	if !ok {
		a = newAccount()
		l.accounts[user] = a
	}
	return a
}

// Account returns a read-only copy of user's balances, for the coordinator's
// balance query and the auditor's invariant checks. A never-seen user reads
// as a zeroed, empty account.
func (l *Ledger) Account(user market.UserID) Account {
	a, ok := l.accounts[user]
	if !ok {
		return Account{Portfolio: map[market.MarketID]int64{}}
	}
	portfolio := make(map[market.MarketID]int64, len(a.Portfolio))
	for m, p := range a.Portfolio {
		portfolio[m] = p
	}
	return Account{AvailableCents: a.AvailableCents, LockedCents: a.LockedCents, Portfolio: portfolio}
}

// Accounts returns every known user id, for the auditor's full-ledger scans.
func (l *Ledger) Accounts() []market.UserID {
	out := make([]market.UserID, 0, len(l.accounts))
	for id := range l.accounts {
		out = append(out, id)
	}
	return out
}

// LockForBuy moves price*qty from available to locked ahead of a Buy
// order's submission. Sell orders never lock cash: short sales create
// contracts as a long/short pair rather than drawing on a cash reserve.
func (l *Ledger) LockForBuy(user market.UserID, price market.Price, qty market.Quantity) error {
	cost := int64(price) * int64(qty)
	a := l.account(user)
	if a.AvailableCents < cost {
		return ErrInsufficientFunds
	}
	a.AvailableCents -= cost
	a.LockedCents += cost
	return nil
}

// ReleaseLock is LockForBuy's inverse: used on cancel of a resting buy, and
// on the price-improvement refund within apply_trade's caller.
func (l *Ledger) ReleaseLock(user market.UserID, price market.Price, qty market.Quantity) {
	amount := int64(price) * int64(qty)
	a := l.account(user)
	a.LockedCents -= amount
	a.AvailableCents += amount
}

// ApplyTrade applies one matched trade: the buyer's locked cash at the
// trade price is consumed (not returned to available — any difference
// between the buyer's submitted price and the trade price is the caller's
// responsibility via ReleaseLock, applied before this call), the seller is
// credited, and both users' positions move.
func (l *Ledger) ApplyTrade(m market.MarketID, buyer, seller market.UserID, price market.Price, qty market.Quantity) {
	proceeds := int64(price) * int64(qty)

	b := l.account(buyer)
	b.LockedCents -= proceeds
	b.Portfolio[m] += int64(qty)

	s := l.account(seller)
	s.AvailableCents += proceeds
	s.Portfolio[m] -= int64(qty)

	log.Debug().
		Str("market", m.String()).
		Int64("buyer", int64(buyer)).
		Int64("seller", int64(seller)).
		Int64("price", int64(price)).
		Int64("qty", int64(qty)).
		Msg("ledger: trade applied")
}

// ApplySettlementTrade applies one synthetic settlement trade between user
// and the House. side is the user's side in that trade: Sell means the
// user held a long position liquidated to House (credit); Buy means the
// user held a short position closed against House (debit). The user's
// portfolio slot for m is zeroed regardless of sign.
//
// Unlike Burn, this debit is not floored at zero: a terminal settlement at
// the unfavorable side of a short position can legitimately take a user's
// available cash negative, recording a debt rather than silently
// forgiving it. The auditor's cash-conservation check accounts for this.
func (l *Ledger) ApplySettlementTrade(user market.UserID, m market.MarketID, side market.Side, qty market.Quantity, terminalPrice market.Price) {
	amount := int64(terminalPrice) * int64(qty)
	a := l.account(user)
	if side == market.Sell {
		a.AvailableCents += amount
	} else {
		a.AvailableCents -= amount
	}
	delete(a.Portfolio, m)
}

// Mint credits user's available cash, modelling an external economic event
// (e.g. activity-based reward accrual). amountCents must be non-negative.
func (l *Ledger) Mint(user market.UserID, amountCents int64) int64 {
	a := l.account(user)
	a.AvailableCents += amountCents
	l.totalMinted += amountCents
	return amountCents
}

// Burn debits user's available cash by up to amountCents, modelling an
// external economic event (e.g. usage-based decay). The debit never takes
// available below zero; only the applied amount counts toward TotalBurned,
// so the auditor's cash-conservation check holds without it, and any
// shortfall is tracked separately in BurnShortfall. Returns the amount
// actually burned.
func (l *Ledger) Burn(user market.UserID, amountCents int64) int64 {
	a := l.account(user)
	applied := amountCents
	if a.AvailableCents < applied {
		applied = a.AvailableCents
	}
	if applied < 0 {
		applied = 0
	}
	a.AvailableCents -= applied
	l.totalBurned += applied
	l.burnShortfall += amountCents - applied
	return applied
}

// TotalMinted and TotalBurned report the running conservation counters used
// by the auditor's cash-conservation invariant.
func (l *Ledger) TotalMinted() int64 { return l.totalMinted }
func (l *Ledger) TotalBurned() int64 { return l.totalBurned }
func (l *Ledger) BurnShortfall() int64 { return l.burnShortfall }

// Restore rebuilds a ledger from persisted per-user state, for snapshot
// load. totalMinted/totalBurned are not part of the persisted snapshot
// layout (spec's economy map carries only available/locked/portfolio), so
// history before the snapshot is gone; Restore seeds totalMinted with the
// sum of every restored balance so the very first post-load audit check
// sees a conserved ledger, as if the snapshot's cash had been minted in a
// single step immediately before restore.
func Restore(accounts map[market.UserID]Account) *Ledger {
	l := New()
	for user, acc := range accounts {
		portfolio := make(map[market.MarketID]int64, len(acc.Portfolio))
		for m, p := range acc.Portfolio {
			portfolio[m] = p
		}
		l.accounts[user] = &Account{AvailableCents: acc.AvailableCents, LockedCents: acc.LockedCents, Portfolio: portfolio}
		l.totalMinted += acc.AvailableCents + acc.LockedCents
	}
	return l
}

// Package engine owns every market's Book plus the global order registry
// that lets the coordinator cancel any order in O(1) without knowing which
// market it belongs to. It is the router between the coordinator and the
// single-market matchers in package book.
package engine

import (
	"errors"

	"github.com/saiexchange/predictx/internal/book"
	"github.com/saiexchange/predictx/internal/market"
)

var (
	// ErrUnknownMarket is returned by Snapshot for a market that has never
	// been created.
	ErrUnknownMarket = errors.New("engine: unknown market")
)

type registryEntry struct {
	market market.MarketID
	side   market.Side
	price  market.Price
	user   market.UserID
}

// Engine routes operations to per-market books and maintains the global
// order-id registry used for O(1) cancellation.
type Engine struct {
	books    map[market.MarketID]*book.Book
	registry map[market.OrderID]registryEntry
}

// New creates an empty engine with no markets.
func New() *Engine {
	return &Engine{
		books:    make(map[market.MarketID]*book.Book),
		registry: make(map[market.OrderID]registryEntry),
	}
}

// Place ensures the market exists (creating it, active, on first contact,
// naming it from name), then delegates to its book. An id already live in
// any market is rejected with book.ErrDuplicateOrderID. Trade errors from
// the book (inactive market, duplicate id, non-positive price/qty)
// propagate unchanged.
func (e *Engine) Place(m market.MarketID, name string, side market.Side, price market.Price, qty market.Quantity, id market.OrderID, user market.UserID) ([]market.Trade, market.Quantity, error) {
	if _, exists := e.registry[id]; exists {
		return nil, 0, book.ErrDuplicateOrderID
	}
	b, ok := e.books[m]
	if !ok {
		b = book.New(m, name)
		e.books[m] = b
	}

	trades, remaining, err := b.Place(side, price, qty, id, user)
	if err != nil {
		return nil, 0, err
	}

	// Every maker fully consumed by these trades is already gone from the
	// book's own index; reconcile the global registry to match.
	e.dropFilledMakers(b, m)

	if remaining > 0 {
		e.registry[id] = registryEntry{market: m, side: side, price: price, user: user}
	}

	return trades, remaining, nil
}

// dropFilledMakers removes any registry entry for m whose order no longer
// rests in b. The book is the source of truth for liveness; the registry
// is a derived index kept in lockstep with it after every mutating call.
func (e *Engine) dropFilledMakers(b *book.Book, m market.MarketID) {
	live := make(map[market.OrderID]struct{}, len(b.LiveOrderIDs()))
	for _, id := range b.LiveOrderIDs() {
		live[id] = struct{}{}
	}
	for id, entry := range e.registry {
		if entry.market != m {
			continue
		}
		if _, ok := live[id]; !ok {
			delete(e.registry, id)
		}
	}
}

// Cancel looks up the owning market in O(1), delegates to that book, and
// removes the order from the registry. Returns the order's prior state so
// the caller (the coordinator) can compute a Ledger refund.
func (e *Engine) Cancel(id market.OrderID) (market.Order, error) {
	entry, ok := e.registry[id]
	if !ok {
		return market.Order{}, book.ErrUnknownOrder
	}
	b := e.books[entry.market]
	order, err := b.Cancel(id)
	if err != nil {
		return market.Order{}, err
	}
	delete(e.registry, id)
	return order, nil
}

// OwnerOf reports the user id that placed a still-live order, for callers
// that want to verify order ownership before canceling.
func (e *Engine) OwnerOf(id market.OrderID) (market.UserID, bool) {
	entry, ok := e.registry[id]
	if !ok {
		return 0, false
	}
	return entry.user, true
}

// SettleAllForSubject settles every market on subjectID: terminal price is
// 1 if observedValue >= that market's threshold, else 0. Each matching
// market settles independently, so distinct thresholds on the same subject
// may settle to different terminal prices.
func (e *Engine) SettleAllForSubject(subjectID string, observedValue int64) []market.Trade {
	var all []market.Trade
	for id, b := range e.books {
		if id.SubjectID != subjectID || !b.Active() {
			continue
		}
		terminal := market.Price(0)
		if observedValue >= id.Threshold {
			terminal = market.Price(1)
		}
		trades, canceled := b.Settle(terminal)
		for _, oid := range canceled {
			delete(e.registry, oid)
		}
		all = append(all, trades...)
	}
	return all
}

// MarketSummary is a row of engine.ListActiveMarkets' output.
type MarketSummary struct {
	Market   market.MarketID
	Name     string
	BestBid  market.Price
	HasBid   bool
	BestAsk  market.Price
	HasAsk   bool
	Active   bool
}

// ListActiveMarkets returns every known market with its best bid/ask.
func (e *Engine) ListActiveMarkets() []MarketSummary {
	out := make([]MarketSummary, 0, len(e.books))
	for id, b := range e.books {
		s := MarketSummary{Market: id, Name: b.Name, Active: b.Active()}
		if bid, ok := b.BestBid(); ok {
			s.BestBid, s.HasBid = bid, true
		}
		if ask, ok := b.BestAsk(); ok {
			s.BestAsk, s.HasAsk = ask, true
		}
		out = append(out, s)
	}
	return out
}

// Snapshot returns the book depth for one market.
func (e *Engine) Snapshot(m market.MarketID) (bids, asks []book.LevelView, err error) {
	b, ok := e.books[m]
	if !ok {
		return nil, nil, ErrUnknownMarket
	}
	bids, asks = b.Snapshot()
	return bids, asks, nil
}

// Book exposes the raw per-market book, for the auditor and snapshot
// packages that need lower-level access than the router API above.
func (e *Engine) Book(m market.MarketID) (*book.Book, bool) {
	b, ok := e.books[m]
	return b, ok
}

// Markets returns every known market id, for iteration by the auditor and
// snapshot packages.
func (e *Engine) Markets() []market.MarketID {
	out := make([]market.MarketID, 0, len(e.books))
	for id := range e.books {
		out = append(out, id)
	}
	return out
}

// RegistryOrderIDs returns the live keys of the global order registry, for
// the auditor's bijectivity check.
func (e *Engine) RegistryOrderIDs() []market.OrderID {
	out := make([]market.OrderID, 0, len(e.registry))
	for id := range e.registry {
		out = append(out, id)
	}
	return out
}

// EnsureMarket creates an empty active book for m if it doesn't already
// exist, naming it name. Used by snapshot restore, where books must exist
// before their resting orders can be replayed into them.
func (e *Engine) EnsureMarket(m market.MarketID, name string) *book.Book {
	b, ok := e.books[m]
	if !ok {
		b = book.New(m, name)
		e.books[m] = b
	}
	return b
}

// RegisterLiveOrder adds an entry to the global registry directly. Used by
// snapshot restore after a book's resting orders have been replayed into
// it, to rebuild the registry without re-deriving it from trades.
func (e *Engine) RegisterLiveOrder(id market.OrderID, m market.MarketID, side market.Side, price market.Price, user market.UserID) {
	e.registry[id] = registryEntry{market: m, side: side, price: price, user: user}
}

// Package book implements a single market's order book: matching, resting,
// cancellation, and settlement under price-time priority.
//
// Two tidwall/btree ordered trees (bids high-first, asks low-first) map
// price to a priceLevel; an order-id index gives O(1) cancellation without
// lazy deletion, since the btree is itself the source of truth for which
// prices are live (no stale entries ever linger in it - a level is removed
// from the tree the instant it empties).
package book

import (
	"container/list"

	"github.com/tidwall/btree"

	"github.com/saiexchange/predictx/internal/market"
)

type levels = btree.BTreeG[*priceLevel]

// Book is one market's order book.
type Book struct {
	Market market.MarketID
	Name   string
	active bool

	bids *levels
	asks *levels

	index     map[market.OrderID]orderHandle
	positions map[market.UserID]int64

	nextTimestamp int64
}

// New creates an empty, active book for the given market.
func New(m market.MarketID, name string) *Book {
	return &Book{
		Market: m,
		Name:   name,
		active: true,
		bids: btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price > b.price // highest bid first
		}),
		asks: btree.NewBTreeG(func(a, b *priceLevel) bool {
			return a.price < b.price // lowest ask first
		}),
		index:     make(map[market.OrderID]orderHandle),
		positions: make(map[market.UserID]int64),
	}
}

// Active reports whether the market still accepts orders.
func (b *Book) Active() bool { return b.active }

// Positions returns a copy of the per-user net position map, for
// observability and auditing. Callers must not rely on iteration order.
func (b *Book) Positions() map[market.UserID]int64 {
	out := make(map[market.UserID]int64, len(b.positions))
	for u, p := range b.positions {
		out[u] = p
	}
	return out
}

// LiveOrderIDs returns every order id currently resting in this book.
func (b *Book) LiveOrderIDs() []market.OrderID {
	out := make([]market.OrderID, 0, len(b.index))
	for id := range b.index {
		out = append(out, id)
	}
	return out
}

// BestBid returns the highest resting buy price, if any.
func (b *Book) BestBid() (market.Price, bool) {
	lvl, ok := b.bids.Min()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// BestAsk returns the lowest resting sell price, if any.
func (b *Book) BestAsk() (market.Price, bool) {
	lvl, ok := b.asks.Min()
	if !ok {
		return 0, false
	}
	return lvl.price, true
}

// Place matches the incoming order against the opposite side under
// price-time priority, then rests whatever quantity remains. It returns
// every trade generated, in execution order, and the quantity (if any)
// that was rested rather than matched.
func (b *Book) Place(side market.Side, price market.Price, qty market.Quantity, id market.OrderID, user market.UserID) ([]market.Trade, market.Quantity, error) {
	if !b.active {
		return nil, 0, ErrInactiveMarket
	}
	if price <= 0 {
		return nil, 0, ErrNonPositivePrice
	}
	if qty <= 0 {
		return nil, 0, ErrNonPositiveQuantity
	}
	if _, exists := b.index[id]; exists {
		return nil, 0, ErrDuplicateOrderID
	}

	var trades []market.Trade
	remaining := qty

	if side == market.Buy {
		remaining, trades = b.matchBuy(user, price, remaining)
	} else {
		remaining, trades = b.matchSell(user, price, remaining)
	}

	if remaining > 0 {
		b.rest(side, price, remaining, id, user)
	}

	return trades, remaining, nil
}

func (b *Book) matchBuy(taker market.UserID, price market.Price, remaining market.Quantity) (market.Quantity, []market.Trade) {
	var trades []market.Trade
	for remaining > 0 {
		lvl, ok := b.asks.Min()
		if !ok || lvl.price > price {
			break
		}
		remaining, trades = b.sweepLevel(lvl, b.asks, market.Buy, taker, remaining, trades)
	}
	return remaining, trades
}

func (b *Book) matchSell(taker market.UserID, price market.Price, remaining market.Quantity) (market.Quantity, []market.Trade) {
	var trades []market.Trade
	for remaining > 0 {
		lvl, ok := b.bids.Min()
		if !ok || lvl.price < price {
			break
		}
		remaining, trades = b.sweepLevel(lvl, b.bids, market.Sell, taker, remaining, trades)
	}
	return remaining, trades
}

// sweepLevel consumes makers at lvl head-first until remaining is exhausted
// or the level empties. takerSide is the side of the incoming order (the
// level itself always holds the opposite side's resting makers).
func (b *Book) sweepLevel(lvl *priceLevel, side *levels, takerSide market.Side, taker market.UserID, remaining market.Quantity, trades []market.Trade) (market.Quantity, []market.Trade) {
	for remaining > 0 {
		front := lvl.orders.Front()
		if front == nil {
			break
		}
		maker := front.Value.(*market.Order)

		tradeQty := remaining
		if maker.Quantity < tradeQty {
			tradeQty = maker.Quantity
		}

		var buyer, seller market.UserID
		if takerSide == market.Buy {
			buyer, seller = taker, maker.UserID
		} else {
			buyer, seller = maker.UserID, taker
		}
		// Self-trade is permitted: a taker may cross its own resting order.
		// No special prevention is applied (see design notes).
		trades = append(trades, market.Trade{
			Market:       b.Market,
			BuyerUserID:  buyer,
			SellerUserID: seller,
			Price:        lvl.price,
			Quantity:     tradeQty,
			TakerSide:    takerSide,
		})

		b.positions[buyer] += int64(tradeQty)
		b.positions[seller] -= int64(tradeQty)

		maker.Quantity -= tradeQty
		remaining -= tradeQty

		if maker.Quantity == 0 {
			lvl.orders.Remove(front)
			delete(b.index, maker.ID)
		}
	}
	if lvl.empty() {
		side.Delete(lvl)
	}
	return remaining, trades
}

func (b *Book) rest(side market.Side, price market.Price, qty market.Quantity, id market.OrderID, user market.UserID) {
	order := &market.Order{
		ID:        id,
		UserID:    user,
		Market:    b.Market,
		Side:      side,
		Price:     price,
		Quantity:  qty,
		Timestamp: b.nextTimestamp,
	}
	b.nextTimestamp++

	tree := b.asks
	if side == market.Buy {
		tree = b.bids
	}

	lvl, ok := tree.Get(&priceLevel{price: price})
	if !ok {
		lvl = newPriceLevel(price)
		tree.Set(lvl)
	}
	elem := lvl.orders.PushBack(order)
	b.index[id] = orderHandle{level: lvl, elem: elem}
}

// Cancel removes a resting order in O(1), returning its last-known state
// for the caller's refund bookkeeping. Returns ErrUnknownOrder if id is not
// resting in this book.
func (b *Book) Cancel(id market.OrderID) (market.Order, error) {
	h, ok := b.index[id]
	if !ok {
		return market.Order{}, ErrUnknownOrder
	}
	order := h.elem.Value.(*market.Order)
	snapshot := *order

	h.level.orders.Remove(h.elem)
	delete(b.index, id)

	if h.level.empty() {
		tree := b.asks
		if snapshot.Side == market.Buy {
			tree = b.bids
		}
		tree.Delete(h.level)
	}
	return snapshot, nil
}

// Settle closes the market: every resting order is canceled (no trade),
// then every nonzero position is liquidated against the house at
// terminalPrice. Returns the synthetic liquidation trades and the ids of
// every order that was canceled as a side effect, so the caller (the
// engine) can remove them from its global registry.
func (b *Book) Settle(terminalPrice market.Price) ([]market.Trade, []market.OrderID) {
	canceled := make([]market.OrderID, 0, len(b.index))
	for id := range b.index {
		canceled = append(canceled, id)
	}
	for _, id := range canceled {
		_, _ = b.Cancel(id)
	}

	trades := make([]market.Trade, 0, len(b.positions))
	for user, pos := range b.positions {
		switch {
		case pos > 0:
			trades = append(trades, market.Trade{
				Market:       b.Market,
				BuyerUserID:  market.HouseID,
				SellerUserID: user,
				Price:        terminalPrice,
				Quantity:     market.Quantity(pos),
				TakerSide:    market.Sell,
			})
		case pos < 0:
			trades = append(trades, market.Trade{
				Market:       b.Market,
				BuyerUserID:  user,
				SellerUserID: market.HouseID,
				Price:        terminalPrice,
				Quantity:     market.Quantity(-pos),
				TakerSide:    market.Buy,
			})
		}
	}
	b.positions = make(map[market.UserID]int64)
	b.active = false
	return trades, canceled
}

// LevelView is an observability-only summary of a price level's total
// resting quantity, independent of individual order identities.
type LevelView struct {
	Price    market.Price
	Quantity market.Quantity
}

// Snapshot returns bids (highest first) and asks (lowest first) as
// aggregated per-level quantities.
func (b *Book) Snapshot() (bids, asks []LevelView) {
	b.bids.Scan(func(lvl *priceLevel) bool {
		bids = append(bids, LevelView{Price: lvl.price, Quantity: totalQty(&lvl.orders)})
		return true
	})
	b.asks.Scan(func(lvl *priceLevel) bool {
		asks = append(asks, LevelView{Price: lvl.price, Quantity: totalQty(&lvl.orders)})
		return true
	})
	return bids, asks
}

func totalQty(l *list.List) market.Quantity {
	var total market.Quantity
	for e := l.Front(); e != nil; e = e.Next() {
		total += e.Value.(*market.Order).Quantity
	}
	return total
}

// RestingOrders returns every resting order on both sides, for snapshot
// persistence. Order is best-price-first, then FIFO within a level.
func (b *Book) RestingOrders() (bids, asks []market.Order) {
	b.bids.Scan(func(lvl *priceLevel) bool {
		for e := lvl.orders.Front(); e != nil; e = e.Next() {
			bids = append(bids, *e.Value.(*market.Order))
		}
		return true
	})
	b.asks.Scan(func(lvl *priceLevel) bool {
		for e := lvl.orders.Front(); e != nil; e = e.Next() {
			asks = append(asks, *e.Value.(*market.Order))
		}
		return true
	})
	return bids, asks
}

// Restore rebuilds book state from a persisted snapshot. Timestamps are
// taken verbatim from the dumped orders to preserve FIFO priority across
// reload; nextTimestamp is advanced past the highest seen value.
func (b *Book) Restore(active bool, bids, asks []market.Order) {
	b.active = active
	for _, o := range bids {
		b.placeRestored(o)
	}
	for _, o := range asks {
		b.placeRestored(o)
	}
}

func (b *Book) placeRestored(o market.Order) {
	tree := b.asks
	if o.Side == market.Buy {
		tree = b.bids
	}
	lvl, ok := tree.Get(&priceLevel{price: o.Price})
	if !ok {
		lvl = newPriceLevel(o.Price)
		tree.Set(lvl)
	}
	order := o
	elem := lvl.orders.PushBack(&order)
	b.index[o.ID] = orderHandle{level: lvl, elem: elem}
	if o.Timestamp >= b.nextTimestamp {
		b.nextTimestamp = o.Timestamp + 1
	}
}

// RestorePositions replaces the position map wholesale. Used only while
// reloading a snapshot, where positions are reconstructed from the ledger's
// persisted portfolios rather than replayed from trade history.
func (b *Book) RestorePositions(positions map[market.UserID]int64) {
	b.positions = make(map[market.UserID]int64, len(positions))
	for u, p := range positions {
		b.positions[u] = p
	}
}

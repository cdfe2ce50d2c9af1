package book

import (
	"container/list"

	"github.com/saiexchange/predictx/internal/market"
)

// priceLevel holds every resting order at a single price, in FIFO order.
// The list is the sole owner of its order nodes; orderHandle only stores a
// handle (the *list.Element) into it, never a second copy of the data, per
// the arena/indexed-storage design this book follows instead of cyclic
// node-to-node back-references.
type priceLevel struct {
	price  market.Price
	orders list.List
}

func newPriceLevel(price market.Price) *priceLevel {
	pl := &priceLevel{price: price}
	pl.orders.Init()
	return pl
}

func (pl *priceLevel) empty() bool {
	return pl.orders.Len() == 0
}

// orderHandle is the O(1) lookup target for a live order: which level it
// rests on, and its node within that level's list.
type orderHandle struct {
	level *priceLevel
	elem  *list.Element
}

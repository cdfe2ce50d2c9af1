package market

// Order is a resting limit order. Quantity is mutated in place as the order
// fills; the order is destroyed (removed from its book) on full fill,
// cancel, or settlement.
type Order struct {
	ID        OrderID
	UserID    UserID
	Market    MarketID
	Side      Side
	Price     Price
	Quantity  Quantity
	Timestamp int64 // monotonic tie-breaker, assigned at rest time
}

// Trade is an immutable record of a single match. Price is always the
// maker's price (price improvement is resolved by the ledger, not by
// rewriting the trade record). Seq is not set by the book or the engine:
// every trade they return carries Seq 0.
type Trade struct {
	Market       MarketID
	BuyerUserID  UserID
	SellerUserID UserID
	Price        Price
	Quantity     Quantity
	TakerSide    Side
	Seq          uint64
}

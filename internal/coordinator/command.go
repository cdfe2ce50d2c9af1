package coordinator

import (
	"github.com/saiexchange/predictx/internal/book"
	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/market"
)

// Command is the tagged union the Coordinator dispatches. Each concrete
// type below corresponds to one row of the wire protocol's request table.
type Command interface {
	isCommand()
}

// PlaceOrder submits a new order to Market, identified by OrderID and
// priced/sized in the given Price/Quantity. User is the external identity;
// the Coordinator interns it before touching the Ledger or Engine.
type PlaceOrder struct {
	Market     market.MarketID
	MarketName string
	Side       market.Side
	Price      market.Price
	Quantity   market.Quantity
	OrderID    market.OrderID
	User       string
}

func (PlaceOrder) isCommand() {}

// CancelOrder cancels OrderID on behalf of User. Rejected with
// ErrUnknownOrder if OrderID doesn't exist or isn't owned by User.
type CancelOrder struct {
	OrderID market.OrderID
	User    string
}

func (CancelOrder) isCommand() {}

// Settle resolves every market on SubjectID against ObservedValue.
type Settle struct {
	SubjectID     string
	ObservedValue int64
}

func (Settle) isCommand() {}

// GetMarkets lists every known market with its current best bid/ask.
type GetMarkets struct{}

func (GetMarkets) isCommand() {}

// GetSnapshot reports book depth for one market.
type GetSnapshot struct {
	Market market.MarketID
}

func (GetSnapshot) isCommand() {}

// MintByActivity credits User for Steps of measured activity.
type MintByActivity struct {
	User  string
	Steps int64
}

func (MintByActivity) isCommand() {}

// BurnByUsage debits User for Minutes of measured usage.
type BurnByUsage struct {
	User    string
	Minutes int64
}

func (BurnByUsage) isCommand() {}

// PlaceOrderResult is PlaceOrder's result.
type PlaceOrderResult struct {
	Trades     []market.Trade
	RestingQty market.Quantity
}

// CancelOrderResult is CancelOrder's result.
type CancelOrderResult struct {
	RefundedCents int64
}

// SettleResult is Settle's result.
type SettleResult struct {
	Trades []market.Trade
}

// GetMarketsResult is GetMarkets' result.
type GetMarketsResult struct {
	Markets []engine.MarketSummary
}

// GetSnapshotResult is GetSnapshot's result.
type GetSnapshotResult struct {
	Bids, Asks []book.LevelView
}

// MintResult is MintByActivity's result.
type MintResult struct {
	CreditedCents int64
}

// BurnResult is BurnByUsage's result.
type BurnResult struct {
	BurnedCents int64
}

// BalanceResult is Balance's result. Balance changes no cash, position or
// order, is not part of the Command union, and so isn't audited.
type BalanceResult struct {
	AvailableCents int64
	LockedCents    int64
	Positions      map[market.MarketID]int64
}

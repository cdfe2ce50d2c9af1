// Package coordinator is the sole writer that mutates more than one
// subsystem. It accepts a typed Command, orchestrates the Ledger, Engine,
// and identity Mapper to execute it, and invokes the Auditor after every
// mutation. Commands are processed one at a time; there are no
// suspension points mid-command, so no locking is needed here either.
package coordinator

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/saiexchange/predictx/internal/audit"
	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/identity"
	"github.com/saiexchange/predictx/internal/ledger"
	"github.com/saiexchange/predictx/internal/market"
)

// centsPerActivityStep and centsPerUsageMinute are placeholder conversion
// rates for MintByActivity/BurnByUsage: the spec names the wire fields
// (steps, minutes) but not a rate. Tune freely; nothing elsewhere in the
// core depends on their value.
const (
	centsPerActivityStep = 1 // 1 cent per 100 steps, rounded down
	stepsPerCent         = 100
	centsPerUsageMinute  = 1
)

// Coordinator dispatches commands against a shared Engine, Ledger, and
// identity Mapper. Once poisoned by a failed audit it refuses every
// further command until replaced by a freshly loaded Coordinator.
type Coordinator struct {
	engine   *engine.Engine
	ledger   *ledger.Ledger
	ids      *identity.Mapper
	poisoned error
}

// New wires a Coordinator around an already-constructed Engine, Ledger,
// and identity Mapper — typically freshly created, or restored together
// from the same snapshot.
func New(e *engine.Engine, l *ledger.Ledger, ids *identity.Mapper) *Coordinator {
	return &Coordinator{engine: e, ledger: l, ids: ids}
}

// Dispatch executes cmd and returns its typed result. The switch here
// mirrors the wire collaborator's own message-type switch, generalized
// from a network message to an in-process Command so the Coordinator has
// no I/O dependency of its own.
func (c *Coordinator) Dispatch(cmd Command) (any, error) {
	if c.poisoned != nil {
		return nil, c.poisoned
	}

	switch cmd := cmd.(type) {
	case PlaceOrder:
		return c.placeOrder(cmd)
	case CancelOrder:
		return c.cancelOrder(cmd)
	case Settle:
		return c.settle(cmd)
	case GetMarkets:
		return GetMarketsResult{Markets: c.engine.ListActiveMarkets()}, nil
	case GetSnapshot:
		bids, asks, err := c.engine.Snapshot(cmd.Market)
		if err != nil {
			return nil, classify(err)
		}
		return GetSnapshotResult{Bids: bids, Asks: asks}, nil
	case MintByActivity:
		return c.mintByActivity(cmd)
	case BurnByUsage:
		return c.burnByUsage(cmd)
	default:
		return nil, errors.Join(ErrInvalidArgument, errors.New("coordinator: unrecognized command"))
	}
}

// placeOrder implements the PlaceOrder handler from first principles:
// validate, lock (Buy only), match, refund any price improvement, apply
// trades, audit.
func (c *Coordinator) placeOrder(cmd PlaceOrder) (PlaceOrderResult, error) {
	if cmd.Price <= 0 || cmd.Quantity <= 0 {
		return PlaceOrderResult{}, errors.Join(ErrInvalidArgument, errors.New("coordinator: non-positive price or quantity"))
	}
	user := c.ids.Intern(cmd.User)

	if cmd.Side == market.Buy {
		if err := c.ledger.LockForBuy(user, cmd.Price, cmd.Quantity); err != nil {
			return PlaceOrderResult{}, classify(err)
		}
	}

	trades, remaining, err := c.engine.Place(cmd.Market, cmd.MarketName, cmd.Side, cmd.Price, cmd.Quantity, cmd.OrderID, user)
	if err != nil {
		if cmd.Side == market.Buy {
			c.ledger.ReleaseLock(user, cmd.Price, cmd.Quantity)
		}
		return PlaceOrderResult{}, classify(err)
	}

	if cmd.Side == market.Buy {
		for _, tr := range trades {
			if tr.Price < cmd.Price {
				c.ledger.ReleaseLock(user, cmd.Price-tr.Price, tr.Quantity)
			}
		}
	}

	for _, tr := range trades {
		c.ledger.ApplyTrade(tr.Market, tr.BuyerUserID, tr.SellerUserID, tr.Price, tr.Quantity)
	}

	if err := c.audit(); err != nil {
		return PlaceOrderResult{}, err
	}

	log.Info().
		Str("market", cmd.Market.String()).
		Str("side", cmd.Side.String()).
		Int64("price", int64(cmd.Price)).
		Int64("qty", int64(cmd.Quantity)).
		Int("trades", len(trades)).
		Msg("coordinator: order placed")

	return PlaceOrderResult{Trades: trades, RestingQty: remaining}, nil
}

// cancelOrder verifies ownership through the engine's registry before
// mutating, so a mismatched requester sees the same ErrUnknownOrder a
// nonexistent id would produce rather than learning the order exists.
func (c *Coordinator) cancelOrder(cmd CancelOrder) (CancelOrderResult, error) {
	requester := c.ids.Intern(cmd.User)
	owner, ok := c.engine.OwnerOf(cmd.OrderID)
	if !ok || owner != requester {
		return CancelOrderResult{}, errors.Join(ErrUnknownOrder, errors.New("coordinator: no such order for this user"))
	}

	order, err := c.engine.Cancel(cmd.OrderID)
	if err != nil {
		return CancelOrderResult{}, classify(err)
	}

	var refunded int64
	if order.Side == market.Buy {
		c.ledger.ReleaseLock(order.UserID, order.Price, order.Quantity)
		refunded = int64(order.Price) * int64(order.Quantity)
	}

	if err := c.audit(); err != nil {
		return CancelOrderResult{}, err
	}

	log.Info().Int32("order_id", int32(cmd.OrderID)).Int64("refunded", refunded).Msg("coordinator: order canceled")
	return CancelOrderResult{RefundedCents: refunded}, nil
}

// settle closes every market on SubjectID, releases the locked cash of the
// resting buys those books cancel, and applies the resulting synthetic
// trades to the Ledger. The real counterparty of every trade here is always
// the user on the non-House side.
func (c *Coordinator) settle(cmd Settle) (SettleResult, error) {
	var canceledBuys []market.Order
	for _, m := range c.engine.Markets() {
		b, ok := c.engine.Book(m)
		if !ok || m.SubjectID != cmd.SubjectID || !b.Active() {
			continue
		}
		bids, _ := b.RestingOrders()
		canceledBuys = append(canceledBuys, bids...)
	}

	trades := c.engine.SettleAllForSubject(cmd.SubjectID, cmd.ObservedValue)
	for _, o := range canceledBuys {
		c.ledger.ReleaseLock(o.UserID, o.Price, o.Quantity)
	}
	for _, tr := range trades {
		if tr.BuyerUserID == market.HouseID {
			c.ledger.ApplySettlementTrade(tr.SellerUserID, tr.Market, market.Sell, tr.Quantity, tr.Price)
		} else {
			c.ledger.ApplySettlementTrade(tr.BuyerUserID, tr.Market, market.Buy, tr.Quantity, tr.Price)
		}
	}

	if err := c.audit(); err != nil {
		return SettleResult{}, err
	}

	log.Info().Str("subject", cmd.SubjectID).Int64("observed_value", cmd.ObservedValue).Int("trades", len(trades)).Msg("coordinator: settled")
	return SettleResult{Trades: trades}, nil
}

func (c *Coordinator) mintByActivity(cmd MintByActivity) (MintResult, error) {
	user := c.ids.Intern(cmd.User)
	cents := (cmd.Steps / stepsPerCent) * centsPerActivityStep
	credited := c.ledger.Mint(user, cents)

	if err := c.audit(); err != nil {
		return MintResult{}, err
	}
	return MintResult{CreditedCents: credited}, nil
}

func (c *Coordinator) burnByUsage(cmd BurnByUsage) (BurnResult, error) {
	user := c.ids.Intern(cmd.User)
	cents := cmd.Minutes * centsPerUsageMinute
	burned := c.ledger.Burn(user, cents)

	if err := c.audit(); err != nil {
		return BurnResult{}, err
	}
	return BurnResult{BurnedCents: burned}, nil
}

// Balance reports user's current cash and positions without changing any
// cash, position or order (an external id seen for the first time is still
// interned), so it runs even while the Coordinator is poisoned — an
// operator inspecting state after an invariant failure still needs to be
// able to read it.
func (c *Coordinator) Balance(user string) BalanceResult {
	internal := c.ids.Intern(user)
	acc := c.ledger.Account(internal)
	return BalanceResult{AvailableCents: acc.AvailableCents, LockedCents: acc.LockedCents, Positions: acc.Portfolio}
}

// audit runs the post-mutation invariant check. A failure poisons the
// Coordinator: the in-memory state is no longer trustworthy, so every
// subsequent Dispatch call short-circuits to the same error until the
// process is restarted from a reloaded snapshot.
func (c *Coordinator) audit() error {
	if err := audit.Check(c.engine, c.ledger); err != nil {
		incidentID := uuid.New().String()
		c.poisoned = errors.Join(ErrInternalInvariantViolated, err)
		log.Error().
			Str("incident_id", incidentID).
			Err(err).
			Msg("coordinator: invariant check failed, refusing further commands")
		return c.poisoned
	}
	return nil
}

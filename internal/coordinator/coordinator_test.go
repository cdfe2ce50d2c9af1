package coordinator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiexchange/predictx/internal/coordinator"
	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/identity"
	"github.com/saiexchange/predictx/internal/ledger"
	"github.com/saiexchange/predictx/internal/market"
)

var m1 = market.MarketID{SubjectID: "alice", Threshold: 480}

func newCoordinator() *coordinator.Coordinator {
	return coordinator.New(engine.New(), ledger.New(), identity.New())
}

func fund(t *testing.T, c *coordinator.Coordinator, user string, cents int64) {
	t.Helper()
	_, err := c.Dispatch(coordinator.MintByActivity{User: user, Steps: cents * 100})
	require.NoError(t, err)
}

// Scenario 1: simple cross.
func TestPlaceOrder_SimpleCross(t *testing.T) {
	c := newCoordinator()

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Sell, Price: 60, Quantity: 10, OrderID: 1, User: "alice",
	})
	require.NoError(t, err)

	fund(t, c, "bob", 600)
	res, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 60, Quantity: 10, OrderID: 2, User: "bob",
	})
	require.NoError(t, err)
	result := res.(coordinator.PlaceOrderResult)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, market.Quantity(0), result.RestingQty)
}

// Scenario 2: price improvement.
func TestPlaceOrder_PriceImprovementRefund(t *testing.T) {
	c := newCoordinator()

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Sell, Price: 40, Quantity: 5, OrderID: 1, User: "alice",
	})
	require.NoError(t, err)

	fund(t, c, "bob", 300)
	_, err = c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 60, Quantity: 5, OrderID: 2, User: "bob",
	})
	require.NoError(t, err)

	// (60-40)*5 = 100 cents back to available; the 200 traded leave locked.
	bob := c.Balance("bob")
	assert.Equal(t, int64(100), bob.AvailableCents)
	assert.Equal(t, int64(0), bob.LockedCents)
}

// Scenario 3: partial fill + rest.
func TestPlaceOrder_PartialFillRests(t *testing.T) {
	c := newCoordinator()

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Sell, Price: 50, Quantity: 3, OrderID: 1, User: "alice",
	})
	require.NoError(t, err)

	fund(t, c, "bob", 500)
	res, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 50, Quantity: 10, OrderID: 2, User: "bob",
	})
	require.NoError(t, err)
	result := res.(coordinator.PlaceOrderResult)
	assert.Equal(t, market.Quantity(7), result.RestingQty)
}

// Scenario: insufficient funds rejects before any engine mutation.
func TestPlaceOrder_InsufficientFunds(t *testing.T) {
	c := newCoordinator()

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 50, Quantity: 10, OrderID: 1, User: "bob",
	})
	assert.ErrorIs(t, err, coordinator.ErrInsufficientFunds)

	markets, err := c.Dispatch(coordinator.GetMarkets{})
	require.NoError(t, err)
	res := markets.(coordinator.GetMarketsResult)
	require.Len(t, res.Markets, 0, "a rejected lock must never create the market")
}

// Scenario 5: cancel is O(1) and exact, and restores the Ledger
// byte-for-byte (the round-trip law).
func TestCancelOrder_RestoresLedgerExactly(t *testing.T) {
	c := newCoordinator()
	fund(t, c, "alice", 400)

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 40, Quantity: 10, OrderID: 1, User: "alice",
	})
	require.NoError(t, err)

	res, err := c.Dispatch(coordinator.CancelOrder{OrderID: 1, User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(400), res.(coordinator.CancelOrderResult).RefundedCents)

	bal := c.Balance("alice")
	assert.Equal(t, int64(400), bal.AvailableCents)
	assert.Equal(t, int64(0), bal.LockedCents)
}

func TestCancelOrder_WrongUserRejected(t *testing.T) {
	c := newCoordinator()
	fund(t, c, "alice", 400)

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 40, Quantity: 10, OrderID: 1, User: "alice",
	})
	require.NoError(t, err)

	_, err = c.Dispatch(coordinator.CancelOrder{OrderID: 1, User: "bob"})
	assert.ErrorIs(t, err, coordinator.ErrUnknownOrder)
}

func TestDuplicateOrderID_Rejected(t *testing.T) {
	c := newCoordinator()
	fund(t, c, "alice", 40)

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 40, Quantity: 1, OrderID: 1, User: "alice",
	})
	require.NoError(t, err)

	_, err = c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Sell, Price: 40, Quantity: 1, OrderID: 1, User: "bob",
	})
	assert.ErrorIs(t, err, coordinator.ErrDuplicateOrderID)
}

func TestSettle_AppliesSettlementTradesToLedger(t *testing.T) {
	c := newCoordinator()

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Sell, Price: 50, Quantity: 10, OrderID: 1, User: "dave",
	})
	require.NoError(t, err)
	fund(t, c, "bob", 500)
	_, err = c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 50, Quantity: 10, OrderID: 2, User: "bob",
	})
	require.NoError(t, err)

	res, err := c.Dispatch(coordinator.Settle{SubjectID: "alice", ObservedValue: 500})
	require.NoError(t, err)
	assert.Len(t, res.(coordinator.SettleResult).Trades, 2)
}

func TestMintByActivityAndBurnByUsage(t *testing.T) {
	c := newCoordinator()

	res, err := c.Dispatch(coordinator.MintByActivity{User: "alice", Steps: 1000})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.(coordinator.MintResult).CreditedCents)

	res, err = c.Dispatch(coordinator.BurnByUsage{User: "alice", Minutes: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), res.(coordinator.BurnResult).BurnedCents)
}

func TestBalance_ReadsCurrentCashAndPositions(t *testing.T) {
	c := newCoordinator()
	fund(t, c, "alice", 1000)

	bal := c.Balance("alice")
	assert.Equal(t, int64(1000), bal.AvailableCents)
	assert.Equal(t, int64(0), bal.LockedCents)
}

func TestPlaceOrderOnInactiveMarket_Rejected(t *testing.T) {
	c := newCoordinator()
	fund(t, c, "alice", 40)

	_, err := c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 40, Quantity: 1, OrderID: 1, User: "alice",
	})
	require.NoError(t, err)
	_, err = c.Dispatch(coordinator.Settle{SubjectID: "alice", ObservedValue: 1000})
	require.NoError(t, err)

	_, err = c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "x", Side: market.Buy, Price: 40, Quantity: 1, OrderID: 2, User: "alice",
	})
	assert.ErrorIs(t, err, coordinator.ErrInactiveMarket)
}

package audit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiexchange/predictx/internal/audit"
	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/ledger"
	"github.com/saiexchange/predictx/internal/market"
)

var m1 = market.MarketID{SubjectID: "alice", Threshold: 480}

func TestCheck_PassesAfterConsistentCrossingTrade(t *testing.T) {
	e := engine.New()
	l := ledger.New()

	l.Mint(200, 1000) // bob, the buyer

	_, _, err := e.Place(m1, "x", market.Sell, 60, 10, 1, 100)
	require.NoError(t, err)

	require.NoError(t, l.LockForBuy(200, 60, 10))
	trades, _, err := e.Place(m1, "x", market.Buy, 60, 10, 2, 200)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	for _, tr := range trades {
		l.ApplyTrade(tr.Market, tr.BuyerUserID, tr.SellerUserID, tr.Price, tr.Quantity)
	}

	assert.NoError(t, audit.Check(e, l))
}

func TestCheck_CatchesBookLedgerMismatch(t *testing.T) {
	e := engine.New()
	l := ledger.New()
	l.Mint(200, 1000)

	_, _, err := e.Place(m1, "x", market.Sell, 60, 10, 1, 100)
	require.NoError(t, err)
	require.NoError(t, l.LockForBuy(200, 60, 10))
	_, _, err = e.Place(m1, "x", market.Buy, 60, 10, 2, 200)
	require.NoError(t, err)
	// Deliberately skip applying the trade to the ledger: book and ledger
	// positions now disagree.

	err = audit.Check(e, l)
	assert.ErrorIs(t, err, audit.ErrInvariantViolated)
}

func TestCheck_CashConservationHoldsAcrossMintAndBurn(t *testing.T) {
	e := engine.New()
	l := ledger.New()
	l.Mint(1, 500)
	l.Mint(2, 200)
	l.Burn(2, 1000) // burns only the 200 available, floored at zero

	assert.NoError(t, audit.Check(e, l))
}

func TestCheck_CashConservationHoldsAfterRestore(t *testing.T) {
	e := engine.New()
	l := ledger.Restore(map[market.UserID]ledger.Account{
		1: {AvailableCents: 500, LockedCents: 100},
		2: {AvailableCents: 25},
	})

	assert.NoError(t, audit.Check(e, l))
}

func TestCheck_PassesOnEmptyState(t *testing.T) {
	e := engine.New()
	l := ledger.New()
	assert.NoError(t, audit.Check(e, l))
}

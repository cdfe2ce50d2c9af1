package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/market"
)

var m1 = market.MarketID{SubjectID: "alice", Threshold: 480}
var m2 = market.MarketID{SubjectID: "alice", Threshold: 600}

func TestPlace_CreatesMarketLazilyAndMatches(t *testing.T) {
	e := engine.New()

	_, _, err := e.Place(m1, "alice >=480", market.Sell, 60, 10, 1, 100)
	require.NoError(t, err)

	trades, remaining, err := e.Place(m1, "alice >=480", market.Buy, 60, 10, 2, 200)
	require.NoError(t, err)
	assert.Equal(t, market.Quantity(0), remaining)
	require.Len(t, trades, 1)
}

func TestPlace_RejectsDuplicateAcrossSameMarket(t *testing.T) {
	e := engine.New()

	_, _, err := e.Place(m1, "x", market.Buy, 50, 1, 1, 100)
	require.NoError(t, err)

	_, _, err = e.Place(m1, "x", market.Sell, 50, 1, 1, 200)
	assert.Error(t, err)
}

func TestCancel_GlobalRegistryIsO1AndBijective(t *testing.T) {
	e := engine.New()

	_, _, err := e.Place(m1, "x", market.Buy, 40, 10, 1, 100)
	require.NoError(t, err)
	_, _, err = e.Place(m2, "y", market.Buy, 40, 10, 2, 100)
	require.NoError(t, err)

	assert.ElementsMatch(t, []market.OrderID{1, 2}, e.RegistryOrderIDs())

	order, err := e.Cancel(1)
	require.NoError(t, err)
	assert.Equal(t, market.Price(40), order.Price)

	assert.ElementsMatch(t, []market.OrderID{2}, e.RegistryOrderIDs())

	_, err = e.Cancel(1)
	assert.Error(t, err)
}

func TestSettleAllForSubject_PerMarketThresholds(t *testing.T) {
	e := engine.New()

	_, _, err := e.Place(m1, "x", market.Sell, 50, 10, 1, 400)
	require.NoError(t, err)
	_, _, err = e.Place(m1, "x", market.Buy, 50, 10, 2, 200)
	require.NoError(t, err)

	_, _, err = e.Place(m2, "y", market.Sell, 50, 5, 3, 400)
	require.NoError(t, err)
	_, _, err = e.Place(m2, "y", market.Buy, 50, 5, 4, 200)
	require.NoError(t, err)

	// observedValue crosses m1's threshold (480) but not m2's (600).
	trades := e.SettleAllForSubject("alice", 500)
	require.Len(t, trades, 4)

	for _, tr := range trades {
		if tr.Market == m1 {
			assert.Equal(t, market.Price(1), tr.Price)
		} else {
			assert.Equal(t, market.Price(0), tr.Price)
		}
	}

	b1, _ := e.Book(m1)
	assert.False(t, b1.Active())
	b2, _ := e.Book(m2)
	assert.False(t, b2.Active())
}

func TestPlaceOnSettledMarket_ReturnsInactiveMarket(t *testing.T) {
	e := engine.New()

	_, _, err := e.Place(m1, "x", market.Buy, 50, 1, 1, 100)
	require.NoError(t, err)
	e.SettleAllForSubject("alice", 1000)

	_, _, err = e.Place(m1, "x", market.Buy, 50, 1, 2, 100)
	assert.Error(t, err)
}

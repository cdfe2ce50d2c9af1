package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saiexchange/predictx/internal/audit"
	"github.com/saiexchange/predictx/internal/coordinator"
	"github.com/saiexchange/predictx/internal/engine"
	"github.com/saiexchange/predictx/internal/identity"
	"github.com/saiexchange/predictx/internal/ledger"
	"github.com/saiexchange/predictx/internal/market"
	"github.com/saiexchange/predictx/internal/snapshot"
)

var m1 = market.MarketID{SubjectID: "alice", Threshold: 480}

func buildState(t *testing.T) (*engine.Engine, *ledger.Ledger, *identity.Mapper) {
	t.Helper()
	ids := identity.New()
	e := engine.New()
	l := ledger.New()
	c := coordinator.New(e, l, ids)

	_, err := c.Dispatch(coordinator.MintByActivity{User: "bob", Steps: 100000})
	require.NoError(t, err)

	_, err = c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "alice>=480", Side: market.Sell, Price: 50, Quantity: 3, OrderID: 1, User: "alice",
	})
	require.NoError(t, err)

	_, err = c.Dispatch(coordinator.PlaceOrder{
		Market: m1, MarketName: "alice>=480", Side: market.Buy, Price: 50, Quantity: 10, OrderID: 2, User: "bob",
	})
	require.NoError(t, err)

	return e, l, ids
}

func TestDumpLoadDump_ByteIdentical(t *testing.T) {
	e, l, ids := buildState(t)

	doc1 := snapshot.Dump(e, l, ids)
	data1, err := snapshot.Marshal(doc1)
	require.NoError(t, err)

	e2, l2, ids2, err := snapshot.Load(data1)
	require.NoError(t, err)

	doc2 := snapshot.Dump(e2, l2, ids2)
	data2, err := snapshot.Marshal(doc2)
	require.NoError(t, err)

	assert.Equal(t, string(data1), string(data2))
}

func TestLoad_PreservesFIFOTimestampsAndPassesAudit(t *testing.T) {
	e, l, ids := buildState(t)

	doc := snapshot.Dump(e, l, ids)
	data, err := snapshot.Marshal(doc)
	require.NoError(t, err)

	e2, l2, _, err := snapshot.Load(data)
	require.NoError(t, err)

	require.NoError(t, audit.Check(e2, l2))

	b, ok := e2.Book(m1)
	require.True(t, ok)
	bids, _ := b.Snapshot()
	require.Len(t, bids, 1)
	assert.Equal(t, market.Quantity(7), bids[0].Quantity)
}

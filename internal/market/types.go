// Package market defines the value types shared by the book, engine, ledger
// and coordinator: market identity, sides, prices, and the order/trade
// records that flow between them.
package market

import (
	"fmt"
	"strconv"
	"strings"
)

// UserID is the engine-internal user handle, also the ledger's account key.
// The wire speaks external strings; identity.Mapper is the only place that
// translates between the two.
type UserID int64

// HouseID is the sentinel counterparty used for settlement trades. It is
// never interned by identity.Mapper and never appears in the Ledger as an
// account key directly - the coordinator always resolves the real user on
// the other side of a settlement trade before touching the Ledger.
const HouseID UserID = -1

// OrderID is the client-assigned order identifier, unique across all
// markets among live orders: the engine rejects an id that is already
// resting anywhere, and an id may be reused once its order has filled or
// been canceled.
type OrderID int32

// Side is which side of the book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// MarketID is the two-part market identity: a named subject plus the
// threshold that distinguishes this market from siblings on the same
// subject.
type MarketID struct {
	SubjectID string
	Threshold int64
}

func (m MarketID) String() string {
	return fmt.Sprintf("%s,%d", m.SubjectID, m.Threshold)
}

// ParseMarketID parses the wire/snapshot form "<subject>,<threshold>" back
// into a MarketID. The subject itself must not contain a comma.
func ParseMarketID(s string) (MarketID, error) {
	subject, thresholdStr, ok := strings.Cut(s, ",")
	if !ok {
		return MarketID{}, fmt.Errorf("market: malformed market id %q", s)
	}
	threshold, err := strconv.ParseInt(thresholdStr, 10, 64)
	if err != nil {
		return MarketID{}, fmt.Errorf("market: malformed market id %q: %w", s, err)
	}
	return MarketID{SubjectID: subject, Threshold: threshold}, nil
}

// Price is an integer cent price. Resting order prices are unconstrained by
// the type (1..99 in practice, per the spec); settlement prices are always
// either 0 or 1.
type Price int64

// Quantity is a contract count. Always positive for a resting order.
type Quantity int64

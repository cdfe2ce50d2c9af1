// Package transport is the newline-delimited-JSON TCP collaborator sitting
// in front of the Coordinator. It owns connection bookkeeping and
// marshal/unmarshal only; every request is resolved to a single call
// against the Coordinator's serial command channel, so concurrent
// connections never race on shared state.
package transport

import "github.com/saiexchange/predictx/internal/market"

// request is the wire shape of every inbound line. Fields not relevant to
// Type are left zero and ignored.
type request struct {
	Type string `json:"type"`

	MarketID string `json:"market_id,omitempty"`

	UserID string `json:"user_id,omitempty"`
	Side   string `json:"side,omitempty"`
	Price  int64  `json:"price,omitempty"`
	Qty    int64  `json:"qty,omitempty"`
	ID     int32  `json:"id,omitempty"`

	Steps   int64 `json:"steps,omitempty"`
	Minutes int64 `json:"minutes,omitempty"`

	TargetUserID string `json:"target_user_id,omitempty"`
	ActualValue  int64  `json:"actual_value,omitempty"`
}

// response is the wire shape of every outbound line. Only the fields
// relevant to the originating request's type are populated.
type response struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`

	Markets []marketRow `json:"markets,omitempty"`

	Bids []levelRow `json:"bids,omitempty"`
	Asks []levelRow `json:"asks,omitempty"`

	Trades     []tradeRow `json:"trades,omitempty"`
	RestingQty int64      `json:"resting_qty,omitempty"`

	Refunded int64 `json:"refunded,omitempty"`

	Available string           `json:"available,omitempty"`
	Locked    string           `json:"locked,omitempty"`
	Positions map[string]int64 `json:"positions,omitempty"`

	Minted int64 `json:"minted,omitempty"`
	Burned int64 `json:"burned,omitempty"`
}

type marketRow struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BestBid *int64 `json:"best_bid"`
	BestAsk *int64 `json:"best_ask"`
}

type levelRow struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
}

type tradeRow struct {
	Market    string `json:"market_id"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Price     int64  `json:"price"`
	Qty       int64  `json:"qty"`
	TakerSide string `json:"taker_side"`
}

func parseSide(s string) (market.Side, bool) {
	switch s {
	case "buy":
		return market.Buy, true
	case "sell":
		return market.Sell, true
	default:
		return 0, false
	}
}

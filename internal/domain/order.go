package domain

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// Order is one append-only history record. Profit is set only on SELL
// records. Orders are never mutated or deleted once recorded.
type Order struct {
	OrderID  int64     `json:"order_id"`
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Type     OrderType `json:"type"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Status   string    `json:"status"`
	Time     time.Time `json:"timestamp"`
	Reason   string    `json:"reason"`
	Profit   float64   `json:"profit,omitempty"`
	Bot      string    `json:"bot"`
}

// Position is an open holding created by a filled buy. It is consulted on
// every price tick and removed when a matching sell fills.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	EntryTime  time.Time `json:"entry_time"`
	TakeProfit float64   `json:"take_profit"`
	StopLoss   float64   `json:"stop_loss"`
	Bot        string    `json:"bot"`
}

// Fill is the executed portion of an order with its actual price.
type Fill struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderResult is the venue's response to an order submission.
type OrderResult struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
	Fills   []Fill `json:"fills"`
}

// FillPrice returns the first fill's price, falling back to the given
// request price when the venue reported no fills.
func (r *OrderResult) FillPrice(fallback float64) float64 {
	if len(r.Fills) > 0 && r.Fills[0].Price > 0 {
		return r.Fills[0].Price
	}
	return fallback
}

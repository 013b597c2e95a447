package domain

import "github.com/shopspring/decimal"

// Candle is one OHLCV bucket. Closed reports whether the bucket is final;
// streaming feeds deliver in-progress candles with Closed=false.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Closed bool    `json:"closed"`
}

type Ticker struct {
	Symbol         string  `json:"symbol"`
	LastPrice      float64 `json:"last_price"`
	PriceChangePct float64 `json:"price_change_pct"`
	Volume24h      float64 `json:"volume_24h"`
}

// Balance is one asset's account balance.
type Balance struct {
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// TradingRule carries the venue's numeric constraints for one symbol.
// Quantities must be exact multiples of StepSize, prices exact multiples of
// TickSize, and price*quantity must exceed MinNotional. Values are kept as
// decimals because the venue reports them as strings and float arithmetic
// cannot quantize against them exactly.
type TradingRule struct {
	Symbol      string
	StepSize    decimal.Decimal
	TickSize    decimal.Decimal
	MinNotional decimal.Decimal
}

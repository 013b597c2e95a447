package domain

import "context"

// Exchange defines the interface for interacting with the trading venue.
// Every call blocks for network I/O; implementations are safe for use from
// multiple bot goroutines sharing one client.
type Exchange interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
	GetBalances(ctx context.Context) (map[string]Balance, error)
	GetTradingRule(ctx context.Context, symbol string) (*TradingRule, error)
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
	ListSymbols(ctx context.Context) ([]string, error)
	GetTickers(ctx context.Context) ([]Ticker, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, quantity float64) (*OrderResult, error)
	PlaceLimitOrder(ctx context.Context, symbol string, side Side, quantity, price float64) (*OrderResult, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error

	// SubscribeCandles streams closed candles for one symbol to handler
	// until ctx is cancelled. The handler runs on the subscription's own
	// goroutine.
	SubscribeCandles(ctx context.Context, symbol, interval string, handler func(Candle)) error
}

// Bot is one independently running trading strategy. Start is asynchronous;
// Stop is cooperative and is observed at the top of the bot's next loop
// iteration.
type Bot interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	Running() bool
	Stats() BotStats
	Orders() []Order
	Positions() []Position
}

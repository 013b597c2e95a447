package bot

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"multibot/internal/domain"
	"multibot/internal/executor"
)

// fakeExchange is the scriptable venue used by the bot loop tests. Orders
// always fill at the requested price.
type fakeExchange struct {
	Symbols  []string
	Prices   map[string]float64
	Balances map[string]domain.Balance
	Candles  map[string][]domain.Candle

	nextOrderID int64
	Placed      []placedOrder
}

type placedOrder struct {
	Symbol   string
	Side     domain.Side
	Quantity float64
	Price    float64
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		Prices:   make(map[string]float64),
		Balances: map[string]domain.Balance{"USDT": {Free: 1000}},
		Candles:  make(map[string][]domain.Candle),
	}
}

func (f *fakeExchange) GetPrice(ctx context.Context, symbol string) (float64, error) {
	return f.Prices[symbol], nil
}

func (f *fakeExchange) GetBalances(ctx context.Context) (map[string]domain.Balance, error) {
	return f.Balances, nil
}

func (f *fakeExchange) GetTradingRule(ctx context.Context, symbol string) (*domain.TradingRule, error) {
	return &domain.TradingRule{
		Symbol:   symbol,
		StepSize: decimal.RequireFromString("0.001"),
		TickSize: decimal.RequireFromString("0.01"),
	}, nil
}

func (f *fakeExchange) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return f.Candles[symbol+interval], nil
}

func (f *fakeExchange) ListSymbols(ctx context.Context) ([]string, error) {
	return f.Symbols, nil
}

func (f *fakeExchange) GetTickers(ctx context.Context) ([]domain.Ticker, error) {
	return nil, nil
}

func (f *fakeExchange) place(symbol string, side domain.Side, quantity, price float64) (*domain.OrderResult, error) {
	f.nextOrderID++
	f.Placed = append(f.Placed, placedOrder{Symbol: symbol, Side: side, Quantity: quantity, Price: price})
	return &domain.OrderResult{OrderID: f.nextOrderID, Status: "FILLED"}, nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity float64) (*domain.OrderResult, error) {
	return f.place(symbol, side, quantity, f.Prices[symbol])
}

func (f *fakeExchange) PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, quantity, price float64) (*domain.OrderResult, error) {
	return f.place(symbol, side, quantity, price)
}

func (f *fakeExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	return nil
}

func (f *fakeExchange) SubscribeCandles(ctx context.Context, symbol, interval string, handler func(domain.Candle)) error {
	return nil
}

func testExecutor(ex domain.Exchange) *executor.Executor {
	log := zap.NewNop()
	return executor.New(ex, executor.NewRuleCache(ex, 0, log), log, executor.Config{})
}

func TestNewListingBuysOnlyFreshQuotePairs(t *testing.T) {
	ex := newFakeExchange()
	ex.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	bot := NewNewListingBot(DefaultNewListingConfig(), ex, testExecutor(ex), zap.NewNop())
	ctx := context.Background()

	// Baseline scan: nothing listed before startup is new.
	if err := bot.scan(ctx, true); err != nil {
		t.Fatalf("Baseline scan failed: %v", err)
	}
	if len(ex.Placed) != 0 {
		t.Fatalf("Baseline scan placed %d orders", len(ex.Placed))
	}

	ex.Symbols = []string{"BTCUSDT", "ETHUSDT", "NEWUSDT", "NEWBTC"}
	ex.Prices["NEWUSDT"] = 2.0
	if err := bot.scan(ctx, false); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(ex.Placed) != 1 {
		t.Fatalf("Expected one buy, got %d", len(ex.Placed))
	}
	if ex.Placed[0].Symbol != "NEWUSDT" {
		t.Errorf("Expected NEWUSDT buy, got %s", ex.Placed[0].Symbol)
	}
	// 2% of 1000 USDT free at price 2.0.
	if ex.Placed[0].Quantity != 10 {
		t.Errorf("Expected quantity 10, got %v", ex.Placed[0].Quantity)
	}
	if len(bot.Positions()) != 1 {
		t.Errorf("Expected one open position, got %d", len(bot.Positions()))
	}
}

func TestNewListingNeverReevaluates(t *testing.T) {
	ex := newFakeExchange()
	ex.Symbols = []string{"BTCUSDT"}
	bot := NewNewListingBot(DefaultNewListingConfig(), ex, testExecutor(ex), zap.NewNop())
	ctx := context.Background()

	if err := bot.scan(ctx, true); err != nil {
		t.Fatalf("Baseline scan failed: %v", err)
	}

	ex.Prices["NEWUSDT"] = 2.0
	ex.Symbols = []string{"BTCUSDT", "NEWUSDT"}
	if err := bot.scan(ctx, false); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// Delist, then relist. The symbol must not be bought twice.
	ex.Symbols = []string{"BTCUSDT"}
	if err := bot.scan(ctx, false); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	ex.Symbols = []string{"BTCUSDT", "NEWUSDT"}
	if err := bot.scan(ctx, false); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(ex.Placed) != 1 {
		t.Errorf("Expected a single buy across relisting, got %d", len(ex.Placed))
	}
}

func TestNewListingSkipsWhenBalanceBelowFloor(t *testing.T) {
	ex := newFakeExchange()
	ex.Symbols = []string{"BTCUSDT"}
	ex.Balances["USDT"] = domain.Balance{Free: 5}
	bot := NewNewListingBot(DefaultNewListingConfig(), ex, testExecutor(ex), zap.NewNop())
	ctx := context.Background()

	if err := bot.scan(ctx, true); err != nil {
		t.Fatalf("Baseline scan failed: %v", err)
	}
	ex.Symbols = []string{"BTCUSDT", "NEWUSDT"}
	ex.Prices["NEWUSDT"] = 2.0
	if err := bot.scan(ctx, false); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if len(ex.Placed) != 0 {
		t.Errorf("Expected no buy below the balance floor, got %d", len(ex.Placed))
	}
}

func TestNewListingTakeProfitExit(t *testing.T) {
	ex := newFakeExchange()
	bot := NewNewListingBot(DefaultNewListingConfig(), ex, testExecutor(ex), zap.NewNop())
	ctx := context.Background()

	bot.ledger.Open(domain.Position{
		ID:         "pos-1",
		Symbol:     "NEWUSDT",
		EntryPrice: 2.0,
		Quantity:   10,
		TakeProfit: 2.10,
		StopLoss:   1.94,
	})

	// Below both bounds: no exit.
	ex.Prices["NEWUSDT"] = 2.05
	bot.checkExits(ctx)
	if len(ex.Placed) != 0 {
		t.Fatalf("Expected no exit at 2.05, got %d orders", len(ex.Placed))
	}

	ex.Prices["NEWUSDT"] = 2.12
	bot.checkExits(ctx)
	if len(ex.Placed) != 1 {
		t.Fatalf("Expected take-profit sell, got %d orders", len(ex.Placed))
	}
	if ex.Placed[0].Side != domain.SideSell {
		t.Errorf("Expected SELL, got %s", ex.Placed[0].Side)
	}
	if len(bot.Positions()) != 0 {
		t.Errorf("Expected position closed, got %d open", len(bot.Positions()))
	}

	orders := bot.Orders()
	if len(orders) != 1 {
		t.Fatalf("Expected one recorded order, got %d", len(orders))
	}
	if orders[0].Reason != "New listing take profit" {
		t.Errorf("Unexpected reason %q", orders[0].Reason)
	}
	if orders[0].Profit <= 0 {
		t.Errorf("Expected positive profit, got %v", orders[0].Profit)
	}
}

func TestScalpingStopLossExit(t *testing.T) {
	ex := newFakeExchange()
	bot := NewScalpingBot(DefaultScalpingConfig(), ex, testExecutor(ex), zap.NewNop())
	ctx := context.Background()

	bot.ledger.Open(domain.Position{
		ID:         "pos-1",
		Symbol:     "BTCUSDT",
		EntryPrice: 50000,
		Quantity:   0.01,
		TakeProfit: 51000,
		StopLoss:   49500,
	})

	if err := bot.checkExits(ctx, 49400); err != nil {
		t.Fatalf("checkExits failed: %v", err)
	}

	if len(ex.Placed) != 1 {
		t.Fatalf("Expected stop-loss sell, got %d orders", len(ex.Placed))
	}
	if len(bot.Positions()) != 0 {
		t.Errorf("Expected position closed, got %d open", len(bot.Positions()))
	}
	orders := bot.Orders()
	if orders[0].Reason != "Stop loss triggered" {
		t.Errorf("Unexpected reason %q", orders[0].Reason)
	}
	if orders[0].Profit >= 0 {
		t.Errorf("Expected a loss, got %v", orders[0].Profit)
	}
}

func TestHighVolumeScoreRequiresHistory(t *testing.T) {
	ex := newFakeExchange()
	bot := NewHighVolumeBot(DefaultHighVolumeConfig(), ex, testExecutor(ex), zap.NewNop())

	ex.Candles["THINUSDT1h"] = make([]domain.Candle, 23)
	ticker := domain.Ticker{Symbol: "THINUSDT", Volume24h: 1e6, PriceChangePct: 50}
	if score := bot.score(context.Background(), ticker); score != 0 {
		t.Errorf("Expected zero score for thin history, got %v", score)
	}
}

func TestHighVolumeScoreCombinesComponents(t *testing.T) {
	ex := newFakeExchange()
	bot := NewHighVolumeBot(DefaultHighVolumeConfig(), ex, testExecutor(ex), zap.NewNop())

	// Perfectly even volume: zero consistency penalty. Ratio 24 saturates the
	// volume component at 50, 10% momentum adds 20, so the score is exactly 100.
	candles := make([]domain.Candle, 24)
	for i := range candles {
		candles[i] = domain.Candle{Close: 100, Volume: 1000}
	}
	ex.Candles["EVENUSDT1h"] = candles

	ticker := domain.Ticker{Symbol: "EVENUSDT", Volume24h: 24000, PriceChangePct: 10}
	if score := bot.score(context.Background(), ticker); score != 100 {
		t.Errorf("Expected score 100, got %v", score)
	}
}

func TestHighVolumeProbeBuysOnConfirmedSpike(t *testing.T) {
	ex := newFakeExchange()
	bot := NewHighVolumeBot(DefaultHighVolumeConfig(), ex, testExecutor(ex), zap.NewNop())
	ctx := context.Background()

	// Flat series with a breakout close and a volume spike on the last candle.
	candles := make([]domain.Candle, 20)
	for i := range candles {
		candles[i] = domain.Candle{Close: 100, Volume: 1000}
	}
	candles[19] = domain.Candle{Close: 110, Volume: 5000}
	ex.Candles["MOONUSDT15m"] = candles

	candidate := scoredSymbol{symbol: "MOONUSDT", score: 95}
	if err := bot.probe(ctx, candidate); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	if len(ex.Placed) != 1 {
		t.Fatalf("Expected confirmation buy, got %d orders", len(ex.Placed))
	}
	if _, open := bot.trading["MOONUSDT"]; !open {
		t.Error("Expected symbol marked as trading")
	}
	orders := bot.Orders()
	if orders[0].Reason != "High volume opportunity (Score: 95.0)" {
		t.Errorf("Unexpected reason %q", orders[0].Reason)
	}
}

func TestHighVolumeProbeRejectsWeakConfirmation(t *testing.T) {
	ex := newFakeExchange()
	bot := NewHighVolumeBot(DefaultHighVolumeConfig(), ex, testExecutor(ex), zap.NewNop())
	ctx := context.Background()

	// Breakout close but no volume spike.
	candles := make([]domain.Candle, 20)
	for i := range candles {
		candles[i] = domain.Candle{Close: 100, Volume: 1000}
	}
	candles[19] = domain.Candle{Close: 110, Volume: 1100}
	ex.Candles["FLATUSDT15m"] = candles

	if err := bot.probe(ctx, scoredSymbol{symbol: "FLATUSDT", score: 95}); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if len(ex.Placed) != 0 {
		t.Errorf("Expected no buy without a volume spike, got %d", len(ex.Placed))
	}
}

func TestBotStartStopLifecycle(t *testing.T) {
	ex := newFakeExchange()
	ex.Symbols = []string{"BTCUSDT"}
	bot := NewNewListingBot(DefaultNewListingConfig(), ex, testExecutor(ex), zap.NewNop())

	if bot.Running() {
		t.Fatal("New bot must not be running")
	}
	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !bot.Running() {
		t.Fatal("Expected running after Start")
	}
	if err := bot.Start(context.Background()); err == nil {
		t.Fatal("Expected error on double start")
	}
	bot.Stop()
	if bot.Running() {
		t.Fatal("Expected stopped after Stop")
	}
	// A stopped bot can be started again.
	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	bot.Stop()
}

func TestBotClearsRunningOnContextCancel(t *testing.T) {
	ex := newFakeExchange()
	ex.Symbols = []string{"BTCUSDT"}
	bot := NewNewListingBot(DefaultNewListingConfig(), ex, testExecutor(ex), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	if err := bot.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for bot.Running() {
		if time.Now().After(deadline) {
			t.Fatal("Bot still reports running after context cancellation")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The dead loop must not block a restart.
	if err := bot.Start(context.Background()); err != nil {
		t.Fatalf("Restart after cancellation failed: %v", err)
	}
	bot.Stop()
}

func TestScalpingCycleSurvivesWarmup(t *testing.T) {
	ex := newFakeExchange()
	bot := NewScalpingBot(DefaultScalpingConfig(), ex, testExecutor(ex), zap.NewNop())
	ctx := context.Background()

	// The first candles cover only part of the indicator warmup. Each cycle
	// must complete without error until every indicator has enough history.
	for i := 0; i < 34; i++ {
		candle := domain.Candle{Close: 50000 + float64(i)*10}
		if err := bot.cycle(ctx, candle); err != nil {
			t.Fatalf("Cycle %d failed during warmup: %v", i+1, err)
		}
	}
	if len(ex.Placed) != 0 {
		t.Errorf("Expected no orders during warmup, got %d", len(ex.Placed))
	}
}

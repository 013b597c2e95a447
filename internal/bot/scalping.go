package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multibot/internal/domain"
	"multibot/internal/executor"
	"multibot/internal/indicator"
	"multibot/internal/strategy"
)

// confidenceGate is the minimum signal confidence a scalping decision must
// carry before any order is placed.
const confidenceGate = 0.6

type ScalpingConfig struct {
	Symbol          string           `yaml:"symbol"`
	Interval        string           `yaml:"interval"`
	QuoteAsset      string           `yaml:"quote_asset"`
	MaxPositionSize float64          `yaml:"max_position_size"`
	Quantity        float64          `yaml:"quantity"`
	ProfitTarget    float64          `yaml:"profit_target"`
	StopLoss        float64          `yaml:"stop_loss"`
	Indicators      indicator.Config `yaml:"indicators"`
}

func DefaultScalpingConfig() ScalpingConfig {
	return ScalpingConfig{
		Symbol:          "BTCUSDT",
		Interval:        "1m",
		QuoteAsset:      "USDT",
		MaxPositionSize: 0.01,
		Quantity:        0.001,
		ProfitTarget:    0.02,
		StopLoss:        0.01,
		Indicators:      indicator.DefaultConfig(),
	}
}

// ScalpingBot trades one symbol off the closed-candle stream: every final
// candle updates the price window, recomputes indicators, evaluates the
// strategy and checks the open position's exit bounds.
type ScalpingBot struct {
	base
	cfg   ScalpingConfig
	strat *strategy.Scalping
}

func NewScalpingBot(cfg ScalpingConfig, exchange domain.Exchange, exec *executor.Executor, logger *zap.Logger) *ScalpingBot {
	return &ScalpingBot{
		base:  newBase("ScalpingBot", exchange, exec, logger),
		cfg:   cfg,
		strat: strategy.NewScalping(cfg.Indicators),
	}
}

func (b *ScalpingBot) Start(ctx context.Context) error {
	loopCtx, err := b.begin(ctx)
	if err != nil {
		return err
	}

	candles := make(chan domain.Candle, 16)
	if err := b.exchange.SubscribeCandles(loopCtx, b.cfg.Symbol, b.cfg.Interval, func(c domain.Candle) {
		select {
		case candles <- c:
		default:
			b.logger.Warn("Candle dropped, decision loop lagging", zap.String("symbol", b.cfg.Symbol))
		}
	}); err != nil {
		b.Stop()
		return err
	}

	go b.run(loopCtx, candles)
	return nil
}

func (b *ScalpingBot) run(ctx context.Context, candles <-chan domain.Candle) {
	// The running flag must not outlive the loop, whichever way it exits.
	defer b.exitLoop(b.stopChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case candle := <-candles:
			if err := b.cycle(ctx, candle); err != nil {
				b.logger.Error("Decision cycle failed",
					zap.String("symbol", b.cfg.Symbol),
					zap.Error(err))
			}
		}
	}
}

// cycle is one complete decision pass for a closed candle. Errors and panics
// are contained at this boundary; a bad cycle never terminates the loop or
// the process.
func (b *ScalpingBot) cycle(ctx context.Context, candle domain.Candle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cycle panic: %v", r)
		}
	}()

	b.strat.Observe(candle.Close)

	snapshot, ok := indicator.Compute(b.strat.Closes(), b.cfg.Indicators)
	if !ok {
		return nil
	}

	price := candle.Close
	signal := b.strat.Evaluate(price, snapshot)
	b.logger.Debug("Signal",
		zap.String("action", string(signal.Action)),
		zap.Float64("confidence", signal.Confidence),
		zap.String("trend", string(b.strat.Trend())),
		zap.String("reason", signal.Reason),
		zap.Float64("price", price))

	switch {
	case signal.Action == strategy.ActionBuy && signal.Confidence > confidenceGate && !b.ledger.HasOpen():
		if err := b.buy(ctx, price, signal.Reason); err != nil {
			return err
		}
	case signal.Action == strategy.ActionSell && signal.Confidence > confidenceGate && b.ledger.HasOpen():
		if err := b.sellLast(ctx, price, signal.Reason); err != nil {
			return err
		}
	}

	return b.checkExits(ctx, price)
}

// buy opens the single allowed position with a limit order placed slightly
// above market so it fills promptly.
func (b *ScalpingBot) buy(ctx context.Context, price float64, reason string) error {
	quantity, err := b.sizeOrder(ctx, price)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		b.logger.Warn("Insufficient balance for buy order", zap.String("symbol", b.cfg.Symbol))
		return nil
	}

	order, err := b.exec.Submit(ctx, executor.Request{
		Symbol:   b.cfg.Symbol,
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeLimit,
		Quantity: quantity,
		Price:    price * 1.001,
		Reason:   reason,
		Bot:      b.name,
	})
	if err != nil {
		return err
	}

	b.ledger.Record(*order)
	b.ledger.Open(domain.Position{
		ID:         uuid.NewString(),
		Symbol:     b.cfg.Symbol,
		EntryPrice: order.Price,
		Quantity:   order.Quantity,
		EntryTime:  time.Now(),
		TakeProfit: order.Price * (1 + b.cfg.ProfitTarget),
		StopLoss:   order.Price * (1 - b.cfg.StopLoss),
		Bot:        b.name,
	})
	b.logger.Info("BUY order placed",
		zap.Int64("order_id", order.OrderID),
		zap.Float64("price", order.Price),
		zap.Float64("quantity", order.Quantity),
		zap.String("reason", reason))
	return nil
}

// sellLast closes the most recently opened position (stack discipline) with
// a limit order slightly below market.
func (b *ScalpingBot) sellLast(ctx context.Context, price float64, reason string) error {
	position, ok := b.ledger.Last()
	if !ok {
		return nil
	}

	order, err := b.exec.Submit(ctx, executor.Request{
		Symbol:   b.cfg.Symbol,
		Side:     domain.SideSell,
		Type:     domain.OrderTypeLimit,
		Quantity: position.Quantity,
		Price:    price * 0.999,
		Reason:   reason,
		Bot:      b.name,
	})
	if err != nil {
		return err
	}

	order.Profit = (order.Price - position.EntryPrice) * position.Quantity
	b.ledger.Record(*order)
	b.ledger.CloseLast()
	b.logger.Info("SELL order placed",
		zap.Int64("order_id", order.OrderID),
		zap.Float64("price", order.Price),
		zap.Float64("profit", order.Profit),
		zap.String("reason", reason))
	return nil
}

// checkExits enforces the open position's stop-loss and take-profit bounds
// against the latest price. Runs on every candle, not only on new signals.
func (b *ScalpingBot) checkExits(ctx context.Context, price float64) error {
	position, ok := b.ledger.Last()
	if !ok {
		return nil
	}

	switch {
	case price <= position.StopLoss:
		b.logger.Warn("Stop loss triggered", zap.Float64("price", price), zap.Float64("stop", position.StopLoss))
		return b.sellLast(ctx, price, "Stop loss triggered")
	case price >= position.TakeProfit:
		b.logger.Info("Take profit triggered", zap.Float64("price", price), zap.Float64("target", position.TakeProfit))
		return b.sellLast(ctx, price, "Take profit triggered")
	}
	return nil
}

// sizeOrder invests a tenth of the free quote balance, capped at the
// configured maximum position size. With no readable balance the fixed
// fallback quantity is used.
func (b *ScalpingBot) sizeOrder(ctx context.Context, price float64) (float64, error) {
	free, err := b.freeBalance(ctx, b.cfg.QuoteAsset)
	if err != nil {
		return 0, err
	}
	if free <= 0 {
		return b.cfg.Quantity, nil
	}
	quantity := free * 0.1 / price
	if quantity > b.cfg.MaxPositionSize {
		quantity = b.cfg.MaxPositionSize
	}
	return quantity, nil
}

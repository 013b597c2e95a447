package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multibot/internal/domain"
	"multibot/internal/executor"
)

type NewListingConfig struct {
	QuoteAsset       string  `yaml:"quote_asset"`
	PollIntervalSec  int     `yaml:"poll_interval_sec"`
	CheckIntervalSec int     `yaml:"check_interval_sec"`
	BalanceFloor     float64 `yaml:"balance_floor"`
	BalanceFraction  float64 `yaml:"balance_fraction"`
	ProfitTarget     float64 `yaml:"profit_target"`
	StopLoss         float64 `yaml:"stop_loss"`
}

func DefaultNewListingConfig() NewListingConfig {
	return NewListingConfig{
		QuoteAsset:       "USDT",
		PollIntervalSec:  60,
		CheckIntervalSec: 30,
		BalanceFloor:     10,
		BalanceFraction:  0.02,
		ProfitTarget:     0.05,
		StopLoss:         0.03,
	}
}

// NewListingBot polls the venue's symbol list and buys into freshly listed
// quote-asset pairs. A symbol is evaluated at most once ever: relisting
// after a temporary delisting does not trigger a second buy.
type NewListingBot struct {
	base
	cfg NewListingConfig

	// seen is the symbol universe from the previous poll; evaluated is the
	// grow-only set of symbols already scored. Both touched only by the
	// bot's own loop.
	seen      map[string]struct{}
	evaluated map[string]struct{}
}

func NewNewListingBot(cfg NewListingConfig, exchange domain.Exchange, exec *executor.Executor, logger *zap.Logger) *NewListingBot {
	return &NewListingBot{
		base:      newBase("NewListingBot", exchange, exec, logger),
		cfg:       cfg,
		seen:      make(map[string]struct{}),
		evaluated: make(map[string]struct{}),
	}
}

func (b *NewListingBot) Start(ctx context.Context) error {
	loopCtx, err := b.begin(ctx)
	if err != nil {
		return err
	}
	go b.run(loopCtx)
	return nil
}

func (b *NewListingBot) run(ctx context.Context) {
	// The running flag must not outlive the loop, whichever way it exits.
	defer b.exitLoop(b.stopChan)

	// The first scan only establishes the baseline universe; everything
	// listed before the bot started is not "new".
	if err := b.scan(ctx, true); err != nil {
		b.logger.Error("Initial symbol scan failed", zap.Error(err))
	}

	pollTicker := time.NewTicker(time.Duration(b.cfg.PollIntervalSec) * time.Second)
	defer pollTicker.Stop()
	checkTicker := time.NewTicker(time.Duration(b.cfg.CheckIntervalSec) * time.Second)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case <-pollTicker.C:
			if err := b.scan(ctx, false); err != nil {
				b.logger.Error("Symbol scan failed", zap.Error(err))
			}
		case <-checkTicker.C:
			b.checkExits(ctx)
		}
	}
}

// scan diffs the current symbol list against the previous one and evaluates
// each newly observed quote-asset pair.
func (b *NewListingBot) scan(ctx context.Context, baseline bool) error {
	symbols, err := b.exchange.ListSymbols(ctx)
	if err != nil {
		return err
	}

	current := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		current[symbol] = struct{}{}
		if baseline {
			continue
		}
		if _, known := b.seen[symbol]; known {
			continue
		}
		if !strings.HasSuffix(symbol, b.cfg.QuoteAsset) {
			continue
		}
		if _, done := b.evaluated[symbol]; done {
			continue
		}
		b.logger.Info("New symbol detected", zap.String("symbol", symbol))
		if err := b.evaluate(ctx, symbol); err != nil {
			b.logger.Error("Failed to evaluate new listing",
				zap.String("symbol", symbol),
				zap.Error(err))
		}
	}
	b.seen = current
	return nil
}

// evaluate sizes and places the entry buy for one new listing. The symbol is
// marked evaluated regardless of outcome.
func (b *NewListingBot) evaluate(ctx context.Context, symbol string) error {
	b.evaluated[symbol] = struct{}{}

	price, err := b.exchange.GetPrice(ctx, symbol)
	if err != nil {
		return err
	}
	b.logger.Info("New listing priced", zap.String("symbol", symbol), zap.Float64("price", price))

	free, err := b.freeBalance(ctx, b.cfg.QuoteAsset)
	if err != nil {
		return err
	}
	if free <= b.cfg.BalanceFloor {
		b.logger.Info("Balance below floor, skipping new listing",
			zap.String("symbol", symbol),
			zap.Float64("free", free))
		return nil
	}

	order, err := b.exec.Submit(ctx, executor.Request{
		Symbol:   symbol,
		Side:     domain.SideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: free * b.cfg.BalanceFraction / price,
		Price:    price,
		Reason:   "New listing purchase",
		Bot:      b.name,
	})
	if err != nil {
		if skippable(err) {
			b.logger.Warn("New listing trade skipped",
				zap.String("symbol", symbol),
				zap.Error(err))
			return nil
		}
		return err
	}

	b.ledger.Record(*order)
	b.ledger.Open(domain.Position{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		EntryPrice: order.Price,
		Quantity:   order.Quantity,
		EntryTime:  time.Now(),
		TakeProfit: order.Price * (1 + b.cfg.ProfitTarget),
		StopLoss:   order.Price * (1 - b.cfg.StopLoss),
		Bot:        b.name,
	})
	b.logger.Info("New listing purchase",
		zap.String("symbol", symbol),
		zap.Float64("price", order.Price),
		zap.Float64("quantity", order.Quantity))
	return nil
}

// checkExits closes any position whose price has crossed its take-profit or
// stop-loss bound. One position's failure does not stop the sweep.
func (b *NewListingBot) checkExits(ctx context.Context) {
	for _, position := range b.ledger.Positions() {
		price, err := b.exchange.GetPrice(ctx, position.Symbol)
		if err != nil {
			b.logger.Error("Failed to price position",
				zap.String("symbol", position.Symbol),
				zap.Error(err))
			continue
		}

		var reason string
		switch {
		case price >= position.TakeProfit:
			reason = "New listing take profit"
		case price <= position.StopLoss:
			reason = "New listing stop loss"
		default:
			continue
		}
		if err := b.closePosition(ctx, position, price, reason); err != nil {
			b.logger.Error("Failed to close position",
				zap.String("symbol", position.Symbol),
				zap.String("reason", reason),
				zap.Error(err))
		}
	}
}

func (b *NewListingBot) closePosition(ctx context.Context, position domain.Position, price float64, reason string) error {
	order, err := b.exec.Submit(ctx, executor.Request{
		Symbol:   position.Symbol,
		Side:     domain.SideSell,
		Type:     domain.OrderTypeMarket,
		Quantity: position.Quantity,
		Price:    price,
		Reason:   reason,
		Bot:      b.name,
	})
	if err != nil {
		return err
	}

	order.Profit = (order.Price - position.EntryPrice) * position.Quantity
	b.ledger.Record(*order)
	b.ledger.Close(position.ID)
	b.logger.Info("Position closed",
		zap.String("symbol", position.Symbol),
		zap.Float64("price", order.Price),
		zap.Float64("profit", order.Profit),
		zap.String("reason", reason))
	return nil
}

// skippable reports whether a submission error means "skip this trade"
// rather than a fault worth surfacing to the cycle boundary.
func skippable(err error) bool {
	var ve *domain.ValidationError
	return errors.Is(err, domain.ErrRuleUnavailable) || errors.As(err, &ve)
}

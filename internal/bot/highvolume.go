package bot

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multibot/internal/domain"
	"multibot/internal/executor"
)

type HighVolumeConfig struct {
	QuoteAsset       string  `yaml:"quote_asset"`
	PollIntervalSec  int     `yaml:"poll_interval_sec"`
	CheckIntervalSec int     `yaml:"check_interval_sec"`
	BalanceFloor     float64 `yaml:"balance_floor"`
	BalanceFraction  float64 `yaml:"balance_fraction"`
	ScoreThreshold   float64 `yaml:"score_threshold"`
	TopN             int     `yaml:"top_n"`
	VolumeSpike      float64 `yaml:"volume_spike"`
	ProfitTarget     float64 `yaml:"profit_target"`
	StopLoss         float64 `yaml:"stop_loss"`
}

func DefaultHighVolumeConfig() HighVolumeConfig {
	return HighVolumeConfig{
		QuoteAsset:       "USDT",
		PollIntervalSec:  300,
		CheckIntervalSec: 30,
		BalanceFloor:     10,
		BalanceFraction:  0.03,
		ScoreThreshold:   80,
		TopN:             5,
		VolumeSpike:      3.0,
		ProfitTarget:     0.04,
		StopLoss:         0.01,
	}
}

type scoredSymbol struct {
	symbol         string
	score          float64
	priceChangePct float64
}

// HighVolumeBot scans the full 24h ticker list for unusual volume and
// momentum, keeps the top scorers and buys those that pass a short-horizon
// confirmation. One open trade per symbol at a time.
type HighVolumeBot struct {
	base
	cfg HighVolumeConfig

	// trading holds symbols with an open trade; touched only by the bot's
	// own loop.
	trading map[string]struct{}
}

func NewHighVolumeBot(cfg HighVolumeConfig, exchange domain.Exchange, exec *executor.Executor, logger *zap.Logger) *HighVolumeBot {
	return &HighVolumeBot{
		base:    newBase("HighVolumeBot", exchange, exec, logger),
		cfg:     cfg,
		trading: make(map[string]struct{}),
	}
}

func (b *HighVolumeBot) Start(ctx context.Context) error {
	loopCtx, err := b.begin(ctx)
	if err != nil {
		return err
	}
	go b.run(loopCtx)
	return nil
}

func (b *HighVolumeBot) run(ctx context.Context) {
	// The running flag must not outlive the loop, whichever way it exits.
	defer b.exitLoop(b.stopChan)

	pollTicker := time.NewTicker(time.Duration(b.cfg.PollIntervalSec) * time.Second)
	defer pollTicker.Stop()
	checkTicker := time.NewTicker(time.Duration(b.cfg.CheckIntervalSec) * time.Second)
	defer checkTicker.Stop()

	if err := b.scan(ctx); err != nil {
		b.logger.Error("Volume scan failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case <-pollTicker.C:
			if err := b.scan(ctx); err != nil {
				b.logger.Error("Volume scan failed", zap.Error(err))
			}
		case <-checkTicker.C:
			b.checkExits(ctx)
		}
	}
}

// scan scores every quote-asset pair and probes the top scorers above the
// threshold.
func (b *HighVolumeBot) scan(ctx context.Context) error {
	tickers, err := b.exchange.GetTickers(ctx)
	if err != nil {
		return err
	}

	var candidates []scoredSymbol
	for _, ticker := range tickers {
		if !strings.HasSuffix(ticker.Symbol, b.cfg.QuoteAsset) {
			continue
		}
		score := b.score(ctx, ticker)
		if score > b.cfg.ScoreThreshold {
			candidates = append(candidates, scoredSymbol{
				symbol:         ticker.Symbol,
				score:          score,
				priceChangePct: ticker.PriceChangePct,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > b.cfg.TopN {
		candidates = candidates[:b.cfg.TopN]
	}

	for _, candidate := range candidates {
		if _, open := b.trading[candidate.symbol]; open {
			continue
		}
		if err := b.probe(ctx, candidate); err != nil {
			b.logger.Error("Failed to probe candidate",
				zap.String("symbol", candidate.symbol),
				zap.Error(err))
		}
	}
	return nil
}

// score is the composite momentum/volume score: a capped volume-ratio
// component, an absolute-momentum component, and a consistency bonus that
// shrinks as recent volumes get noisier. Symbols with thin candle history
// or zero average volume score zero.
func (b *HighVolumeBot) score(ctx context.Context, ticker domain.Ticker) float64 {
	candles, err := b.exchange.GetCandles(ctx, ticker.Symbol, "1h", 168)
	if err != nil {
		b.logger.Debug("No candle history for scoring",
			zap.String("symbol", ticker.Symbol),
			zap.Error(err))
		return 0
	}
	if len(candles) < 24 {
		return 0
	}

	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}
	avgVolume := mean(volumes)
	if avgVolume == 0 {
		return 0
	}

	volumeRatio := ticker.Volume24h / avgVolume
	volumeScore := math.Min(volumeRatio*20, 50)
	momentumScore := math.Abs(ticker.PriceChangePct) * 2

	recent := volumes[len(volumes)-24:]
	consistencyPenalty := math.Min(stddev(recent)/avgVolume*100, 30)

	return volumeScore + momentumScore + (30 - consistencyPenalty)
}

// probe runs the short-horizon confirmation on a scored symbol: price above
// the 20-period moving average by 2% and the latest candle's volume above
// the configured spike multiple of its average.
func (b *HighVolumeBot) probe(ctx context.Context, candidate scoredSymbol) error {
	candles, err := b.exchange.GetCandles(ctx, candidate.symbol, "15m", 96)
	if err != nil {
		return err
	}
	if len(candles) < 20 {
		return nil
	}

	recent := candles[len(candles)-20:]
	closes := make([]float64, len(recent))
	volumes := make([]float64, len(recent))
	for i, c := range recent {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}

	price := closes[len(closes)-1]
	sma := mean(closes)
	volumeSMA := mean(volumes)
	lastVolume := volumes[len(volumes)-1]

	if price > sma*1.02 && lastVolume > volumeSMA*b.cfg.VolumeSpike {
		return b.buy(ctx, candidate.symbol, price, candidate.score)
	}
	return nil
}

func (b *HighVolumeBot) buy(ctx context.Context, symbol string, price, score float64) error {
	free, err := b.freeBalance(ctx, b.cfg.QuoteAsset)
	if err != nil {
		return err
	}
	if free <= b.cfg.BalanceFloor {
		b.logger.Info("Balance below floor, skipping high volume buy",
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
		Reason:   fmt.Sprintf("High volume opportunity (Score: %.1f)", score),
		Bot:      b.name,
	})
	if err != nil {
		if skippable(err) {
			b.logger.Warn("High volume trade skipped",
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
	b.trading[symbol] = struct{}{}
	b.logger.Info("High volume purchase",
		zap.String("symbol", symbol),
		zap.Float64("price", order.Price),
		zap.Float64("score", score))
	return nil
}

func (b *HighVolumeBot) checkExits(ctx context.Context) {
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
			reason = "Take profit"
		case price <= position.StopLoss:
			reason = "Take loss"
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

func (b *HighVolumeBot) closePosition(ctx context.Context, position domain.Position, price float64, reason string) error {
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
	delete(b.trading, position.Symbol)
	b.logger.Info("High volume sale",
		zap.String("symbol", position.Symbol),
		zap.Float64("profit", order.Profit),
		zap.String("reason", reason))
	return nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)))
}

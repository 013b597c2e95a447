// Package executor normalizes desired trades against the venue's trading
// rules and submits them with bounded retries. It never touches a bot's
// ledger; the calling bot records the returned order itself.
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"multibot/internal/domain"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
)

type Config struct {
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMs   int `yaml:"backoff_ms"`
}

// Request is one desired trade before normalization. Price is the limit
// price for LIMIT orders and the observed market price for MARKET orders
// (used for the notional check and as the fill-price fallback).
type Request struct {
	Symbol   string
	Side     domain.Side
	Type     domain.OrderType
	Quantity float64
	Price    float64
	Reason   string
	Bot      string
}

type Executor struct {
	exchange    domain.Exchange
	rules       *RuleCache
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
}

func New(exchange domain.Exchange, rules *RuleCache, logger *zap.Logger, cfg Config) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	backoff := time.Duration(cfg.BackoffMs) * time.Millisecond
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Executor{
		exchange:    exchange,
		rules:       rules,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		backoff:     backoff,
	}
}

// Submit validates, quantizes and submits one order. Validation failures and
// rule unavailability fail fast without a venue call; only transient errors
// are retried, with linear backoff. On success the returned order is fully
// populated with the actual fill price.
func (e *Executor) Submit(ctx context.Context, req Request) (*domain.Order, error) {
	rule, err := e.rules.Get(ctx, req.Symbol, false)
	if err != nil {
		return nil, err
	}

	quantity := FloorToStep(req.Quantity, rule.StepSize)
	if quantity <= 0 {
		return nil, &domain.ValidationError{Field: "quantity", Reason: "zero after step quantization"}
	}

	price := req.Price
	if req.Type == domain.OrderTypeLimit {
		price = FloorToStep(price, rule.TickSize)
		if price <= 0 {
			return nil, &domain.ValidationError{Field: "price", Reason: "zero after tick quantization"}
		}
	}

	if !meetsNotional(quantity, price, rule.MinNotional) {
		return nil, &domain.ValidationError{
			Field:  "notional",
			Reason: fmt.Sprintf("%.8f below minimum %s", quantity*price, rule.MinNotional),
		}
	}

	result, err := e.place(ctx, req, quantity, price)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		OrderID:  result.OrderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: quantity,
		Price:    result.FillPrice(price),
		Status:   result.Status,
		Time:     time.Now(),
		Reason:   req.Reason,
		Bot:      req.Bot,
	}
	return order, nil
}

// place wraps the raw venue call with the retry policy: up to maxAttempts
// tries, sleeping backoff*attempt between them, retrying only transient
// failures.
func (e *Executor) place(ctx context.Context, req Request, quantity, price float64) (*domain.OrderResult, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		var (
			result *domain.OrderResult
			err    error
		)
		if req.Type == domain.OrderTypeMarket {
			result, err = e.exchange.PlaceMarketOrder(ctx, req.Symbol, req.Side, quantity)
		} else {
			result, err = e.exchange.PlaceLimitOrder(ctx, req.Symbol, req.Side, quantity, price)
		}
		if err == nil {
			return result, nil
		}
		if !domain.IsTransient(err) {
			return nil, err
		}

		lastErr = err
		e.logger.Warn("Order attempt failed",
			zap.String("bot", req.Bot),
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.maxAttempts),
			zap.Error(err))

		if attempt == e.maxAttempts {
			break
		}
		select {
		case <-time.After(e.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("order failed after %d attempts: %w", e.maxAttempts, lastErr)
}

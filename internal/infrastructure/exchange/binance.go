// Package exchange adapts the Binance spot API to the domain.Exchange
// interface. One adapter instance is shared by every bot; a token-bucket
// limiter in front of every REST call keeps the swarm inside the venue's
// request budget.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"multibot/internal/domain"
)

const DefaultWSBaseURL = "wss://stream.binance.com:9443"

// Binance error codes that are worth retrying: unknown/internal, lost
// connection, request throttled, unexpected response, send timeout.
var transientCodes = map[int64]bool{
	-1000: true,
	-1001: true,
	-1003: true,
	-1006: true,
	-1007: true,
}

type BinanceAdapter struct {
	client    *binance.Client
	wsBaseURL string
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func NewBinanceAdapter(apiKey, apiSecret, wsBaseURL string, limiter *rate.Limiter, logger *zap.Logger) *BinanceAdapter {
	if wsBaseURL == "" {
		wsBaseURL = DefaultWSBaseURL
	}
	return &BinanceAdapter{
		client:    binance.NewClient(apiKey, apiSecret),
		wsBaseURL: wsBaseURL,
		limiter:   limiter,
		logger:    logger,
	}
}

// wait blocks until the shared request budget admits one more call.
func (a *BinanceAdapter) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Wait(ctx)
}

// translate maps SDK errors onto the domain taxonomy. API errors with a
// retryable code and plain transport errors become transient; every other
// API error is a definitive venue rejection.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[apiErr.Code] {
			return &domain.TransientError{Err: err}
		}
		return &domain.RejectionError{Code: apiErr.Code, Message: apiErr.Message}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &domain.TransientError{Err: err}
}

func (a *BinanceAdapter) GetPrice(ctx context.Context, symbol string) (float64, error) {
	if err := a.wait(ctx); err != nil {
		return 0, err
	}
	prices, err := a.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, translate(err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

func (a *BinanceAdapter) GetBalances(ctx context.Context) (map[string]domain.Balance, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	account, err := a.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, translate(err)
	}
	balances := make(map[string]domain.Balance, len(account.Balances))
	for _, b := range account.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		if free == 0 && locked == 0 {
			continue
		}
		balances[b.Asset] = domain.Balance{Free: free, Locked: locked}
	}
	return balances, nil
}

func (a *BinanceAdapter) GetTradingRule(ctx context.Context, symbol string) (*domain.TradingRule, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	info, err := a.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, translate(err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		rule := &domain.TradingRule{Symbol: symbol}
		for _, f := range s.Filters {
			switch f["filterType"] {
			case "LOT_SIZE":
				rule.StepSize = filterDecimal(f, "stepSize")
			case "PRICE_FILTER":
				rule.TickSize = filterDecimal(f, "tickSize")
			case "MIN_NOTIONAL":
				rule.MinNotional = filterDecimal(f, "minNotional")
			case "NOTIONAL":
				rule.MinNotional = filterDecimal(f, "minNotional")
			}
		}
		return rule, nil
	}
	return nil, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

func filterDecimal(filter map[string]interface{}, key string) decimal.Decimal {
	raw, ok := filter[key].(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a *BinanceAdapter) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	klines, err := a.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, translate(err)
	}
	candles := make([]domain.Candle, 0, len(klines))
	now := time.Now().UnixMilli()
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		close_, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)
		candles = append(candles, domain.Candle{
			Time:   k.OpenTime,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close_,
			Volume: volume,
			Closed: k.CloseTime <= now,
		})
	}
	return candles, nil
}

func (a *BinanceAdapter) ListSymbols(ctx context.Context) ([]string, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, translate(err)
	}
	symbols := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	return symbols, nil
}

func (a *BinanceAdapter) GetTickers(ctx context.Context) ([]domain.Ticker, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	stats, err := a.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, translate(err)
	}
	tickers := make([]domain.Ticker, 0, len(stats))
	for _, s := range stats {
		last, _ := strconv.ParseFloat(s.LastPrice, 64)
		change, _ := strconv.ParseFloat(s.PriceChangePercent, 64)
		volume, _ := strconv.ParseFloat(s.Volume, 64)
		tickers = append(tickers, domain.Ticker{
			Symbol:         s.Symbol,
			LastPrice:      last,
			PriceChangePct: change,
			Volume24h:      volume,
		})
	}
	return tickers, nil
}

func (a *BinanceAdapter) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity float64) (*domain.OrderResult, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeMarket).
		Quantity(formatFloat(quantity)).
		Do(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return convertOrderResponse(resp), nil
}

func (a *BinanceAdapter) PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, quantity, price float64) (*domain.OrderResult, error) {
	if err := a.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := a.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binance.SideType(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(formatFloat(quantity)).
		Price(formatFloat(price)).
		Do(ctx)
	if err != nil {
		return nil, translate(err)
	}
	return convertOrderResponse(resp), nil
}

func (a *BinanceAdapter) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	if err := a.wait(ctx); err != nil {
		return err
	}
	_, err := a.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	return translate(err)
}

func convertOrderResponse(resp *binance.CreateOrderResponse) *domain.OrderResult {
	result := &domain.OrderResult{
		OrderID: resp.OrderID,
		Status:  string(resp.Status),
	}
	for _, f := range resp.Fills {
		price, _ := strconv.ParseFloat(f.Price, 64)
		qty, _ := strconv.ParseFloat(f.Quantity, 64)
		result.Fills = append(result.Fills, domain.Fill{Price: price, Quantity: qty})
	}
	return result
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

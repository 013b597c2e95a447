package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"multibot/internal/bot"
	"multibot/internal/domain"
)

type stubExchange struct{}

func (stubExchange) GetPrice(ctx context.Context, symbol string) (float64, error) { return 0, nil }

func (stubExchange) GetBalances(ctx context.Context) (map[string]domain.Balance, error) {
	return map[string]domain.Balance{"USDT": {Free: 1000}}, nil
}

func (stubExchange) GetTradingRule(ctx context.Context, symbol string) (*domain.TradingRule, error) {
	return nil, nil
}

func (stubExchange) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	return nil, nil
}

func (stubExchange) ListSymbols(ctx context.Context) ([]string, error) { return nil, nil }

func (stubExchange) GetTickers(ctx context.Context) ([]domain.Ticker, error) { return nil, nil }

func (stubExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity float64) (*domain.OrderResult, error) {
	return nil, nil
}

func (stubExchange) PlaceLimitOrder(ctx context.Context, symbol string, side domain.Side, quantity, price float64) (*domain.OrderResult, error) {
	return nil, nil
}

func (stubExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) error { return nil }

func (stubExchange) SubscribeCandles(ctx context.Context, symbol, interval string, handler func(domain.Candle)) error {
	return nil
}

// recordingBot captures the context its loop would run on.
type recordingBot struct {
	name     string
	startCtx context.Context
	running  bool
}

func (b *recordingBot) Name() string { return b.name }

func (b *recordingBot) Start(ctx context.Context) error {
	b.startCtx = ctx
	b.running = true
	return nil
}

func (b *recordingBot) Stop()                        { b.running = false }
func (b *recordingBot) Running() bool                { return b.running }
func (b *recordingBot) Stats() domain.BotStats       { return domain.BotStats{Name: b.name} }
func (b *recordingBot) Orders() []domain.Order       { return nil }
func (b *recordingBot) Positions() []domain.Position { return nil }

func newTestServer() *Server {
	orchestrator := bot.NewOrchestrator(context.Background(), stubExchange{}, zap.NewNop())
	config := map[string]any{"testnet": true}
	return NewServer(0, orchestrator, config, zap.NewNop())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var health domain.Health
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Bad health payload: %v", err)
	}
	if health.TotalBots != 0 || health.RunningBots != 0 {
		t.Errorf("Expected empty registry, got %+v", health)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var balances map[string]domain.Balance
	if err := json.Unmarshal(rec.Body.Bytes(), &balances); err != nil {
		t.Fatalf("Bad balance payload: %v", err)
	}
	if balances["USDT"].Free != 1000 {
		t.Errorf("Expected USDT 1000, got %v", balances["USDT"].Free)
	}
}

func TestConfigEndpointEchoesSanitizedConfig(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	var config map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &config); err != nil {
		t.Fatalf("Bad config payload: %v", err)
	}
	if config["testnet"] != true {
		t.Errorf("Expected testnet flag, got %+v", config)
	}
}

func TestStartBotOutlivesRequestContext(t *testing.T) {
	orchestrator := bot.NewOrchestrator(context.Background(), stubExchange{}, zap.NewNop())
	recorded := &recordingBot{name: "Scalping"}
	orchestrator.Register(recorded)
	s := NewServer(0, orchestrator, nil, zap.NewNop())

	reqCtx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/start-bot/Scalping", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	cancel() // the server cancels the request context once the handler returns

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if recorded.startCtx == nil {
		t.Fatal("Bot was never started")
	}
	if err := recorded.startCtx.Err(); err != nil {
		t.Errorf("Bot lifecycle context died with the request: %v", err)
	}
}

func TestStartUnknownBotReturns404(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/start-bot/NoSuchBot", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rec.Code)
	}
}

func TestControlEndpointsRejectGet(t *testing.T) {
	s := newTestServer()
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stop", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rec.Code)
	}
}

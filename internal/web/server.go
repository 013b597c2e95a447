package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"multibot/internal/bot"
)

// PushInterval is how often connected dashboard clients receive a fresh
// snapshot over the websocket.
const PushInterval = 3 * time.Second

type Server struct {
	router       *http.ServeMux
	server       *http.Server
	orchestrator *bot.Orchestrator
	config       any
	hub          *hub
	logger       *zap.Logger
}

// NewServer wires the dashboard API around the orchestrator. config is the
// sanitized runtime configuration exposed read-only at /api/config.
func NewServer(port int, orchestrator *bot.Orchestrator, config any, logger *zap.Logger) *Server {
	s := &Server{
		router:       http.NewServeMux(),
		orchestrator: orchestrator,
		config:       config,
		hub:          newHub(logger),
		logger:       logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Read-only state
	s.router.HandleFunc("GET /api/stats", s.handleStats)
	s.router.HandleFunc("GET /api/orders", s.handleOrders)
	s.router.HandleFunc("GET /api/balance", s.handleBalance)
	s.router.HandleFunc("GET /api/config", s.handleConfig)
	s.router.HandleFunc("GET /api/health", s.handleHealth)

	// Control
	s.router.HandleFunc("POST /api/start", s.handleStartAll)
	s.router.HandleFunc("POST /api/stop", s.handleStopAll)
	s.router.HandleFunc("POST /api/start-bot/{name}", s.handleStartBot)
	s.router.HandleFunc("POST /api/stop-bot/{name}", s.handleStopBot)

	// Live updates
	s.router.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) Start(ctx context.Context) error {
	go s.pushLoop(ctx)
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.server.Shutdown(ctx)
}

// pushLoop periodically broadcasts a dashboard snapshot to every connected
// websocket client.
func (s *Server) pushLoop(ctx context.Context) {
	ticker := time.NewTicker(PushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.empty() {
				continue
			}
			s.hub.broadcast(s.snapshot(ctx))
		}
	}
}

func (s *Server) snapshot(ctx context.Context) map[string]any {
	update := map[string]any{
		"stats":  s.orchestrator.Stats(),
		"orders": s.orchestrator.RecentOrders(20),
	}
	balances, err := s.orchestrator.Balances(ctx)
	if err != nil {
		s.logger.Warn("Failed to read balances for push", zap.Error(err))
	} else {
		update["balance"] = balances
	}
	return update
}

package web

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const recentOrderLimit = 50

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.orchestrator.Stats())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.orchestrator.RecentOrders(recentOrderLimit))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	balances, err := s.orchestrator.Balances(r.Context())
	if err != nil {
		s.logger.Error("Failed to fetch balances", zap.Error(err))
		http.Error(w, "Failed to fetch balances", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, balances)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.config)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.orchestrator.Health())
}

// Start handlers must not hand the request context to a bot loop; the
// server cancels it as soon as the response is written.
func (s *Server) handleStartAll(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.StartAll()
	s.writeJSON(w, map[string]string{"status": "started"})
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	s.orchestrator.StopAll()
	s.writeJSON(w, map[string]string{"status": "stopped"})
}

func (s *Server) handleStartBot(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.orchestrator.StartOne(name); err != nil {
		s.logger.Error("Failed to start bot", zap.String("bot", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, map[string]string{"status": "started", "bot": name})
}

func (s *Server) handleStopBot(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.orchestrator.StopOne(name); err != nil {
		s.logger.Error("Failed to stop bot", zap.String("bot", name), zap.Error(err))
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.writeJSON(w, map[string]string{"status": "stopped", "bot": name})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// Package api provides the read-only HTTP API for observing a live
// run: current physiology, recent cycle records and battery telemetry.
// See design doc Section 2.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fieldmind/homeostat/internal/body"
	"github.com/fieldmind/homeostat/internal/engine"
	"github.com/fieldmind/homeostat/internal/persistence"
)

// Server serves the run state over HTTP. All endpoints are GET-only.
type Server struct {
	Loop    *engine.Loop
	DB      *persistence.DB
	Battery body.Battery // Optional; nil disables /battery
	RunID   string
	Port    int
}

// Start begins serving the HTTP API in a goroutine. A Port of 0
// disables the server.
func (s *Server) Start() {
	if s.Port == 0 {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/cycles", s.handleCycles)
	mux.HandleFunc("/api/v1/battery", s.handleBattery)

	addr := fmt.Sprintf(":%d", s.Port)
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]any{
		"run_id": s.RunID,
		"status": s.Loop.Status(),
	})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	recs, err := s.DB.RecentCycles(s.RunID, limit)
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"run_id": s.RunID,
		"cycles": recs,
	})
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Battery == nil {
		http.Error(w, "battery telemetry not available", http.StatusNotFound)
		return
	}
	status, err := s.Battery.Status()
	if err != nil {
		http.Error(w, "battery query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}

package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charleschow/sports-lounge/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

type ServerConfig struct {
	Addr              string
	RelaySecret       string
	HeartbeatInterval time.Duration
}

// Server exposes the hub over HTTP: the relay and viewer websockets plus
// /metrics and /healthz.
type Server struct {
	hub  *Hub
	cfg  ServerConfig
	http *http.Server
	reg  *prometheus.Registry
}

func NewServer(hub *Hub, cfg ServerConfig) (*Server, error) {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	reg := prometheus.NewRegistry()
	if err := telemetry.RegisterPrometheus(reg); err != nil {
		return nil, err
	}
	s := &Server{hub: hub, cfg: cfg, reg: reg}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/relay", s.handleRelay)
	mux.HandleFunc("/ws/live", s.handleLive)
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.hub.Health())
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	telemetry.Plainf("Hub: listening on %s", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes the hub's relay and viewers, then stops the listener.
// Hijacked websocket connections are not tracked by http.Server, so the
// hub closes them itself.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

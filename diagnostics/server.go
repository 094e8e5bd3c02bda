// Package diagnostics exposes the plan, policy and live state surface
// spec.md §6 requires, grounded on the teacher's scheduler/server.go
// (health/readiness/websocket HTTP server built on gorilla/websocket).
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/devskill-org/battery-optimizer/optimizer"
	"github.com/gorilla/websocket"
)

// Snapshot is the current dispatch state published to HTTP and WebSocket
// clients, naming the fields spec.md §6 lists: plan, policy, state,
// reason, current_price, soc, solar_power, load_power, grid_power,
// battery_power.
type Snapshot struct {
	Timestamp      time.Time         `json:"timestamp"`
	State          string            `json:"state"`
	Reason         string            `json:"reason"`
	CurrentPriceC  float64           `json:"current_price"`
	SoCPct         float64           `json:"soc"`
	SolarPowerKw   float64           `json:"solar_power"`
	LoadPowerKw    float64           `json:"load_power"`
	GridPowerKw    float64           `json:"grid_power"`
	BatteryPowerKw float64           `json:"battery_power"`
	Plan           []optimizer.Block `json:"plan,omitempty"`
	Policy         *optimizer.Policy `json:"policy,omitempty"`
	Degraded       bool              `json:"degraded"`
}

// Server mirrors the teacher's WebServer: a health/readiness/websocket
// HTTP surface over the current Snapshot, broadcasting to every connected
// client each time Publish is called.
type Server struct {
	port      int
	startTime time.Time
	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
	server    *http.Server

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewServer creates a diagnostics server; port <= 0 disables it, matching
// the teacher's NewWebServer nil-disable convention.
func NewServer(port int) *Server {
	if port <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	s := &Server{
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("/api/health", s.healthHandler)
	mux.HandleFunc("/api/ready", s.readinessHandler)
	mux.HandleFunc("/api/ws", s.wsHandler)

	return s
}

// Publish replaces the current snapshot and broadcasts it to connected
// clients.
func (s *Server) Publish(snap Snapshot) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	message, err := json.Marshal(snap)
	if err != nil {
		return
	}
	select {
	case s.broadcast <- message:
	default:
	}
}

func (s *Server) current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Server) Start() error {
	if s == nil {
		return nil
	}
	go s.handleBroadcasts()
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("diagnostics server error: %v\n", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	close(s.done)
	s.clients.Range(func(key, value any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close() //nolint:gosec
		}
		return true
	})
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.current()
	response := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    formatUptime(time.Since(s.startTime)),
		"state":     snap.State,
		"degraded":  snap.Degraded,
	}
	if snap.Degraded {
		response["status"] = "degraded"
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.current()
	ready := map[string]any{
		"ready":     !snap.Timestamp.IsZero(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	if snap.Timestamp.IsZero() {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(ready); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("diagnostics websocket upgrade error: %v\n", err)
		return
	}
	s.clients.Store(conn, true)

	if err := conn.WriteJSON(s.current()); err != nil {
		fmt.Printf("diagnostics failed to send initial snapshot: %v\n", err)
	}

	defer func() {
		s.clients.Delete(conn)
		conn.Close() //nolint:gosec
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) handleBroadcasts() {
	for {
		select {
		case message := <-s.broadcast:
			s.clients.Range(func(key, value any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close() //nolint:gosec
					s.clients.Delete(conn)
				}
				return true
			})
		case <-s.done:
			return
		}
	}
}

func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	sec := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, sec)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

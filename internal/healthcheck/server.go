// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPort = 8090

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Response is the JSON body of every health endpoint.
type Response struct {
	Healthy bool            `json:"healthy"`
	Checks  map[string]bool `json:"checks,omitempty"`
}

type Config struct {
	Port int
}

// GetConfigFromEnv reads HEALTH_CHECK_PORT, falling back to 8090.
func GetConfigFromEnv() Config {
	port := defaultPort
	if portStr := os.Getenv("HEALTH_CHECK_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p < 65536 {
			port = p
		}
	}
	return Config{Port: port}
}

// Server answers /healthz, /readyz and /livez. Readiness is the conjunction
// of every registered check, evaluated on each request.
type Server struct {
	port   int
	status atomic.Int32

	mu     sync.RWMutex
	checks map[string]func() bool

	server *http.Server
}

func NewServer(config Config) *Server {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	return &Server{
		port:   config.Port,
		checks: map[string]func() bool{},
	}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

// AddReadyCheck registers a named readiness check, replacing any check with
// the same name.
func (s *Server) AddReadyCheck(name string, check func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

func (s *Server) evaluate() (bool, map[string]bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ready := true
	results := make(map[string]bool, len(s.checks))
	for name, check := range s.checks {
		ok := check()
		results[name] = ok
		ready = ready && ok
	}
	return ready, results
}

// IsReady reports whether every readiness check passes.
func (s *Server) IsReady() bool {
	ready, _ := s.evaluate()
	return ready
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, Response{Healthy: s.GetStatus() == StatusHealthy})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ready, checks := s.evaluate()
		writeResponse(w, Response{Healthy: ready, Checks: checks})
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, Response{Healthy: s.GetStatus() != StatusUnhealthy})
	})
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("Starting health check server", slog.Int("port", s.port))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		return fmt.Errorf("health check server: %w", err)
	}
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeResponse(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")
	if response.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}

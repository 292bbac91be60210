/**
 * Copyright (c) 2024 Peking University and Peking University
 * Changsha Institute for Computing and Digital Economy
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package powersimd

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"

	"PowerSim/internal/metrics"
	"PowerSim/internal/powersim"
)

//go:embed index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

type endpoint struct {
	Method      string
	Path        string
	Description string
}

var endpoints = []endpoint{
	{Method: http.MethodGet, Path: "/api/power-status/current", Description: "Current power consumption"},
	{Method: http.MethodGet, Path: "/api/power-status/server", Description: "Comprehensive server status"},
	{Method: http.MethodPost, Path: "/api/power-status/wake", Description: "Trigger wake-up sequence"},
	{Method: http.MethodPost, Path: "/api/power-status/shutdown", Description: "Trigger shutdown sequence"},
	{Method: http.MethodGet, Path: "/api/power-status/state", Description: "Current server state"},
	{Method: http.MethodGet, Path: "/health", Description: "Health check"},
}

// Server exposes a Control over HTTP.
type Server struct {
	control   *powersim.Control
	collector *metrics.Collector
	cfg       Config
	srv       *http.Server
}

// NewServer builds the HTTP surface. collector may be nil, which disables
// /metrics and request counting.
func NewServer(cfg Config, control *powersim.Control, collector *metrics.Collector) *Server {
	s := &Server{
		control:   control,
		collector: collector,
		cfg:       cfg,
	}
	s.srv = &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/power-status/current", s.handlePowerStatus)
	mux.HandleFunc("GET /api/power-status/server", s.handleServerStatus)
	mux.HandleFunc("GET /api/power-status/state", s.handleState)
	mux.HandleFunc("POST /api/power-status/wake", s.handleWake)
	mux.HandleFunc("POST /api/power-status/shutdown", s.handleShutdown)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	if s.collector == nil {
		return mux
	}
	if s.cfg.Metrics.Enabled {
		mux.Handle("GET "+s.cfg.Metrics.Path, s.collector.Handler())
	}
	return s.collector.Instrument(mux)
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	log.Infof("HTTP server listening on %s", l.Addr())
	for _, e := range endpoints {
		log.Debugf("  - %-4s %s", e.Method, e.Path)
	}

	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handlePowerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.control.PowerStatus())
}

func (s *Server) handleServerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.control.ServerStatus())
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.control.CurrentState())
}

func (s *Server) handleWake(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.control.Wake())
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.control.Shutdown())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.control.Health())
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	status, err := json.MarshalIndent(s.control.PowerStatus(), "", "  ")
	if err != nil {
		log.Errorf("Failed to encode status for index page: %v", err)
	}

	data := struct {
		Address   string
		Endpoints []endpoint
		Status    string
	}{
		Address:   s.control.Engine().Config().MockAddress,
		Endpoints: endpoints,
		Status:    string(status),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Errorf("Failed to render index page: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

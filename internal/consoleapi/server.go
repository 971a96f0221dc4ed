// SPDX-License-Identifier: BSD-3-Clause
// Copyright (c) 2025 Pierre Jay

package consoleapi

import (
	"context"
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lumenconsole/internal/engine"
)

//go:embed static/*
var staticFiles embed.FS

// Server is the HTTP/WebSocket transport for the command/event
// surface. It serves a unified JSON /api endpoint, a WebSocket stream
// of engine state broadcasts, Prometheus metrics, and a health check.
type Server struct {
	addr    string
	eng     *engine.Engine
	handler *Handler
	logger  *slog.Logger

	httpSrv  *http.Server
	upgrader websocket.Upgrader

	startedAt time.Time
}

// NewServer builds a console API server bound to addr (e.g. ":8080").
func NewServer(addr string, eng *engine.Engine, handler *Handler, logger *slog.Logger) *Server {
	s := &Server{
		addr:      addr,
		eng:       eng,
		handler:   handler,
		logger:    logger,
		startedAt: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api", s.handleAPI)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	staticFS, _ := fs.Sub(staticFiles, "static")
	mux.Handle("/", http.FileServer(http.FS(staticFS)))

	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.logger.Info("starting console API server", "addr", s.addr)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("console API server error", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// handleAPI is the unified JSON command/event endpoint.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	resp := s.handler.HandleJSON(body)
	w.Header().Set("Content-Type", "application/json")
	w.Write(resp)
}

// handleWebSocket streams engine state broadcasts and accepts Command
// messages, mirroring the unified /api format over a persistent
// connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates := s.eng.Subscribe()
	defer s.eng.Unsubscribe(updates)

	outgoing := make(chan []byte, 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Debug("websocket read error", "error", err)
				}
				return
			}
			outgoing <- s.handler.HandleJSON(message)
		}
	}()

	for {
		select {
		case data := <-outgoing:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case data, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

type healthResponse struct {
	UptimeSeconds int    `json:"uptime_seconds"`
	Uptime        string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(healthResponse{
		UptimeSeconds: int(time.Since(s.startedAt).Seconds()),
		Uptime:        time.Since(s.startedAt).Round(time.Second).String(),
	})
}

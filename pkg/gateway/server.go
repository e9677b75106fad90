package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/altay/deepresearch/internal/metrics"
	"github.com/altay/deepresearch/pkg/research"
	"github.com/altay/deepresearch/pkg/workflow"
)

const maxRequestBytes = 1 << 20 // 1 MiB

// Server exposes the research loop over HTTP: an NDJSON stream endpoint, a
// websocket endpoint carrying the same events, health, and metrics.
type Server struct {
	host         string
	port         int
	sharedSecret string
	manager      *research.Manager
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	upgrader     websocket.Upgrader
	streamer     *streamer

	server         *http.Server
	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	SharedSecret string
	Manager      *research.Manager
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// NewServer creates the gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Manager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}

	return &Server{
		host:         cfg.Host,
		port:         cfg.Port,
		sharedSecret: cfg.SharedSecret,
		manager:      cfg.Manager,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.With().Str("component", "gateway").Logger(),
		streamer:     &streamer{metrics: cfg.Metrics, logger: cfg.Logger},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/research", s.handleResearch)
	mux.HandleFunc("/v1/research/ws", s.handleWebSocket)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// Start begins serving in a background goroutine
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)),
		Handler: s.Handler(),
	}

	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting gateway server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server, waiting briefly for in-flight streams
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// authorize checks the shared-secret bearer token when one is configured
func (s *Server) authorize(r *http.Request) bool {
	if s.sharedSecret == "" {
		return true
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.sharedSecret)) == 1
}

// handleResearch serves POST /v1/research as an NDJSON event stream
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
		return
	}
	if s.shuttingDown() {
		s.writeError(w, http.StatusServiceUnavailable, CodeCapacity, "server is shutting down")
		return
	}
	if !s.authorize(r) {
		s.writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or missing bearer token")
		return
	}

	var req ResearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	// The request context ends when the client disconnects, which cancels
	// the session's model stream and in-flight tools.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, events, err := s.manager.Start(ctx, research.StartRequest{
		Content:     req.Content,
		DatasetName: req.DatasetName,
		Overrides:   req.Overrides,
	})
	if err != nil {
		s.rejectStart(w, err)
		return
	}
	defer s.manager.Release(session.ID)

	s.logger.Info().Str("session_id", session.ID).Str("dataset", req.DatasetName).Msg("Streaming research session")
	s.streamer.streamNDJSON(w, events, cancel)
}

// handleWebSocket serves GET /v1/research/ws: one request message in, the
// session's event stream out.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown() {
		s.writeError(w, http.StatusServiceUnavailable, CodeCapacity, "server is shutting down")
		return
	}
	if !s.authorize(r) {
		s.writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or missing bearer token")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	var req ResearchRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(ErrorResponse{Error: fmt.Sprintf("invalid request message: %v", err), Code: CodeBadRequest})
		return
	}

	s.inFlightReqs.Add(1)
	defer s.inFlightReqs.Done()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, events, err := s.manager.Start(ctx, research.StartRequest{
		Content:     req.Content,
		DatasetName: req.DatasetName,
		Overrides:   req.Overrides,
	})
	if err != nil {
		code := CodeInternal
		var cfgErr *workflow.ConfigError
		if errors.As(err, &cfgErr) {
			code = CodeConfigError
		}
		conn.WriteJSON(ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	defer s.manager.Release(session.ID)

	s.logger.Info().Str("session_id", session.ID).Str("dataset", req.DatasetName).Msg("Streaming research session over websocket")
	s.streamer.streamWebSocket(conn, events, cancel)
}

// rejectStart maps a synchronous session-start failure onto an HTTP status
func (s *Server) rejectStart(w http.ResponseWriter, err error) {
	var cfgErr *workflow.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		s.writeError(w, http.StatusBadRequest, CodeConfigError, err.Error())
	case strings.Contains(err.Error(), "capacity"):
		s.writeError(w, http.StatusServiceUnavailable, CodeCapacity, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// Package mockservice provides an importable stand-in for the workflow
// service's client-facing contract: the workflow REST endpoints, the visual
// status endpoint and a WebSocket that replays a scripted rrweb session.
// It lets the harness run locally and in tests without the real engine.
package mockservice

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/thesyncim/vstream/internal/workflow"
)

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":8000" or ":0" for random port)
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout; 0 keeps streams open indefinitely

	// Token, when set, is required as a bearer token on REST endpoints.
	Token string
	// Workflows seeds the workflow list.
	Workflows []workflow.Workflow
	// ReadyAfter is the number of status polls before a session reports ready.
	ReadyAfter int
	// Script is the sequence of frames replayed on every stream connection.
	Script [][]byte
	// EventInterval is the delay between scripted frames.
	EventInterval time.Duration
	// CloseAfterScript closes the stream once the script is exhausted.
	CloseAfterScript bool

	Logger *slog.Logger
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:          ":0",
		ReadTimeout:   30 * time.Second,
		Workflows:     []workflow.Workflow{{ID: "wf-1", Name: "Seeded Workflow"}},
		ReadyAfter:    1,
		Script:        DefaultScript(),
		EventInterval: 50 * time.Millisecond,
	}
}

// Server is an importable mock of the workflow service.
type Server struct {
	cfg        Config
	httpServer *http.Server
	log        *slog.Logger
	state      *state

	mu      sync.Mutex
	addr    string
	running bool
}

// NewServer creates a new server with the given configuration.
// The server is not started until Start() is called.
func NewServer(cfg Config) (*Server, error) {
	if cfg.ReadyAfter < 0 {
		return nil, fmt.Errorf("ReadyAfter must be >= 0, got %d", cfg.ReadyAfter)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		cfg:   cfg,
		log:   log,
		state: newState(cfg.Workflows),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("mock service stopped", "err", err)
		}
	}()

	return s.addr, nil
}

// Shutdown gracefully shuts down the server. Open streams are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	s.state.closeStreams()
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// BaseURL returns the http base URL of a running server, using localhost
// for wildcard listen addresses.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Session returns a snapshot of a session's state.
func (s *Server) Session(id string) (SessionInfo, bool) {
	return s.state.session(id)
}

// Package server is the development server.
//
// It serves the output directory, injects a live-reload client into HTML
// responses, and pushes a message to every connected browser after each
// rebuild. While the last rebuild failed, page requests get an error
// overlay instead of stale output.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/jsxsite/internal/logging"
	"github.com/conneroisu/jsxsite/internal/types"
)

// LiveReloadPath is the websocket endpoint used by the injected client.
const LiveReloadPath = "/__livereload"

// Options configures a Server.
type Options struct {
	// Dir is the directory served; normally the site output directory.
	Dir  string
	Host string
	Port int
}

// Addr returns the listen address.
func (o Options) Addr() string { return net.JoinHostPort(o.Host, fmt.Sprint(o.Port)) }

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	Changed   []string  `json:"changed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server serves a built site with live reload.
type Server struct {
	opts   Options
	logger logging.Logger

	serverMutex sync.RWMutex
	httpServer  *http.Server

	clientsMutex sync.RWMutex
	clients      map[*websocket.Conn]*Client

	errMutex  sync.RWMutex
	lastError error

	shutdownOnce sync.Once
}

// New creates a server.
func New(opts Options, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		opts:    opts,
		logger:  logger.WithComponent("server"),
		clients: make(map[*websocket.Conn]*Client),
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(LiveReloadPath, s.handleWebSocket)
	mux.HandleFunc("/__health", s.handleHealth)
	mux.HandleFunc("/", s.handleStatic)
	return s.logRequests(mux)
}

// Start listens until ctx is done or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Serving site", "addr", "http://"+ln.Addr().String(), "dir", s.opts.Dir)
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Notify records the outcome of a rebuild and tells every browser.
func (s *Server) Notify(event types.BuildEvent) {
	s.errMutex.Lock()
	s.lastError = event.Err
	s.errMutex.Unlock()

	msg := UpdateMessage{Type: "reload", Changed: event.Changed, Timestamp: time.Now()}
	if event.Err != nil {
		msg.Type = "error"
		msg.Message = event.Err.Error()
	}
	s.broadcastMessage(msg)
}

// LastError returns the error of the last rebuild, if it failed.
func (s *Server) LastError() error {
	s.errMutex.RLock()
	defer s.errMutex.RUnlock()
	return s.lastError
}

func (s *Server) broadcastMessage(msg UpdateMessage) {
	jsonData, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "failed to marshal message")
		jsonData = []byte(`{"type":"reload"}`)
	}
	s.broadcast(jsonData)
}

// Shutdown closes every live-reload connection and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down server")
		s.closeClients()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()

		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"clients":   s.ClientCount(),
		"timestamp": time.Now(),
	}
	if err := s.LastError(); err != nil {
		status["status"] = "build_failed"
		status["error"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.Error(r.Context(), err, "failed to encode health status")
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug(r.Context(), "request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

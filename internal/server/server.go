// Package server hosts the HTTP surface of the oakbridge daemon: status
// and stats endpoints, the control API, snapshots, the websocket status
// feed and the built-in status page. The streaming pipeline itself lives
// in the bridge; the server only exposes it.
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/oakbridge/oakbridge/internal/bridge"
	"github.com/oakbridge/oakbridge/internal/camera"
	"github.com/oakbridge/oakbridge/internal/frame"
	"github.com/oakbridge/oakbridge/internal/server/router"
	"github.com/oakbridge/oakbridge/internal/supervisor"
	"github.com/oakbridge/oakbridge/internal/vcam"
	"github.com/oakbridge/oakbridge/internal/version"
)

// Server is the oakbridge daemon process: one bridge pipeline plus the
// HTTP surface in front of it.
type Server struct {
	port       int
	httpServer *http.Server
	mux        *http.ServeMux

	// Services
	bridge *bridge.Bridge

	// State
	mu        sync.RWMutex
	running   bool
	startTime time.Time
	buildID   string
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a server around an assembled bridge.
func New(port int, br *bridge.Bridge) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		port:   port,
		mux:    http.NewServeMux(),
		bridge: br,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start brings up the bridge and serves HTTP until Stop. Blocks in
// ListenAndServe like any http.Server.
func (s *Server) Start() error {
	s.mu.Lock()
	s.startTime = time.Now()
	s.buildID = GetBuildID()
	s.running = true
	s.mu.Unlock()

	s.setupRoutes()

	if err := s.bridge.Start(s.ctx); err != nil {
		return errors.Wrap(err, "failed to start bridge")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      loggingMiddleware(s.mux),
		ReadTimeout:  0, // No read timeout for streaming connections
		WriteTimeout: 0, // No write timeout for streaming connections
		IdleTimeout:  0, // No idle timeout for streaming connections
	}

	logrus.Infof("oakbridge server listening on port %d (version %s)", s.port, version.Version)
	return s.httpServer.ListenAndServe()
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()

	// Shutdown HTTP server with a bounded grace period
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			logrus.Errorf("HTTP server shutdown error: %v", err)
			// Force close if graceful shutdown fails
			if err := s.httpServer.Close(); err != nil {
				logrus.Errorf("HTTP server force close error: %v", err)
			}
		}
	}

	s.bridge.Stop()
	logrus.Info("oakbridge server stopped")
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// setupRoutes sets up all HTTP routes using the router system
func (s *Server) setupRoutes() {
	// Register routers in order of specificity (most specific first)
	routers := []router.Router{
		&router.APIRouter{},
		&router.StreamRouter{},
		&router.PagesRouter{}, // Must be last as it includes root handler
	}

	for _, r := range routers {
		r.RegisterRoutes(s.mux, s)
	}
}

// ServerService interface implementations for handlers

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

// GetUptime returns server uptime
func (s *Server) GetUptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.startTime)
}

// GetBuildID returns build ID
func (s *Server) GetBuildID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildID
}

// GetVersion returns version info
func (s *Server) GetVersion() string {
	return version.Version
}

// StreamFormat returns the pipeline's fixed stream format
func (s *Server) StreamFormat() frame.Format {
	return s.bridge.Format()
}

// ConnectionState returns the supervisor state snapshot
func (s *Server) ConnectionState() supervisor.Snapshot {
	return s.bridge.State()
}

// PipelineStats returns aggregated pipeline counters
func (s *Server) PipelineStats() bridge.Stats {
	return s.bridge.Stats()
}

// Devices returns the most recent discovery scan
func (s *Server) Devices() ([]camera.DeviceInfo, time.Time) {
	return s.bridge.Devices()
}

// SubmitControl queues a device control command
func (s *Server) SubmitControl(cmd camera.Command) error {
	return s.bridge.SubmitControl(cmd)
}

// SnapshotJPEG returns the presented frame as JPEG
func (s *Server) SnapshotJPEG() ([]byte, vcam.SnapshotMeta, error) {
	return s.bridge.SnapshotJPEG()
}

// SubscribeStatus attaches a status feed subscriber
func (s *Server) SubscribeStatus() (string, <-chan supervisor.StatusEvent) {
	return s.bridge.Subscribe()
}

// UnsubscribeStatus detaches a status feed subscriber
func (s *Server) UnsubscribeStatus(id string) {
	s.bridge.Unsubscribe(id)
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.status = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lw.status == 0 {
		lw.status = http.StatusOK
	}
	n, err := lw.ResponseWriter.Write(b)
	lw.length += n
	return n, err
}

// Hijack keeps websocket upgrades working through the logging wrapper.
func (w *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("http.Hijacker interface is not supported")
	}
	return hj.Hijack()
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		logrus.Infof("%s %s %d %d %s %s", r.Method, r.URL.Path, lw.status, lw.length, time.Since(start), r.RemoteAddr)
	})
}

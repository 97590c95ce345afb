// Package testtarget provides a configurable fake HTTP login endpoint
// for adapter and engine integration tests: a caller-set status code,
// response body, delay, and headers, with optional per-request query
// parameter overrides for table-driven tests that vary the response
// across calls without rebuilding the server.
package testtarget

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// Config is the fake server's default response shape.
type Config struct {
	StatusCode int
	Body       string
	Delay      time.Duration
	Headers    map[string]string
}

// Server wraps an httptest.Server whose response can be changed
// between requests, letting a single fixture stand in for a sequence
// of distinct target responses (e.g. most attempts fail, one hits).
type Server struct {
	*httptest.Server

	mu  sync.Mutex
	cfg Config
}

// New starts a fake login server with the given default response.
func New(cfg Config) *Server {
	if cfg.StatusCode == 0 {
		cfg.StatusCode = http.StatusOK
	}
	s := &Server{cfg: cfg}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// SetConfig replaces the default response for subsequent requests.
func (s *Server) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	if code, err := strconv.Atoi(r.URL.Query().Get("code")); err == nil {
		cfg.StatusCode = code
	}
	if body := r.URL.Query().Get("body"); body != "" {
		cfg.Body = body
	}

	if cfg.Delay > 0 {
		time.Sleep(cfg.Delay)
	}

	for k, v := range cfg.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(cfg.StatusCode)
	if cfg.Body != "" {
		w.Write([]byte(cfg.Body))
	}
}

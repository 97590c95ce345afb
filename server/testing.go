package server

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/crlsmrls/lowandslow/metrics"
)

// The file provides utilities for integration testing:
// - `server.NewTestServer(logWriter, registry, status)`: Creates a full HTTP test server for end-to-end testing
// - `srv.ServeHTTP(responseRecorder, request)`: Direct testing with httptest.ResponseRecorder

// TestServer wraps a Server for testing purposes.
type TestServer struct {
	*Server
	HTTPServer *httptest.Server
}

// NewTestServer creates a new test server with the given configuration.
func NewTestServer(logWriter io.Writer, reg *prometheus.Registry, status StatusFunc) *TestServer {
	if reg == nil {
		reg = metrics.InitMetrics()
	}

	server := New(":0", logWriter, reg, status)
	httpServer := httptest.NewServer(server.router)

	return &TestServer{
		Server:     server,
		HTTPServer: httpServer,
	}
}

// ServeHTTP allows the server to be used directly with httptest.ResponseRecorder.
func (s *Server) ServeHTTP(recorder *httptest.ResponseRecorder, request *http.Request) {
	s.router.ServeHTTP(recorder, request)
}

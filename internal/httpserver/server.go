package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// ShutdownTimeout bounds how long Shutdown waits for in-flight requests.
const ShutdownTimeout = 10 * time.Second

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port. Handlers get
// requestTimeout to finish; the write deadline leaves room to send the
// timeout response. Websocket connections manage their own deadlines once hijacked.
func New(port int, handler http.Handler, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      requestTimeout + 5*time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// Addr reports the listen address.
func (s *Server) Addr() string {
	return s.inner.Addr
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

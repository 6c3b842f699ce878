package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows which paths it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// RequestLogger logs method, path, status and duration of each request.
// Query strings are omitted since they carry authorization codes.
func RequestLogger(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("callback request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Loopback is a short-lived HTTP server bound to a local address.
type Loopback struct {
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// Listen binds addr (host:port, port 0 picks a free one) and starts serving h.
func Listen(addr string, h http.Handler) (*Loopback, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	lb := &Loopback{
		srv:      &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second},
		listener: ln,
		done:     make(chan error, 1),
	}
	go func() {
		err := lb.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		lb.done <- err
	}()
	return lb, nil
}

// Addr returns the bound address.
func (l *Loopback) Addr() string {
	return l.listener.Addr().String()
}

// Close shuts the server down, waiting up to the context deadline for in-flight requests.
func (l *Loopback) Close(ctx context.Context) error {
	if err := l.srv.Shutdown(ctx); err != nil {
		return err
	}
	return <-l.done
}

// Package server runs an HTTP backend that announces itself in a service
// registry, so load-balanced clients can discover it, and withdraws itself on
// graceful shutdown.
//
// Lifecycle:
//
//	Serve: listen → register every service under the advertised address → serve
//	Shutdown: deregister (clients stop picking us) → stop accepting → drain in-flight requests
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-lb/registry"
)

// Server is an HTTP server bound to one advertised instance address.
type Server struct {
	handler     http.Handler
	middlewares []func(http.Handler) http.Handler // Applied in the order they were added
	logger      *zap.Logger

	httpServer    *http.Server
	listener      net.Listener
	shutdown      atomic.Bool       // Set before the listener closes so Serve returns nil
	registry      registry.Registry // nil if not using discovery
	services      []string
	advertiseAddr string // Address registered in the registry (e.g. "127.0.0.1:8080")
	// Different from the listen address (":8080") because clients need a routable IP
	weight int
	ttl    int64

	regCancel context.CancelFunc // stops lease keepalives
	ready     chan struct{}
	readyOnce sync.Once
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry announces the server as an instance of each service in reg.
func WithRegistry(reg registry.Registry, services ...string) Option {
	return func(s *Server) {
		s.registry = reg
		s.services = services
	}
}

// WithInstance sets the advertised address, weight and lease TTL in seconds.
// An empty address advertises the listener's address.
func WithInstance(advertiseAddr string, weight int, ttl int64) Option {
	return func(s *Server) {
		s.advertiseAddr = advertiseAddr
		s.weight = weight
		s.ttl = ttl
	}
}

// NewServer creates a server for handler.
func NewServer(handler http.Handler, opts ...Option) *Server {
	s := &Server{
		handler: handler,
		logger:  zap.NewNop(),
		ttl:     10,
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Use registers an HTTP middleware. Must be called before Serve.
func (svr *Server) Use(mw func(http.Handler) http.Handler) {
	svr.middlewares = append(svr.middlewares, mw)
}

// Ready is closed once the server is listening and registered.
func (svr *Server) Ready() <-chan struct{} {
	return svr.ready
}

// Addr is the advertised instance address. Valid after Ready.
func (svr *Server) Addr() string {
	return svr.advertiseAddr
}

// Serve listens on address, registers the instance and serves until Shutdown.
func (svr *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	svr.listener = listener
	if svr.advertiseAddr == "" {
		svr.advertiseAddr = listener.Addr().String()
	}

	// Build the middleware chain once at startup (not per-request)
	handler := svr.handler
	for i := len(svr.middlewares) - 1; i >= 0; i-- {
		handler = svr.middlewares[i](handler)
	}
	svr.httpServer = &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	if svr.registry != nil {
		ctx, cancel := context.WithCancel(context.Background())
		svr.regCancel = cancel
		for _, name := range svr.services {
			inst := registry.ServiceInstance{Addr: svr.advertiseAddr, Weight: svr.weight}
			if err := svr.registry.Register(ctx, name, inst, svr.ttl); err != nil {
				cancel()
				listener.Close()
				return fmt.Errorf("register %s: %w", name, err)
			}
		}
	}
	svr.logger.Info("serving",
		zap.String("listen", listener.Addr().String()),
		zap.String("advertise", svr.advertiseAddr),
		zap.Strings("services", svr.services))
	svr.readyOnce.Do(func() { close(svr.ready) })

	err = svr.httpServer.Serve(listener)
	// During shutdown the listener is closed on purpose.
	if svr.shutdown.Load() || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown performs graceful shutdown:
//  1. Deregister all services (clients stop routing to this server)
//  2. Set shutdown flag and stop accepting connections
//  3. Wait for in-flight requests until ctx is done
func (svr *Server) Shutdown(ctx context.Context) error {
	// Deregister FIRST so clients stop sending new requests
	if svr.registry != nil {
		for _, name := range svr.services {
			if err := svr.registry.Deregister(ctx, name, svr.advertiseAddr); err != nil && !errors.Is(err, registry.ErrNotFound) {
				svr.logger.Warn("deregister failed", zap.String("service", name), zap.Error(err))
			}
		}
		if svr.regCancel != nil {
			svr.regCancel()
		}
	}

	svr.shutdown.Store(true)
	if svr.httpServer == nil {
		return nil
	}
	if err := svr.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("timeout waiting for ongoing requests to finish: %w", err)
	}
	return nil
}

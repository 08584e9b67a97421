package loadbalance

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"mini-lb/config"
	"mini-lb/registry"
)

// Registry resolves a logical service name to its load balancer and
// configuration.
//
// Load balancers are created lazily on first resolve and cached by service
// name. A cached entry is rebuilt when the service's balancer strategy or
// scheme changes in the config store; other config changes are picked up on
// the next Resolve without touching the balancer.
type Registry struct {
	configs   *config.Store
	discovery registry.Registry
	logger    *zap.Logger
	watch     bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries sync.Map // service name -> *entry
}

type entry struct {
	lb       *LoadBalancer
	balancer string
	scheme   string
	stop     context.CancelFunc
}

type RegistryOption func(*Registry)

func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithWatch makes each load balancer subscribe to instance changes instead of
// querying discovery on every attempt.
func WithWatch(enable bool) RegistryOption {
	return func(r *Registry) {
		r.watch = enable
	}
}

func NewRegistry(configs *config.Store, discovery registry.Registry, opts ...RegistryOption) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		configs:   configs,
		discovery: discovery,
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the load balancer and configuration for service.
func (r *Registry) Resolve(service string) (Handle, config.ServiceConfig, error) {
	cfg, ok := r.configs.Get(service)
	if !ok {
		return nil, config.ServiceConfig{}, fmt.Errorf("%w: %q", ErrUnknownService, service)
	}

	if v, ok := r.entries.Load(service); ok {
		e := v.(*entry)
		if e.balancer == cfg.Balancer && e.scheme == cfg.Scheme {
			return e.lb, cfg, nil
		}
	}

	lb, err := r.rebuild(service, cfg)
	if err != nil {
		return nil, config.ServiceConfig{}, err
	}
	return lb, cfg, nil
}

// rebuild creates the cache entry for service under r.mu so concurrent first
// resolves share one load balancer.
func (r *Registry) rebuild(service string, cfg config.ServiceConfig) (*LoadBalancer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var old *entry
	if v, ok := r.entries.Load(service); ok {
		old = v.(*entry)
		if old.balancer == cfg.Balancer && old.scheme == cfg.Scheme {
			return old.lb, nil
		}
	}

	balancer, err := NewBalancer(cfg.Balancer)
	if err != nil {
		return nil, fmt.Errorf("service %s: %w", service, err)
	}
	lb := NewLoadBalancer(service, cfg.Scheme, r.discovery, balancer, r.logger)
	ctx, stop := context.WithCancel(r.ctx)
	if r.watch {
		lb.Watch(ctx)
	}
	r.entries.Store(service, &entry{lb: lb, balancer: cfg.Balancer, scheme: cfg.Scheme, stop: stop})
	if old != nil {
		old.stop()
	}

	r.logger.Info("load balancer created",
		zap.String("service", service),
		zap.String("balancer", balancer.Name()))
	return lb, nil
}

// Close stops instance watches.
func (r *Registry) Close() {
	r.cancel()
}

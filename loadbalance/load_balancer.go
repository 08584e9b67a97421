package loadbalance

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mini-lb/registry"
)

// Handle chooses a live backend address for one attempt of a call.
// Implementations must be safe for concurrent use.
type Handle interface {
	ChooseAddress(ctx context.Context) (*url.URL, error)
}

// LoadBalancer binds a service name, its instance source and a Balancer.
//
// Until Watch has delivered a first snapshot, every choice queries the
// registry directly. After that, choices read the latest snapshot, which the
// watch goroutine swaps atomically. A watch stream that ends drops the
// snapshot, so choices query the registry again until the watch is back.
type LoadBalancer struct {
	service   string
	scheme    string
	discovery registry.Registry
	balancer  Balancer
	logger    *zap.Logger

	// resubscribe is the pause before a watch that ended is re-established.
	resubscribe time.Duration
	snapshot    atomic.Pointer[[]registry.ServiceInstance]
}

// NewLoadBalancer creates a load balancer for service. Addresses are returned
// with the given URL scheme ("http" when empty).
func NewLoadBalancer(service, scheme string, discovery registry.Registry, balancer Balancer, logger *zap.Logger) *LoadBalancer {
	if scheme == "" {
		scheme = "http"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoadBalancer{
		service:     service,
		scheme:      scheme,
		discovery:   discovery,
		balancer:    balancer,
		logger:      logger,
		resubscribe: time.Second,
	}
}

// Watch keeps the instance snapshot current until ctx is done.
func (lb *LoadBalancer) Watch(ctx context.Context) {
	ch := lb.discovery.Watch(ctx, lb.service)
	if ch == nil {
		return
	}
	go lb.follow(ctx, ch)
}

func (lb *LoadBalancer) follow(ctx context.Context, ch <-chan []registry.ServiceInstance) {
	for {
		for instances := range ch {
			lb.snapshot.Store(&instances)
			lb.logger.Debug("instance list updated",
				zap.String("service", lb.service),
				zap.Int("instances", len(instances)))
		}
		lb.snapshot.Store(nil)
		if ctx.Err() != nil {
			return
		}
		lb.logger.Warn("instance watch ended, discovering directly",
			zap.String("service", lb.service),
			zap.Duration("resubscribe", lb.resubscribe))

		select {
		case <-ctx.Done():
			return
		case <-time.After(lb.resubscribe):
		}
		if ch = lb.discovery.Watch(ctx, lb.service); ch == nil {
			return
		}
	}
}

// Instances returns the instances the next choice will be made from.
func (lb *LoadBalancer) Instances(ctx context.Context) ([]registry.ServiceInstance, error) {
	if snap := lb.snapshot.Load(); snap != nil {
		return *snap, nil
	}
	instances, err := lb.discovery.Discover(ctx, lb.service)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", lb.service, err)
	}
	return instances, nil
}

// ChooseAddress picks one instance and returns its base URL, e.g.
// "http://10.0.0.7:8080".
func (lb *LoadBalancer) ChooseAddress(ctx context.Context) (*url.URL, error) {
	instances, err := lb.Instances(ctx)
	if err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("%w for service %s", ErrNoAvailableInstance, lb.service)
	}
	inst, err := lb.balancer.Pick(ctx, instances)
	if err != nil {
		return nil, fmt.Errorf("%s pick for service %s: %w", lb.balancer.Name(), lb.service, err)
	}
	return &url.URL{Scheme: lb.scheme, Host: inst.Addr}, nil
}

func (lb *LoadBalancer) Service() string { return lb.service }

func (lb *LoadBalancer) Balancer() Balancer { return lb.balancer }

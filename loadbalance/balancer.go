// Package loadbalance picks the backend instance for each attempt of a call
// and keeps the per-service load balancers the client resolves by name.
//
// Three strategies are implemented:
//   - RoundRobin:      Stateless services, equal-capacity instances
//   - WeightedRandom:  Heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  Stateful services requiring cache affinity
package loadbalance

import (
	"context"
	"errors"
	"fmt"

	"mini-lb/config"
	"mini-lb/registry"
)

var (
	// ErrNoAvailableInstance is returned when a service has no live backend.
	ErrNoAvailableInstance = errors.New("loadbalance: no available instance")

	// ErrUnknownService is returned when a service name has no configuration.
	ErrUnknownService = errors.New("loadbalance: unknown service")
)

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each attempt to select a target instance.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every attempt; must be goroutine-safe.
	Pick(ctx context.Context, instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// NewBalancer builds the strategy named in a service configuration.
func NewBalancer(name string) (Balancer, error) {
	switch name {
	case config.BalancerRoundRobin, "":
		return &RoundRobinBalancer{}, nil
	case config.BalancerWeightedRandom:
		return &WeightedRandomBalancer{}, nil
	case config.BalancerConsistentHash:
		return NewConsistentHashBalancer(), nil
	default:
		return nil, fmt.Errorf("loadbalance: unsupported balancer %q", name)
	}
}

// Package registry discovers the live instances behind a logical service name.
//
// The load balancer asks a Registry for the instance list of a service and
// picks one address per attempt. Two implementations are provided: an
// etcd-backed registry for real deployments and an in-memory registry used
// for static configuration and tests.
package registry

import (
	"context"
	"errors"
)

// ErrNotFound is returned when deregistering an instance that is not registered.
var ErrNotFound = errors.New("registry: instance not found")

// ServiceInstance is one backend of a logical service.
type ServiceInstance struct {
	Addr    string `json:"addr"`    // host:port
	Weight  int    `json:"weight"`  // Weight for load balancing
	Version string `json:"version"` // free-form, e.g. "1.4.2"
}

type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	// Watch emits the full instance list whenever it changes, until ctx is done.
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}

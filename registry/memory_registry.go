package registry

import (
	"context"
	"sync"

	"mini-lb/config"
)

// MemoryRegistry keeps instances in process. TTLs are ignored.
type MemoryRegistry struct {
	mu        sync.RWMutex
	instances map[string][]ServiceInstance
	watchers  map[string][]chan []ServiceInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		instances: make(map[string][]ServiceInstance),
		watchers:  make(map[string][]chan []ServiceInstance),
	}
}

// NewStaticRegistry seeds a MemoryRegistry from the instances listed in
// service configurations.
func NewStaticRegistry(services map[string]config.ServiceConfig) *MemoryRegistry {
	r := NewMemoryRegistry()
	for name, svc := range services {
		for _, inst := range svc.Instances {
			r.instances[name] = append(r.instances[name], ServiceInstance{
				Addr:    inst.Addr,
				Weight:  inst.Weight,
				Version: inst.Version,
			})
		}
	}
	return r
}

func (r *MemoryRegistry) Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	insts := r.instances[serviceName]
	for i, inst := range insts {
		if inst.Addr == instance.Addr {
			next := append([]ServiceInstance(nil), insts...)
			next[i] = instance
			r.instances[serviceName] = next
			r.notify(serviceName)
			return nil
		}
	}
	r.instances[serviceName] = append(append([]ServiceInstance(nil), insts...), instance)
	r.notify(serviceName)
	return nil
}

func (r *MemoryRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	insts := r.instances[serviceName]
	for i, inst := range insts {
		if inst.Addr == addr {
			next := make([]ServiceInstance, 0, len(insts)-1)
			next = append(next, insts[:i]...)
			next = append(next, insts[i+1:]...)
			r.instances[serviceName] = next
			r.notify(serviceName)
			return nil
		}
	}
	return ErrNotFound
}

// Discover returns a copy of the current instance list.
func (r *MemoryRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ServiceInstance(nil), r.instances[serviceName]...), nil
}

func (r *MemoryRegistry) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	r.mu.Lock()
	r.watchers[serviceName] = append(r.watchers[serviceName], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		watchers := r.watchers[serviceName]
		for i, w := range watchers {
			if w == ch {
				r.watchers[serviceName] = append(watchers[:i:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch
}

// notify pushes the latest list to every watcher, replacing a stale pending
// update rather than blocking. Callers hold r.mu.
func (r *MemoryRegistry) notify(serviceName string) {
	snapshot := append([]ServiceInstance(nil), r.instances[serviceName]...)
	for _, ch := range r.watchers[serviceName] {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

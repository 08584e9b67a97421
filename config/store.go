package config

import (
	"sort"
	"sync/atomic"
)

// Store publishes service configurations to concurrent readers.
//
// Readers load an immutable snapshot; writers build a new map and swap it in,
// so an in-flight call never sees a half-applied reload.
type Store struct {
	snapshot atomic.Pointer[map[string]ServiceConfig]
}

// NewStore creates a store holding a copy of services.
func NewStore(services map[string]ServiceConfig) *Store {
	s := &Store{}
	s.Replace(services)
	return s
}

// Get returns the configuration of a service.
func (s *Store) Get(name string) (ServiceConfig, bool) {
	m := s.snapshot.Load()
	if m == nil {
		return ServiceConfig{}, false
	}
	cfg, ok := (*m)[name]
	return cfg, ok
}

// Replace swaps in a full new set of services.
func (s *Store) Replace(services map[string]ServiceConfig) {
	next := make(map[string]ServiceConfig, len(services))
	for name, cfg := range services {
		next[name] = cfg.clone()
	}
	s.snapshot.Store(&next)
}

// Put adds or replaces one service, copying the rest of the snapshot.
func (s *Store) Put(name string, cfg ServiceConfig) {
	for {
		cur := s.snapshot.Load()
		next := make(map[string]ServiceConfig)
		if cur != nil {
			for k, v := range *cur {
				next[k] = v
			}
		}
		next[name] = cfg.clone()
		if s.snapshot.CompareAndSwap(cur, &next) {
			return
		}
	}
}

// Names lists the configured services in sorted order.
func (s *Store) Names() []string {
	m := s.snapshot.Load()
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(*m))
	for name := range *m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

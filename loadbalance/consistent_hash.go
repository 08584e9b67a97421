package loadbalance

import (
	"context"
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"mini-lb/registry"
)

type hashKeyCtx struct{}

// WithHashKey attaches the affinity key ConsistentHashBalancer routes on,
// e.g. a user or tenant ID.
func WithHashKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, hashKeyCtx{}, key)
}

// HashKey returns the affinity key stored in ctx, if any.
func HashKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(hashKeyCtx{}).(string)
	return key, ok && key != ""
}

// ConsistentHashBalancer maps keys to instances using a hash ring.
// The same key always maps to the same instance (until the ring changes),
// providing cache affinity for stateful services or local caches.
//
// Each real instance is placed on the ring as 100 virtual nodes so a handful
// of instances still spread evenly.
//
// The ring is rebuilt whenever Pick sees a different instance list. Calls
// without a hash key in their context are spread round-robin.
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.RWMutex
	ring  []uint32          // Sorted hash values on the ring
	nodes map[uint32]string // Hash value -> instance address
	addrs string            // Signature of the instance list the ring was built from

	fallback atomic.Uint64
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]string),
	}
}

func (b *ConsistentHashBalancer) Pick(ctx context.Context, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoAvailableInstance
	}

	key, ok := HashKey(ctx)
	if !ok {
		idx := (b.fallback.Add(1) - 1) % uint64(len(instances))
		return &instances[idx], nil
	}

	b.ensureRing(instances)

	addr := b.lookup(key)
	for i := range instances {
		if instances[i].Addr == addr {
			return &instances[i], nil
		}
	}
	// The ring raced with a newer instance list; the next Pick rebuilds it.
	return &instances[0], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

func (b *ConsistentHashBalancer) ensureRing(instances []registry.ServiceInstance) {
	sig := signature(instances)

	b.mu.RLock()
	same := sig == b.addrs
	b.mu.RUnlock()
	if same {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if sig == b.addrs {
		return
	}
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]string, len(instances)*b.replicas)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(inst.Addr + "#" + strconv.Itoa(i)))
			b.ring = append(b.ring, hash)
			b.nodes[hash] = inst.Addr
		}
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
	b.addrs = sig
}

// lookup hashes the key and walks clockwise to the first virtual node,
// wrapping around past the largest hash.
func (b *ConsistentHashBalancer) lookup(key string) string {
	hash := crc32.ChecksumIEEE([]byte(key))

	b.mu.RLock()
	defer b.mu.RUnlock()

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]]
}

func signature(instances []registry.ServiceInstance) string {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	return fmt.Sprint(addrs)
}

// etcd-backed Registry.
//
// Layout:
//
//	Key:   {prefix}/{ServiceName}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases: if the process holding the lease dies,
// the lease expires and the entry disappears instead of lingering as a ghost.

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// DefaultKeyPrefix is used when EtcdConfig.KeyPrefix is empty.
const DefaultKeyPrefix = "/mini-lb"

type EtcdConfig struct {
	Endpoints   []string
	DialTimeout time.Duration
	KeyPrefix   string
	Logger      *zap.Logger
}

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	prefix string
	logger *zap.Logger
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(cfg EtcdConfig) (*EtcdRegistry, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd %v: %w", cfg.Endpoints, err)
	}
	return NewEtcdRegistryFromClient(c, cfg.KeyPrefix, logger), nil
}

// NewEtcdRegistryFromClient wraps an existing etcd client.
func NewEtcdRegistryFromClient(c *clientv3.Client, prefix string, logger *zap.Logger) *EtcdRegistry {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EtcdRegistry{
		client: c,
		prefix: strings.TrimSuffix(prefix, "/"),
		logger: logger,
	}
}

func (r *EtcdRegistry) servicePrefix(serviceName string) string {
	return r.prefix + "/" + serviceName + "/"
}

// Register adds an instance under a lease of ttl seconds and keeps the lease
// alive in the background until ctx is done.
//
// The lease ID stays local to the call, so one EtcdRegistry can register many
// instances concurrently.
func (r *EtcdRegistry) Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := r.servicePrefix(serviceName) + instance.Addr
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("keepalive %s: %w", key, err)
	}

	// Drain keepalive responses so the channel never fills up.
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", zap.String("key", key))
	}()

	r.logger.Info("registered instance",
		zap.String("service", serviceName),
		zap.String("addr", instance.Addr),
		zap.Int64("ttl", ttl))
	return nil
}

// Deregister removes an instance. Called during graceful shutdown.
func (r *EtcdRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	resp, err := r.client.Delete(ctx, r.servicePrefix(serviceName)+addr)
	if err != nil {
		return err
	}
	if resp.Deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// Watch re-reads the full instance list on every change under the service
// prefix. Re-fetching is simpler than replaying individual events.
func (r *EtcdRegistry) Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance {
	ch := make(chan []ServiceInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, r.servicePrefix(serviceName), clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(ctx, serviceName)
			if err != nil {
				r.logger.Warn("rediscover after watch event failed",
					zap.String("service", serviceName), zap.Error(err))
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns all currently registered instances for a service.
func (r *EtcdRegistry) Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error) {
	resp, err := r.client.Get(ctx, r.servicePrefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed instance entry", zap.ByteString("key", kv.Key))
			continue
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close releases the etcd connection.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

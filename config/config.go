// Package config holds the per-service client configuration and the YAML file
// format lbctl and embedding programs load it from.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Balancer strategy names accepted in ServiceConfig.Balancer.
const (
	BalancerRoundRobin     = "round_robin"
	BalancerWeightedRandom = "weighted_random"
	BalancerConsistentHash = "consistent_hash"
)

// Registry types accepted in RegistryConfig.Type.
const (
	RegistryStatic = "static"
	RegistryEtcd   = "etcd"
)

// Transport protocols accepted in TransportConfig.Protocol.
const (
	ProtocolHTTP  = "http"
	ProtocolHTTP2 = "http2"
)

// Config is the root of a configuration file.
type Config struct {
	Registry  RegistryConfig           `yaml:"registry"`
	Transport TransportConfig          `yaml:"transport"`
	Log       LogConfig                `yaml:"log"`
	Metrics   MetricsConfig            `yaml:"metrics"`
	Services  map[string]ServiceConfig `yaml:"services"`
}

// RegistryConfig selects where service instances are discovered.
type RegistryConfig struct {
	Type        string        `yaml:"type"` // static/etcd
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	KeyPrefix   string        `yaml:"key_prefix"`
	LeaseTTL    int64         `yaml:"lease_ttl"` // seconds
}

// TransportConfig tunes the shared HTTP transport.
type TransportConfig struct {
	Protocol        string        `yaml:"protocol"` // http/http2
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics listener
}

// ServiceConfig is everything the client knows about one logical service.
//
// A zero ConnectTimeout or ReadTimeout means the attempt is not bounded in
// that phase. Values are treated as read-only once published to a Store.
type ServiceConfig struct {
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	RetryOnAllMethods bool          `yaml:"retry_on_all_methods"`

	// RetrySafeMethods extends read-failure retries from GET to every
	// non-mutating method (HEAD, OPTIONS, TRACE).
	RetrySafeMethods bool `yaml:"retry_safe_methods"`

	MaxRetriesSameServer int           `yaml:"max_retries_same_server"`
	MaxRetriesNextServer int           `yaml:"max_retries_next_server"`
	Backoff              BackoffConfig `yaml:"backoff"`

	// TotalTimeout bounds the whole call across attempts. Zero disables it.
	TotalTimeout time.Duration `yaml:"total_timeout"`

	Balancer  string           `yaml:"balancer"`
	Scheme    string           `yaml:"scheme"`
	Instances []InstanceConfig `yaml:"instances"` // used by the static registry

	RateLimit float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst int     `yaml:"rate_burst"`
}

// BackoffConfig describes capped exponential backoff with jitter.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"` // fraction in [0, 1]
}

type InstanceConfig struct {
	Addr    string `yaml:"addr"`
	Weight  int    `yaml:"weight"`
	Version string `yaml:"version"`
}

// DefaultServiceConfig mirrors the classic client defaults: 2s connect, 5s
// read, no same-server retry and one retry on the next server.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ConnectTimeout:       2 * time.Second,
		ReadTimeout:          5 * time.Second,
		MaxRetriesSameServer: 0,
		MaxRetriesNextServer: 1,
		Backoff: BackoffConfig{
			Initial:    50 * time.Millisecond,
			Max:        time.Second,
			Multiplier: 2,
			Jitter:     0.2,
		},
		Balancer: BalancerRoundRobin,
		Scheme:   "http",
	}
}

// UnmarshalYAML decodes a service entry on top of DefaultServiceConfig, so
// keys left out of the file keep their defaults while explicit zeros stick.
func (c *ServiceConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ServiceConfig
	p := plain(DefaultServiceConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*c = ServiceConfig(p)
	return nil
}

// DefaultConfig returns a configuration with no services and a static registry.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			Type:        RegistryStatic,
			DialTimeout: 5 * time.Second,
			KeyPrefix:   "/mini-lb",
			LeaseTTL:    10,
		},
		Transport: TransportConfig{
			Protocol:        ProtocolHTTP,
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Services: make(map[string]ServiceConfig),
	}
}

func (c ServiceConfig) clone() ServiceConfig {
	if c.Instances != nil {
		c.Instances = append([]InstanceConfig(nil), c.Instances...)
	}
	return c
}

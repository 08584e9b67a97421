package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Services == nil {
		cfg.Services = make(map[string]ServiceConfig)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Registry.Type {
	case RegistryStatic:
	case RegistryEtcd:
		if len(cfg.Registry.Endpoints) == 0 {
			return fmt.Errorf("registry.endpoints is required for etcd")
		}
		if cfg.Registry.LeaseTTL <= 0 {
			return fmt.Errorf("registry.lease_ttl must be positive")
		}
	default:
		return fmt.Errorf("registry.type %q is not supported", cfg.Registry.Type)
	}

	switch cfg.Transport.Protocol {
	case ProtocolHTTP, ProtocolHTTP2:
	default:
		return fmt.Errorf("transport.protocol %q is not supported", cfg.Transport.Protocol)
	}

	for name, svc := range cfg.Services {
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("services.%s: %w", name, err)
		}
	}
	return nil
}

// Validate checks a single service entry.
func (c ServiceConfig) Validate() error {
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.TotalTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if c.MaxRetriesSameServer < 0 || c.MaxRetriesNextServer < 0 {
		return fmt.Errorf("retry counts must be non-negative")
	}
	if c.Backoff.Initial < 0 || c.Backoff.Max < c.Backoff.Initial {
		return fmt.Errorf("backoff.max must be >= backoff.initial >= 0")
	}
	if c.Backoff.Multiplier != 0 && c.Backoff.Multiplier < 1 {
		return fmt.Errorf("backoff.multiplier must be >= 1")
	}
	if c.Backoff.Jitter < 0 || c.Backoff.Jitter > 1 {
		return fmt.Errorf("backoff.jitter must be between 0 and 1")
	}
	switch c.Balancer {
	case BalancerRoundRobin, BalancerWeightedRandom, BalancerConsistentHash:
	default:
		return fmt.Errorf("balancer %q is not supported", c.Balancer)
	}
	switch c.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("scheme %q is not supported", c.Scheme)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("rate_limit and rate_burst must be non-negative")
	}
	for i, inst := range c.Instances {
		if inst.Addr == "" {
			return fmt.Errorf("instances[%d]: addr is required", i)
		}
	}
	return nil
}

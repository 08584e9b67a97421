package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"mini-lb/client"
	"mini-lb/config"
	"mini-lb/loadbalance"
	"mini-lb/metrics"
	"mini-lb/middleware"
	"mini-lb/registry"
	"mini-lb/transport"
)

// env holds what every command builds from the configuration file.
type env struct {
	cfg       *config.Config
	logger    *zap.Logger
	discovery registry.Registry
	metrics   *prometheus.Registry

	closers []func()
}

func loadEnv() (*env, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}
	e.closers = append(e.closers, func() { logger.Sync() })

	discovery, err := e.newDiscovery()
	if err != nil {
		e.close()
		return nil, err
	}
	e.discovery = discovery

	if cfg.Metrics.Addr != "" {
		e.metrics = prometheus.NewRegistry()
		e.metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		e.serveMetrics(cfg.Metrics.Addr)
	}
	return e, nil
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func (e *env) newDiscovery() (registry.Registry, error) {
	switch e.cfg.Registry.Type {
	case config.RegistryEtcd:
		reg, err := registry.NewEtcdRegistry(registry.EtcdConfig{
			Endpoints:   e.cfg.Registry.Endpoints,
			DialTimeout: e.cfg.Registry.DialTimeout,
			KeyPrefix:   e.cfg.Registry.KeyPrefix,
			Logger:      e.logger,
		})
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() { reg.Close() })
		return reg, nil
	default:
		return registry.NewStaticRegistry(e.cfg.Services), nil
	}
}

func (e *env) newTransport() *transport.HTTPTransport {
	tc := transport.Config{
		MaxIdleConns:    e.cfg.Transport.MaxIdleConns,
		IdleConnTimeout: e.cfg.Transport.IdleConnTimeout,
	}
	var tr *transport.HTTPTransport
	if e.cfg.Transport.Protocol == config.ProtocolHTTP2 {
		tr = transport.NewHTTP2Transport(tc)
	} else {
		tr = transport.NewHTTPTransport(tc)
	}
	e.closers = append(e.closers, func() { tr.Close() })
	return tr
}

// newClient wires the load balancer registry, transport and middlewares.
func (e *env) newClient() *client.Client {
	lbs := loadbalance.NewRegistry(config.NewStore(e.cfg.Services), e.discovery,
		loadbalance.WithLogger(e.logger),
		loadbalance.WithWatch(e.cfg.Registry.Type == config.RegistryEtcd))
	e.closers = append(e.closers, lbs.Close)

	opts := []client.Option{client.WithLogger(e.logger)}
	mws := []middleware.Middleware{middleware.LoggingMiddleware(e.logger)}
	if e.metrics != nil {
		collector := metrics.NewCollectorWithRegistry(e.metrics)
		opts = append(opts, client.WithMetrics(collector))
		mws = append(mws, middleware.MetricsMiddleware(collector))
	}
	opts = append(opts, client.WithMiddleware(mws...))
	return client.NewClient(lbs, e.newTransport(), opts...)
}

func (e *env) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.metrics, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	e.logger.Info("serving metrics", zap.String("addr", addr))
	e.closers = append(e.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
}

// close releases resources in reverse order of creation.
func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

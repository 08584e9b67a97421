// Package client executes generic requests against logical services: each
// attempt picks an instance through the service's load balancer and failed
// attempts are retried according to the service's retry policy.
package client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mini-lb/adapter"
	"mini-lb/codec"
	"mini-lb/config"
	"mini-lb/loadbalance"
	"mini-lb/message"
	"mini-lb/metrics"
	"mini-lb/middleware"
	"mini-lb/retry"
	"mini-lb/transport"
)

// Resolver maps a service name to its load balancer and configuration.
// *loadbalance.Registry implements it.
type Resolver interface {
	Resolve(service string) (loadbalance.Handle, config.ServiceConfig, error)
}

// Client is safe for concurrent use. Each call runs its attempts sequentially
// on the calling goroutine.
type Client struct {
	resolver    Resolver
	transport   transport.Transport
	adapter     adapter.Adapter
	logger      *zap.Logger
	metrics     *metrics.Collector
	middlewares []middleware.Middleware
	limiters    sync.Map // service -> *serviceLimiter
}

type serviceLimiter struct {
	limit   rate.Limit
	burst   int
	limiter *rate.Limiter
}

func NewClient(resolver Resolver, tr transport.Transport, opts ...Option) *Client {
	c := &Client{
		resolver: resolver,
		adapter:  adapter.Default{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = middleware.Chain(c.middlewares...)(tr)
	return c
}

// Execute runs req against the service named by its URL host. opts may be nil.
//
// A delivered response is returned whatever its status; the caller must Close
// it. Unresolvable services fail with *ConfigurationError before any attempt,
// and calls that exhaust their attempts fail with *TransportError.
func (c *Client) Execute(ctx context.Context, req *message.Request, opts *message.Options) (*message.Response, error) {
	return c.execute(ctx, req, opts, nil, nil)
}

// Call is Execute followed by dec.Decode(resp, v) inside the retry loop. A
// *codec.RetryableError from the decoder counts as a read failure of that
// attempt. The returned response body has been consumed and closed.
func (c *Client) Call(ctx context.Context, req *message.Request, opts *message.Options, dec codec.Decoder, v any) (*message.Response, error) {
	if dec == nil {
		return nil, fmt.Errorf("client: nil decoder")
	}
	return c.execute(ctx, req, opts, dec, v)
}

func (c *Client) execute(ctx context.Context, req *message.Request, opts *message.Options, dec codec.Decoder, v any) (*message.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	service, target, err := req.Target()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	handle, cfg, err := c.resolver.Resolve(service)
	if err != nil {
		c.metrics.RecordCall(service, req.Method, metrics.ResultConfigError, time.Since(start))
		return nil, &ConfigurationError{Service: service, Err: err}
	}
	defer c.metrics.CallStarted(service)()

	// release ends the total deadline. A delivered body still reads under it,
	// so the returned response takes over the call to release.
	release := context.CancelFunc(func() {})
	if cfg.TotalTimeout > 0 {
		ctx, release = context.WithTimeout(ctx, cfg.TotalTimeout)
	}

	if err := c.wait(ctx, service, cfg); err != nil {
		release()
		c.metrics.RecordCall(service, req.Method, metrics.ResultError, time.Since(start))
		return nil, &TransportError{Method: req.Method, URL: req.URL, Service: service, Err: err}
	}

	state := &call{
		client:   c,
		service:  service,
		handle:   handle,
		target:   target,
		generic:  req.Clone(),
		timeouts: effectiveTimeouts(cfg, opts),
		handler:  retry.NewHandler(cfg, req.Method),
		decoder:  dec,
		value:    v,
		logger:   c.logger.With(zap.String("service", service), zap.String("method", req.Method)),
	}
	resp, err := state.run(ctx)
	if err != nil {
		release()
		c.metrics.RecordCall(service, req.Method, metrics.ResultError, time.Since(start))
		return nil, &TransportError{
			Method:   req.Method,
			URL:      req.URL,
			Service:  service,
			Attempts: state.attempts,
			Err:      err,
		}
	}
	c.metrics.RecordCall(service, req.Method, metrics.ResultSuccess, time.Since(start))
	resp.Attempts = state.attempts
	if resp.Body == nil {
		release()
	} else {
		resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	}
	return resp, nil
}

// releasingBody ends the call's total deadline once the caller closes it.
type releasingBody struct {
	io.ReadCloser
	release context.CancelFunc
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

// wait blocks on the service's client-side rate limit, if one is configured.
func (c *Client) wait(ctx context.Context, service string, cfg config.ServiceConfig) error {
	if cfg.RateLimit <= 0 {
		return nil
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(cfg.RateLimit)

	fresh := &serviceLimiter{limit: limit, burst: burst, limiter: rate.NewLimiter(limit, burst)}
	v, _ := c.limiters.LoadOrStore(service, fresh)
	l := v.(*serviceLimiter)
	// The service's rate was reconfigured.
	if l.limit != limit || l.burst != burst {
		c.limiters.Store(service, fresh)
		l = fresh
	}
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", middleware.ErrRateLimited, err)
	}
	return nil
}

// effectiveTimeouts applies per-call overrides: a non-zero option wins.
func effectiveTimeouts(cfg config.ServiceConfig, opts *message.Options) transport.Timeouts {
	t := transport.Timeouts{Connect: cfg.ConnectTimeout, Read: cfg.ReadTimeout}
	if opts != nil {
		if opts.ConnectTimeout > 0 {
			t.Connect = opts.ConnectTimeout
		}
		if opts.ReadTimeout > 0 {
			t.Read = opts.ReadTimeout
		}
	}
	return t
}

package client

import (
	"go.uber.org/zap"

	"mini-lb/adapter"
	"mini-lb/metrics"
	"mini-lb/middleware"
)

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

func WithAdapter(a adapter.Adapter) Option {
	return func(c *Client) {
		if a != nil {
			c.adapter = a
		}
	}
}

// WithMiddleware wraps the transport. The first middleware is outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// Package middleware wraps a transport.Transport with cross-cutting behavior.
// Middlewares see every attempt, retries included.
package middleware

import (
	"mini-lb/transport"
)

type Middleware func(next transport.Transport) transport.Transport

// Chain 将多个中间件组合成一个中间件
func Chain(middlewares ...Middleware) Middleware {
	return func(next transport.Transport) transport.Transport {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"mini-lb/transport"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitMiddleware 创建一个基于令牌桶算法的限流中间件
// Attempts wait for a token; if ctx ends first the attempt fails without
// reaching the backend.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next transport.Transport) transport.Transport {
		return transport.RoundTripFunc(func(ctx context.Context, req *transport.Request, timeouts transport.Timeouts) (*http.Response, error) {
			if err := limiter.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
			}
			return next.RoundTrip(ctx, req, timeouts)
		})
	}
}

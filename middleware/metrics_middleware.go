package middleware

import (
	"context"
	"net/http"
	"time"

	"mini-lb/metrics"
	"mini-lb/transport"
)

// MetricsMiddleware records every round trip on collector.
func MetricsMiddleware(collector *metrics.Collector) Middleware {
	return func(next transport.Transport) transport.Transport {
		return transport.RoundTripFunc(func(ctx context.Context, req *transport.Request, timeouts transport.Timeouts) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(ctx, req, timeouts)
			status := 0
			if err == nil {
				status = resp.StatusCode
			}
			collector.RecordRoundTrip(req.Method, req.URL.Host, status, time.Since(start))
			return resp, err
		})
	}
}

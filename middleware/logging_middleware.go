package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mini-lb/transport"
)

func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next transport.Transport) transport.Transport {
		return transport.RoundTripFunc(func(ctx context.Context, req *transport.Request, timeouts transport.Timeouts) (*http.Response, error) {
			start := time.Now()
			resp, err := next.RoundTrip(ctx, req, timeouts)
			// Log method, backend and time to headers, plus the failure phase if any
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("round trip failed", append(fields,
					zap.Stringer("phase", transport.PhaseOf(err)),
					zap.Error(err))...)
				return nil, err
			}
			logger.Debug("round trip", append(fields, zap.Int("status", resp.StatusCode))...)
			return resp, nil
		})
	}
}

package client

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"mini-lb/adapter"
	"mini-lb/codec"
	"mini-lb/loadbalance"
	"mini-lb/message"
	"mini-lb/retry"
	"mini-lb/transport"
)

// call is the state of one Execute. It is owned by the calling goroutine.
type call struct {
	client   *Client
	service  string
	handle   loadbalance.Handle
	target   *url.URL
	generic  *message.Request
	timeouts transport.Timeouts
	handler  *retry.Handler
	decoder  codec.Decoder
	value    any
	logger   *zap.Logger

	attempts []message.Attempt
}

// run executes attempts until one delivers a response or the retry handler
// stops. It returns the root cause of the last failure.
func (c *call) run(ctx context.Context) (*message.Response, error) {
	var (
		req          *adapter.Request
		sameServer   int
		serversTried int
	)
	for n := 0; ; n++ {
		if req == nil {
			addr, err := c.handle.ChooseAddress(ctx)
			if err != nil {
				c.attempts = append(c.attempts, message.Attempt{Err: err})
				c.logger.Warn("no instance to dispatch to", zap.Int("attempt", n+1), zap.Error(err))
				return nil, err
			}
			req = c.client.adapter.ToBackendRequest(c.generic, c.target, addr, c.client.transport)
			serversTried++
			sameServer = 0
		}
		sameServer++

		resp, err := c.attempt(ctx, req)
		c.attempts = append(c.attempts, message.Attempt{Address: req.Address(), Err: err})
		if err == nil {
			c.client.metrics.RecordAttempt(c.service, "ok")
			c.logger.Debug("attempt succeeded",
				zap.Int("attempt", n+1),
				zap.Stringer("address", req.Address()),
				zap.Int("status", resp.Status))
			return resp, nil
		}

		phase := failurePhase(err)
		c.client.metrics.RecordAttempt(c.service, phase.String())
		// The caller gave up or the total timeout fired; nothing is retried.
		if ctx.Err() != nil {
			c.logger.Debug("call canceled", zap.Int("attempt", n+1), zap.Error(err))
			return nil, ctx.Err()
		}

		step := c.handler.Next(phase, sameServer, serversTried)
		c.logger.Warn("attempt failed",
			zap.Int("attempt", n+1),
			zap.Stringer("address", req.Address()),
			zap.Stringer("phase", phase),
			zap.Stringer("next", step),
			zap.Error(err))
		if step == retry.Stop {
			return nil, err
		}

		if werr := retry.Sleep(ctx, c.handler.Backoff.Delay(n)); werr != nil {
			return nil, werr
		}
		c.client.metrics.RecordRetry(c.service, step.String())
		c.logger.Info("retry attempt", zap.Int("attempt", n+2), zap.Stringer("target", step))
		if step == retry.NextServer {
			req = nil
		}
	}
}

// attempt performs one dispatch and, for Call, the decode step. The body of a
// response that fails decoding is closed before returning.
func (c *call) attempt(ctx context.Context, req *adapter.Request) (*message.Response, error) {
	raw, err := req.Transport().RoundTrip(ctx, req.Backend(), c.timeouts)
	if err != nil {
		return nil, err
	}
	resp := c.client.adapter.ToGenericResponse(raw, req.Address())
	if c.decoder == nil {
		return resp, nil
	}
	err = c.decoder.Decode(resp, c.value)
	resp.Close()
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// failurePhase classifies an attempt error. A retryable decode result is a
// read failure: the backend answered but the answer was not usable.
func failurePhase(err error) transport.Phase {
	if codec.IsRetryable(err) {
		return transport.PhaseRead
	}
	return transport.PhaseOf(err)
}

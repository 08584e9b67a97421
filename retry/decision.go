// Package retry decides whether a failed attempt may be repeated and how long
// to wait before doing so.
package retry

import (
	"mini-lb/config"
	"mini-lb/transport"
)

// Decision is the retry eligibility of one call, fixed before its first attempt.
type Decision struct {
	ShouldRetry           bool
	RetryOnConnectFailure bool
	RetryOnReadFailure    bool
}

// Decide computes the Decision for a request method under cfg.
//
// A connect failure means the backend never received the request, so it is
// retryable for every method. A read failure may follow server-side effects,
// so it is retryable only for GET (plus HEAD, OPTIONS and TRACE with
// RetrySafeMethods) unless RetryOnAllMethods is set. Method names are matched
// exactly; unknown methods count as mutating.
func Decide(cfg config.ServiceConfig, method string) Decision {
	d := Decision{RetryOnConnectFailure: true}
	switch {
	case cfg.RetryOnAllMethods:
		d.RetryOnReadFailure = true
	case method == "GET":
		d.RetryOnReadFailure = true
	case cfg.RetrySafeMethods && isSafe(method):
		d.RetryOnReadFailure = true
	}
	d.ShouldRetry = cfg.MaxRetriesSameServer > 0 || cfg.MaxRetriesNextServer > 0
	return d
}

func isSafe(method string) bool {
	switch method {
	case "GET", "HEAD", "OPTIONS", "TRACE":
		return true
	default:
		return false
	}
}

// Allows reports whether a failure in phase may be retried.
func (d Decision) Allows(phase transport.Phase) bool {
	if !d.ShouldRetry {
		return false
	}
	switch phase {
	case transport.PhaseConnect:
		return d.RetryOnConnectFailure
	case transport.PhaseRead:
		return d.RetryOnReadFailure
	default:
		return false
	}
}

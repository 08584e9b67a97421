package retry

import (
	"mini-lb/config"
	"mini-lb/transport"
)

// Handler bounds the attempts of one call.
//
// Each chosen server is tried up to 1+MaxSameServer times; after that a new
// server is chosen, up to MaxNextServer times. The zero Handler makes exactly
// one attempt.
type Handler struct {
	Decision      Decision
	MaxSameServer int
	MaxNextServer int
	Backoff       Backoff
}

// NewHandler builds the handler for a call with the given method.
func NewHandler(cfg config.ServiceConfig, method string) *Handler {
	return &Handler{
		Decision:      Decide(cfg, method),
		MaxSameServer: cfg.MaxRetriesSameServer,
		MaxNextServer: cfg.MaxRetriesNextServer,
		Backoff:       BackoffFromConfig(cfg.Backoff),
	}
}

// MaxAttempts is the total number of attempts the handler can allow.
func (h *Handler) MaxAttempts() int {
	return (1 + h.MaxSameServer) * (1 + h.MaxNextServer)
}

// Step is what to do after a failed attempt.
type Step int

const (
	Stop Step = iota
	SameServer
	NextServer
)

func (s Step) String() string {
	switch s {
	case SameServer:
		return "same_server"
	case NextServer:
		return "next_server"
	default:
		return "stop"
	}
}

// Next decides the step after a failure in phase, given how many attempts
// were made on the current server and how many servers were tried so far.
func (h *Handler) Next(phase transport.Phase, sameServerAttempts, serversTried int) Step {
	if !h.Decision.Allows(phase) {
		return Stop
	}
	if sameServerAttempts <= h.MaxSameServer {
		return SameServer
	}
	if serversTried <= h.MaxNextServer {
		return NextServer
	}
	return Stop
}

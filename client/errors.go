package client

import (
	"fmt"

	"mini-lb/message"
)

// ConfigurationError reports that a call named a service the client has no
// configuration or load balancer for. No attempt was made.
type ConfigurationError struct {
	Service string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("client: cannot resolve service %q: %v", e.Service, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// TransportError reports a call that produced no response after all permitted
// attempts. Err is the root cause of the last attempt.
type TransportError struct {
	Method   string
	URL      string
	Service  string
	Attempts []message.Attempt
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("client: %s %s failed after %d attempt(s): %v", e.Method, e.URL, e.Dispatched(), e.Err)
}

// Dispatched counts the attempts that reached the transport. An entry with no
// address records a failed instance choice and is not counted.
func (e *TransportError) Dispatched() int {
	n := 0
	for _, a := range e.Attempts {
		if a.Address != nil {
			n++
		}
	}
	return n
}

func (e *TransportError) Unwrap() error { return e.Err }

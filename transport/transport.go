// Package transport performs one HTTP exchange against a concrete backend
// address and reports in which phase a failure happened.
//
// The phase decides retry safety upstream:
//
//	connect phase: no connection was obtained, so the backend saw nothing.
//	read phase:    a connection was obtained and the request may have been
//	               written; the backend may already have acted on it.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrReadTimeout is the cause recorded when no bytes arrive within the read
// timeout after the request was written or since the last body read.
var ErrReadTimeout = errors.New("transport: read timeout")

// Request is a fully-formed request bound to one backend address.
type Request struct {
	Method  string
	URL     *url.URL // absolute, host is a network address
	Header  http.Header
	Body    []byte
	Charset string
}

// Timeouts bound a single attempt. Zero means unbounded.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
}

// Transport executes a Request. Failures are returned as *ConnectError or
// *ReadError; errors caused by the caller's ctx are returned unwrapped.
//
// A returned response body must be closed by the caller.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request, timeouts Timeouts) (*http.Response, error)
}

// RoundTripFunc adapts a function to the Transport interface.
type RoundTripFunc func(ctx context.Context, req *Request, timeouts Timeouts) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(ctx context.Context, req *Request, timeouts Timeouts) (*http.Response, error) {
	return f(ctx, req, timeouts)
}

// Phase is the stage of an exchange in which a failure occurred.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseConnect
	PhaseRead
)

func (p Phase) String() string {
	switch p {
	case PhaseConnect:
		return "connect"
	case PhaseRead:
		return "read"
	default:
		return "unknown"
	}
}

// ConnectError reports a failure before a connection to Addr was established.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// ReadError reports a failure after the connection to Addr was established.
type ReadError struct {
	Addr string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// PhaseOf classifies err. The outermost phase error in the chain wins.
func PhaseOf(err error) Phase {
	for err != nil {
		switch err.(type) {
		case *ConnectError:
			return PhaseConnect
		case *ReadError:
			return PhaseRead
		}
		err = errors.Unwrap(err)
	}
	return PhaseUnknown
}

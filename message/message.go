// Package message defines the transport-agnostic request and response shapes
// exchanged between callers and the load-balanced client.
//
// A Request names its target by logical service: the host component of URL is
// a service name (e.g. "http://accounts/v1/users"), not a network address.
// The client resolves that name to a live instance for every attempt.
package message

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrInvalidRequest is returned when a Request cannot be dispatched at all.
	ErrInvalidRequest = errors.New("message: invalid request")

	// ErrInvalidOptions is returned when per-call Options carry negative timeouts.
	ErrInvalidOptions = errors.New("message: invalid options")
)

// Request is a generic outbound HTTP call.
//
// A Request is never mutated after it is handed to the client; each attempt
// works on its own adapted copy.
type Request struct {
	Method  string      // HTTP verb, e.g. "GET"
	URL     string      // Host is the logical service name
	Header  http.Header // Ordered values per header name
	Body    []byte      // Optional
	Charset string      // Optional encoding tag for Body, e.g. "UTF-8"
}

// NewRequest builds a Request with an empty header set.
func NewRequest(method, rawURL string, body []byte) *Request {
	return &Request{
		Method: method,
		URL:    rawURL,
		Header: make(http.Header),
		Body:   body,
	}
}

// Validate rejects requests that no attempt could ever dispatch.
func (r *Request) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if r.Method == "" {
		return fmt.Errorf("%w: empty method", ErrInvalidRequest)
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url %q has no service name", ErrInvalidRequest, r.URL)
	}
	return nil
}

// Target splits URL into the logical service name and a host-less URL that
// keeps scheme, path, query and fragment.
func (r *Request) Target() (string, *url.URL, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	service := u.Hostname()
	if service == "" {
		return "", nil, fmt.Errorf("%w: url %q has no service name", ErrInvalidRequest, r.URL)
	}
	stripped := *u
	stripped.Host = ""
	stripped.User = nil
	return service, &stripped, nil
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

func (r *Request) String() string {
	return r.Method + " " + r.URL
}

// Options overrides a service's timeouts for exactly one call.
//
// A zero field inherits the service default. To run a call without a bound
// configure the service itself with a zero timeout.
type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Validate reports ErrInvalidOptions for negative timeouts. A nil receiver is valid.
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	if o.ConnectTimeout < 0 || o.ReadTimeout < 0 {
		return fmt.Errorf("%w: timeouts must be non-negative (connect=%s read=%s)",
			ErrInvalidOptions, o.ConnectTimeout, o.ReadTimeout)
	}
	return nil
}

// Attempt records one dispatch of a call.
type Attempt struct {
	Address *url.URL // nil when no instance could be chosen
	Err     error    // nil for the attempt that produced the response
}

// Response is the generic result of a delivered call.
//
// Non-2xx statuses are still delivered responses. The caller owns Body and
// must Close the response; an unclosed body pins the underlying connection.
type Response struct {
	Status           int
	Reason           string
	Header           http.Header
	Body             io.ReadCloser // nil when the backend sent no payload
	Length           int64         // -1 when unknown
	RequestedAddress *url.URL      // instance that served the call
	Attempts         []Attempt     // every attempt of the call, in order
}

// IsSuccess reports whether the backend answered 200.
func (r *Response) IsSuccess() bool {
	return r != nil && r.Status == http.StatusOK
}

// HasBody reports whether the response carries a payload stream.
func (r *Response) HasBody() bool {
	return r != nil && r.Body != nil
}

// Charset is the charset parameter of the Content-Type header, or "" when the
// backend named none.
func (r *Response) Charset() string {
	if r == nil {
		return ""
	}
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return params["charset"]
}

// Close releases the response body. It is safe to call more than once.
func (r *Response) Close() error {
	if r == nil || r.Body == nil {
		return nil
	}
	err := r.Body.Close()
	r.Body = nil
	return err
}

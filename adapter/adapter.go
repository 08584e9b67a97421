// Package adapter converts between the generic message shapes and the shapes
// a concrete transport works with.
package adapter

import (
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mini-lb/message"
	"mini-lb/transport"
)

// Adapter is the pair of conversions the client applies around every attempt.
type Adapter interface {
	// ToBackendRequest binds req to a backend address. It never fails;
	// malformed requests are rejected before an address is chosen.
	ToBackendRequest(req *message.Request, target *url.URL, addr *url.URL, tr transport.Transport) *Request

	// ToGenericResponse rehydrates a transport response, recording addr as
	// the instance that served it.
	ToGenericResponse(raw *http.Response, addr *url.URL) *message.Response
}

// Request is a generic request bound to one backend address and the
// transport that will carry it. It is immutable; WithAddress returns a copy.
type Request struct {
	generic   *message.Request
	target    *url.URL // host-less remainder of the generic URL
	address   *url.URL
	transport transport.Transport
}

// NewRequest binds req, whose URL host has been stripped into target, to addr.
func NewRequest(req *message.Request, target, addr *url.URL, tr transport.Transport) *Request {
	return &Request{
		generic:   req,
		target:    target,
		address:   addr,
		transport: tr,
	}
}

// WithAddress returns the same request bound to another instance.
func (r *Request) WithAddress(addr *url.URL) *Request {
	return NewRequest(r.generic, r.target, addr, r.transport)
}

func (r *Request) Generic() *message.Request { return r.generic }

func (r *Request) Address() *url.URL { return r.address }

func (r *Request) Transport() transport.Transport { return r.transport }

// URL is the absolute backend URL: the address' scheme and host followed by
// the original path, query and fragment.
func (r *Request) URL() *url.URL {
	u := *r.target
	u.Scheme = r.address.Scheme
	u.Host = r.address.Host
	if u.Path != "" && !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return &u
}

// Backend builds the transport request. Header and body are copied so the
// transport cannot alter the generic request.
func (r *Request) Backend() *transport.Request {
	g := r.generic
	header := g.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if g.Charset != "" {
		withCharset(header, g.Charset)
	}
	var body []byte
	if g.Body != nil {
		body = append([]byte(nil), g.Body...)
	}
	return &transport.Request{
		Method:  g.Method,
		URL:     r.URL(),
		Header:  header,
		Body:    body,
		Charset: g.Charset,
	}
}

// withCharset adds a charset parameter to an existing Content-Type that has none.
func withCharset(header http.Header, charset string) {
	ct := header.Get("Content-Type")
	if ct == "" {
		return
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return
	}
	if _, ok := params["charset"]; ok {
		return
	}
	params["charset"] = charset
	header.Set("Content-Type", mime.FormatMediaType(mediaType, params))
}

// Default is the Adapter used by the client.
type Default struct{}

func (Default) ToBackendRequest(req *message.Request, target, addr *url.URL, tr transport.Transport) *Request {
	return NewRequest(req, target, addr, tr)
}

func (Default) ToGenericResponse(raw *http.Response, addr *url.URL) *message.Response {
	resp := &message.Response{
		Status:           raw.StatusCode,
		Reason:           reasonPhrase(raw),
		Header:           raw.Header,
		Length:           raw.ContentLength,
		RequestedAddress: addr,
	}
	if raw.Body != nil && raw.Body != http.NoBody {
		resp.Body = raw.Body
	}
	if resp.Header == nil {
		resp.Header = make(http.Header)
	}
	return resp
}

// reasonPhrase extracts "Not Found" from a status line such as "404 Not Found".
func reasonPhrase(raw *http.Response) string {
	code := strconv.Itoa(raw.StatusCode)
	if reason, ok := strings.CutPrefix(raw.Status, code+" "); ok {
		return reason
	}
	return http.StatusText(raw.StatusCode)
}

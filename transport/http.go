package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http2"
)

// Config tunes the shared HTTP client. Connection pool sizing is left to
// net/http.
type Config struct {
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	FollowRedirects bool
}

// HTTPTransport implements Transport over net/http (HTTP/1.1) or
// golang.org/x/net/http2 (cleartext HTTP/2).
//
// Timeouts are applied per request on a shared connection pool: the connect
// timeout is handed to the dialer through the request context, and the read
// timeout is an inactivity watchdog armed once the request is written and
// re-armed on every body read.
type HTTPTransport struct {
	client *http.Client
}

type connectTimeoutKey struct{}

// dialContext dials with the connect timeout of the request that triggered it.
func dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d := net.Dialer{KeepAlive: 30 * time.Second}
	if t, ok := ctx.Value(connectTimeoutKey{}).(time.Duration); ok && t > 0 {
		d.Timeout = t
	}
	return d.DialContext(ctx, network, addr)
}

// NewHTTPTransport creates an HTTP/1.1 transport.
func NewHTTPTransport(cfg Config) *HTTPTransport {
	rt := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
	}
	return &HTTPTransport{client: newClient(rt, cfg)}
}

// NewHTTP2Transport creates a cleartext HTTP/2 (h2c) transport.
func NewHTTP2Transport(cfg Config) *HTTPTransport {
	rt := &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialContext(ctx, network, addr)
		},
		IdleConnTimeout: cfg.IdleConnTimeout,
	}
	return &HTTPTransport{client: newClient(rt, cfg)}
}

func newClient(rt http.RoundTripper, cfg Config) *http.Client {
	c := &http.Client{Transport: rt}
	if !cfg.FollowRedirects {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request, timeouts Timeouts) (*http.Response, error) {
	parent := ctx
	addr := req.URL.Host

	ctx, cancel := context.WithCancelCause(ctx)
	wd := &watchdog{timeout: timeouts.Read, cancel: cancel}

	var gotConn atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) {
			gotConn.Store(true)
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			wd.arm()
		},
	})
	ctx = context.WithValue(ctx, connectTimeoutKey{}, timeouts.Connect)

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		cancel(nil)
		return nil, err
	}
	if req.Header != nil {
		httpReq.Header = req.Header.Clone()
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		wd.stop()
		cause := context.Cause(ctx)
		cancel(nil)
		if parent.Err() != nil {
			return nil, err
		}
		if errors.Is(cause, ErrReadTimeout) {
			err = ErrReadTimeout
		}
		if !gotConn.Load() {
			return nil, &ConnectError{Addr: addr, Err: err}
		}
		return nil, &ReadError{Addr: addr, Err: err}
	}

	if resp.Body == http.NoBody {
		wd.stop()
		cancel(nil)
		return resp, nil
	}
	wd.arm()
	resp.Body = &watchedBody{
		ReadCloser: resp.Body,
		addr:       addr,
		ctx:        ctx,
		parent:     parent,
		wd:         wd,
		cancel:     cancel,
	}
	return resp, nil
}

// Close drops idle pooled connections.
func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// watchdog cancels an attempt when its read timeout elapses without progress.
type watchdog struct {
	timeout time.Duration
	cancel  context.CancelCauseFunc

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func (w *watchdog) arm() {
	if w.timeout <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.timeout, func() { w.cancel(ErrReadTimeout) })
		return
	}
	w.timer.Reset(w.timeout)
}

func (w *watchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
}

// watchedBody re-arms the read watchdog on progress, reports read failures as
// *ReadError and releases the attempt context on Close.
type watchedBody struct {
	io.ReadCloser
	addr   string
	ctx    context.Context
	parent context.Context
	wd     *watchdog
	cancel context.CancelCauseFunc
	closed atomic.Bool
}

func (b *watchedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == nil || err == io.EOF {
		if n > 0 {
			b.wd.arm()
		}
		return n, err
	}
	if b.parent.Err() != nil {
		return n, err
	}
	if errors.Is(context.Cause(b.ctx), ErrReadTimeout) {
		err = ErrReadTimeout
	}
	return n, &ReadError{Addr: b.addr, Err: err}
}

func (b *watchedBody) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.wd.stop()
	err := b.ReadCloser.Close()
	b.cancel(nil)
	return err
}

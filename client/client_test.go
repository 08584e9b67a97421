package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mini-lb/codec"
	"mini-lb/config"
	"mini-lb/loadbalance"
	"mini-lb/message"
	"mini-lb/metrics"
	"mini-lb/transport"
)

// ---- 测试用的 fake ----

// fakeHandle hands out its addresses in rotation.
type fakeHandle struct {
	mu    sync.Mutex
	addrs []string
	n     int
	err   error
}

func (h *fakeHandle) ChooseAddress(ctx context.Context) (*url.URL, error) {
	if h.err != nil {
		return nil, h.err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	addr := h.addrs[h.n%len(h.addrs)]
	h.n++
	return &url.URL{Scheme: "http", Host: addr}, nil
}

type service struct {
	handle loadbalance.Handle
	cfg    config.ServiceConfig
}

type fakeResolver map[string]service

func (r fakeResolver) Resolve(name string) (loadbalance.Handle, config.ServiceConfig, error) {
	s, ok := r[name]
	if !ok {
		return nil, config.ServiceConfig{}, fmt.Errorf("%w: %q", loadbalance.ErrUnknownService, name)
	}
	return s.handle, s.cfg, nil
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

type seen struct {
	req      *transport.Request
	timeouts transport.Timeouts
}

// fakeTransport replays results in order and records every invocation.
type fakeTransport struct {
	mu      sync.Mutex
	results []func(req *transport.Request) (*http.Response, error)
	calls   []seen
}

func (f *fakeTransport) RoundTrip(ctx context.Context, req *transport.Request, timeouts transport.Timeouts) (*http.Response, error) {
	f.mu.Lock()
	i := len(f.calls)
	f.calls = append(f.calls, seen{req: req, timeouts: timeouts})
	f.mu.Unlock()
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i](req)
}

func (f *fakeTransport) invocations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func connectFailure(req *transport.Request) (*http.Response, error) {
	return nil, &transport.ConnectError{Addr: req.URL.Host, Err: errors.New("connection refused")}
}

func readFailure(req *transport.Request) (*http.Response, error) {
	return nil, &transport.ReadError{Addr: req.URL.Host, Err: io.ErrUnexpectedEOF}
}

func respond(status int, body string) func(req *transport.Request) (*http.Response, error) {
	return func(req *transport.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode:    status,
			Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
			Header:        http.Header{"Content-Type": {"text/plain"}},
			Body:          &trackedBody{Reader: strings.NewReader(body)},
			ContentLength: int64(len(body)),
		}, nil
	}
}

// serviceConfig returns defaults without backoff so tests do not sleep.
func serviceConfig() config.ServiceConfig {
	cfg := config.DefaultServiceConfig()
	cfg.Backoff = config.BackoffConfig{}
	return cfg
}

func newTestClient(cfg config.ServiceConfig, tr transport.Transport, opts ...Option) *Client {
	resolver := fakeResolver{
		"users":    {handle: &fakeHandle{addrs: []string{"10.0.0.1:80", "10.0.0.2:80"}}, cfg: cfg},
		"accounts": {handle: &fakeHandle{addrs: []string{"10.0.0.1:8080", "10.0.0.2:8080"}}, cfg: cfg},
	}
	return NewClient(resolver, tr, opts...)
}

// ---- 测试 ----

func TestGetConnectFailureThenSuccess(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		connectFailure,
		respond(200, "ok"),
	}}
	cli := newTestClient(serviceConfig(), tr)

	resp, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://users/v1/users/1", nil), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	defer resp.Close()

	if tr.invocations() != 2 {
		t.Fatalf("expect exactly 2 invocations, got %d", tr.invocations())
	}
	if resp.Status != 200 || !resp.IsSuccess() {
		t.Fatalf("expect 200, got %d", resp.Status)
	}
	// MaxRetriesNextServer moves the retry to another instance
	if resp.RequestedAddress.Host != "10.0.0.2:80" {
		t.Fatalf("expect retry on 10.0.0.2:80, got %s", resp.RequestedAddress.Host)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("expect body 'ok', got '%s'", body)
	}
}

func TestPostReadFailureNotRetried(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		readFailure,
		respond(200, "ok"),
	}}
	cfg := serviceConfig()
	cfg.RetryOnAllMethods = false
	cli := newTestClient(cfg, tr)

	_, err := cli.Execute(context.Background(), message.NewRequest("POST", "http://users/v1/users", []byte(`{}`)), nil)
	if tr.invocations() != 1 {
		t.Fatalf("expect exactly 1 invocation, got %d", tr.invocations())
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expect *TransportError, got %T: %v", err, err)
	}
	if te.Method != "POST" || te.Service != "users" || len(te.Attempts) != 1 {
		t.Fatalf("unexpected error fields: %+v", te)
	}
	var re *transport.ReadError
	if !errors.As(err, &re) {
		t.Fatalf("expect the read error as root cause, got %v", err)
	}
}

func TestRetryOnAllMethods(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		readFailure,
	}}
	cfg := serviceConfig()
	cfg.RetryOnAllMethods = true
	cfg.MaxRetriesSameServer = 1
	cfg.MaxRetriesNextServer = 1
	cli := newTestClient(cfg, tr)

	_, err := cli.Execute(context.Background(), message.NewRequest("POST", "http://users/v1/users", nil), nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expect *TransportError, got %v", err)
	}
	// (1 + same server retries) * (1 + next server retries)
	if tr.invocations() != 4 {
		t.Fatalf("expect 4 invocations, got %d", tr.invocations())
	}
	if len(te.Attempts) != 4 {
		t.Fatalf("expect 4 recorded attempts, got %d", len(te.Attempts))
	}
	hosts := make([]string, 0, len(te.Attempts))
	for _, a := range te.Attempts {
		hosts = append(hosts, a.Address.Host)
	}
	want := "10.0.0.1:80,10.0.0.1:80,10.0.0.2:80,10.0.0.2:80"
	if strings.Join(hosts, ",") != want {
		t.Fatalf("expect attempt order %s, got %v", want, hosts)
	}
}

func TestRetryOnAllMethodsStopsOnSuccess(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		readFailure,
		respond(200, "ok"),
	}}
	cfg := serviceConfig()
	cfg.RetryOnAllMethods = true
	cli := newTestClient(cfg, tr)

	resp, err := cli.Execute(context.Background(), message.NewRequest("PUT", "http://users/v1/users/1", nil), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	resp.Close()
	if tr.invocations() != 2 {
		t.Fatalf("expect 2 invocations, got %d", tr.invocations())
	}
}

func TestPerCallOptions(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		respond(200, "ok"),
	}}
	cfg := serviceConfig()
	cfg.ConnectTimeout = 2 * time.Second
	cfg.ReadTimeout = 5 * time.Second
	cli := newTestClient(cfg, tr)
	req := message.NewRequest("GET", "http://users/v1/users", nil)

	resp, err := cli.Execute(context.Background(), req, &message.Options{ConnectTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	resp.Close()
	resp, err = cli.Execute(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Close()

	want := []transport.Timeouts{
		{Connect: 100 * time.Millisecond, Read: 5 * time.Second},
		{Connect: 2 * time.Second, Read: 5 * time.Second},
	}
	for i, w := range want {
		if got := tr.calls[i].timeouts; got != w {
			t.Fatalf("call %d: expect timeouts %+v, got %+v", i, w, got)
		}
	}
}

func TestInvalidOptions(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){respond(200, "")}}
	cli := newTestClient(serviceConfig(), tr)

	_, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://users/", nil), &message.Options{ReadTimeout: -time.Second})
	if !errors.Is(err, message.ErrInvalidOptions) {
		t.Fatalf("expect ErrInvalidOptions, got %v", err)
	}
	_, err = cli.Execute(context.Background(), message.NewRequest("GET", "/no-host", nil), nil)
	if !errors.Is(err, message.ErrInvalidRequest) {
		t.Fatalf("expect ErrInvalidRequest, got %v", err)
	}
	if tr.invocations() != 0 {
		t.Fatalf("expect no invocations, got %d", tr.invocations())
	}
}

func TestDecoderRetryableError(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		respond(200, "stale"),
		respond(200, "fresh"),
	}}
	cli := newTestClient(serviceConfig(), tr)

	// 第一次的 body 判定为可重试，第二次正常解码
	dec := codec.DecoderFunc(func(resp *message.Response, v any) error {
		var s string
		if err := (codec.String{}).Decode(resp, &s); err != nil {
			return err
		}
		if s == "stale" {
			return &codec.RetryableError{Status: resp.Status, Err: errors.New("stale read")}
		}
		*v.(*string) = s
		return nil
	})

	var got string
	resp, err := cli.Call(context.Background(), message.NewRequest("GET", "http://users/v1/users/1", nil), nil, dec, &got)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != "fresh" {
		t.Fatalf("expect 'fresh', got '%s'", got)
	}
	if tr.invocations() != 2 {
		t.Fatalf("expect 2 invocations, got %d", tr.invocations())
	}
	if !codec.IsRetryable(resp.Attempts[0].Err) {
		t.Fatalf("expect first attempt to record the retryable error, got %v", resp.Attempts[0].Err)
	}
	if resp.Body != nil {
		t.Fatal("Call should consume and close the body")
	}
}

func TestRetryOnStatusClosesFailedBody(t *testing.T) {
	var bodies []*trackedBody
	track := func(status int, body string) func(*transport.Request) (*http.Response, error) {
		return func(req *transport.Request) (*http.Response, error) {
			resp, _ := respond(status, body)(req)
			bodies = append(bodies, resp.Body.(*trackedBody))
			return resp, nil
		}
	}
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		track(503, "busy"),
		track(200, "ok"),
	}}
	cli := newTestClient(serviceConfig(), tr)

	var got string
	_, err := cli.Call(context.Background(), message.NewRequest("GET", "http://users/", nil), nil,
		codec.RetryOnStatus(codec.String{}, http.StatusServiceUnavailable), &got)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if got != "ok" {
		t.Fatalf("expect 'ok', got '%s'", got)
	}
	for i, b := range bodies {
		if !b.closed {
			t.Fatalf("body %d was not closed", i)
		}
	}
}

func TestDecodeErrorIsTerminal(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		respond(200, "{broken"),
	}}
	cli := newTestClient(serviceConfig(), tr)

	var v map[string]any
	_, err := cli.Call(context.Background(), message.NewRequest("GET", "http://users/", nil), nil, codec.JSON{}, &v)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expect *TransportError, got %v", err)
	}
	if tr.invocations() != 1 {
		t.Fatalf("expect 1 invocation, got %d", tr.invocations())
	}
}

func TestAccountsScenario(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		connectFailure,
		respond(201, `{"id":42}`),
	}}
	cli := newTestClient(serviceConfig(), tr)

	req := message.NewRequest("POST", "http://accounts/v1/users?source=web", []byte(`{"name":"alice"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Charset = "UTF-8"

	resp, err := cli.Execute(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	defer resp.Close()

	if resp.Status != 201 || resp.Reason != "Created" {
		t.Fatalf("expect 201 Created, got %d %s", resp.Status, resp.Reason)
	}
	if resp.IsSuccess() {
		t.Fatal("IsSuccess reports status 200 only")
	}
	if len(resp.Attempts) != 2 {
		t.Fatalf("expect 2 attempts, got %d", len(resp.Attempts))
	}
	if transport.PhaseOf(resp.Attempts[0].Err) != transport.PhaseConnect || resp.Attempts[1].Err != nil {
		t.Fatalf("unexpected attempts: %+v", resp.Attempts)
	}
	if resp.Attempts[0].Address.Host != "10.0.0.1:8080" || resp.Attempts[1].Address.Host != "10.0.0.2:8080" {
		t.Fatalf("unexpected attempt order: %v, %v", resp.Attempts[0].Address, resp.Attempts[1].Address)
	}

	sent := tr.calls[1].req
	if got := sent.URL.String(); got != "http://10.0.0.2:8080/v1/users?source=web" {
		t.Fatalf("unexpected backend url: %s", got)
	}
	if got := sent.Header.Get("Content-Type"); got != "application/json; charset=UTF-8" {
		t.Fatalf("unexpected content type: %s", got)
	}
	if string(sent.Body) != `{"name":"alice"}` {
		t.Fatalf("unexpected body: %s", sent.Body)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatal("the caller's request must not be modified")
	}
}

func TestUnknownService(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){respond(200, "")}}
	cli := newTestClient(serviceConfig(), tr)

	_, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://unknown-service/x", nil), nil)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expect *ConfigurationError, got %T: %v", err, err)
	}
	if ce.Service != "unknown-service" || !errors.Is(err, loadbalance.ErrUnknownService) {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.invocations() != 0 {
		t.Fatalf("expect zero invocations, got %d", tr.invocations())
	}
}

func TestNoAvailableInstance(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){respond(200, "")}}
	resolver := fakeResolver{"empty": {
		handle: &fakeHandle{err: fmt.Errorf("%w: empty", loadbalance.ErrNoAvailableInstance)},
		cfg:    serviceConfig(),
	}}
	cli := NewClient(resolver, tr)

	_, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://empty/", nil), nil)
	var te *TransportError
	if !errors.As(err, &te) || !errors.Is(err, loadbalance.ErrNoAvailableInstance) {
		t.Fatalf("expect TransportError wrapping ErrNoAvailableInstance, got %v", err)
	}
	if tr.invocations() != 0 {
		t.Fatalf("expect zero invocations, got %d", tr.invocations())
	}
	if te.Dispatched() != 0 || !strings.Contains(te.Error(), "after 0 attempt(s)") {
		t.Fatalf("a failed instance choice is not a dispatch: %v", te)
	}
	if len(te.Attempts) != 1 || te.Attempts[0].Address != nil {
		t.Fatalf("expect the failed choice recorded without address, got %+v", te.Attempts)
	}
}

func TestErrorStatusIsDelivered(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		respond(500, "boom"),
	}}
	cli := newTestClient(serviceConfig(), tr)

	resp, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://users/", nil), nil)
	if err != nil {
		t.Fatalf("5xx must be delivered, got %v", err)
	}
	defer resp.Close()
	if resp.Status != 500 || tr.invocations() != 1 {
		t.Fatalf("expect one 500 response, got %d after %d invocations", resp.Status, tr.invocations())
	}
}

func TestCallerCancelNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		func(req *transport.Request) (*http.Response, error) {
			cancel()
			return nil, context.Canceled
		},
	}}
	cfg := serviceConfig()
	cfg.RetryOnAllMethods = true
	cfg.MaxRetriesSameServer = 3
	cli := newTestClient(cfg, tr)

	_, err := cli.Execute(ctx, message.NewRequest("GET", "http://users/", nil), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expect context.Canceled, got %v", err)
	}
	if tr.invocations() != 1 {
		t.Fatalf("expect 1 invocation, got %d", tr.invocations())
	}
}

func TestTotalTimeout(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		connectFailure,
	}}
	cfg := serviceConfig()
	cfg.MaxRetriesSameServer = 100
	cfg.Backoff = config.BackoffConfig{Initial: 20 * time.Millisecond, Max: 20 * time.Millisecond, Multiplier: 1}
	cfg.TotalTimeout = 50 * time.Millisecond
	cli := newTestClient(cfg, tr)

	start := time.Now()
	_, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://users/", nil), nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expect deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("total timeout did not bound the call")
	}
	if n := tr.invocations(); n < 1 || n > 4 {
		t.Fatalf("unexpected number of invocations: %d", n)
	}
}

// ctxBody fails reads once the attempt context is done, like a network body.
type ctxBody struct {
	ctx context.Context
	r   io.Reader
}

func (b *ctxBody) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}
	return b.r.Read(p)
}

func (b *ctxBody) Close() error { return nil }

func TestTotalTimeoutBodyReadableAfterExecute(t *testing.T) {
	var attemptCtx context.Context
	tr := transport.RoundTripFunc(func(ctx context.Context, req *transport.Request, _ transport.Timeouts) (*http.Response, error) {
		attemptCtx = ctx
		return &http.Response{
			StatusCode:    200,
			Status:        "200 OK",
			Header:        http.Header{},
			Body:          &ctxBody{ctx: ctx, r: strings.NewReader("streamed payload")},
			ContentLength: -1,
		}, nil
	})
	cfg := serviceConfig()
	cfg.TotalTimeout = time.Minute
	cfg.ReadTimeout = time.Second
	cli := newTestClient(cfg, tr)

	resp, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://users/", nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("body must stay readable after Execute, got %v", err)
	}
	if string(data) != "streamed payload" {
		t.Fatalf("unexpected body: %q", data)
	}
	if attemptCtx.Err() != nil {
		t.Fatal("total deadline released before the body was closed")
	}
	resp.Close()
	if attemptCtx.Err() == nil {
		t.Fatal("closing the response should release the total deadline")
	}
}

func TestTotalTimeoutReleasedForCall(t *testing.T) {
	var attemptCtx context.Context
	tr := transport.RoundTripFunc(func(ctx context.Context, req *transport.Request, _ transport.Timeouts) (*http.Response, error) {
		attemptCtx = ctx
		return respond(200, "ok")(req)
	})
	cfg := serviceConfig()
	cfg.TotalTimeout = time.Minute
	cli := newTestClient(cfg, tr)

	var got string
	if _, err := cli.Call(context.Background(), message.NewRequest("GET", "http://users/", nil), nil, codec.String{}, &got); err != nil {
		t.Fatal(err)
	}
	if got != "ok" {
		t.Fatalf("unexpected body: %q", got)
	}
	if attemptCtx.Err() == nil {
		t.Fatal("Call consumes the body and should release the total deadline")
	}
}

func TestServiceRateLimit(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){respond(200, "")}}
	cfg := serviceConfig()
	cfg.RateLimit = 1
	cfg.RateBurst = 1
	cli := newTestClient(cfg, tr)
	req := message.NewRequest("GET", "http://users/", nil)

	resp, err := cli.Execute(context.Background(), req, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := cli.Execute(ctx, req, nil); err == nil {
		t.Fatal("second call within the same second should be throttled")
	}
	if tr.invocations() != 1 {
		t.Fatalf("expect 1 invocation, got %d", tr.invocations())
	}
}

func TestConcurrentExecute(t *testing.T) {
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){respond(200, "ok")}}
	cli := newTestClient(serviceConfig(), tr)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://users/", nil), nil)
			if err != nil {
				errs <- err
				return
			}
			resp.Close()
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
	if tr.invocations() != 50 {
		t.Fatalf("expect 50 invocations, got %d", tr.invocations())
	}
}

func TestMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := &fakeTransport{results: []func(*transport.Request) (*http.Response, error){
		connectFailure,
		respond(200, "ok"),
	}}
	cli := newTestClient(serviceConfig(), tr, WithMetrics(metrics.NewCollectorWithRegistry(reg)))

	resp, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://users/", nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Close()
	if _, err := cli.Execute(context.Background(), message.NewRequest("GET", "http://nope/", nil), nil); err == nil {
		t.Fatal("expect configuration error")
	}

	expected := `
# HELP minilb_calls_total Total number of client calls by final result
# TYPE minilb_calls_total counter
minilb_calls_total{method="GET",result="config_error",service="nope"} 1
minilb_calls_total{method="GET",result="success",service="users"} 1
# HELP minilb_retries_total Total number of retries by target choice
# TYPE minilb_retries_total counter
minilb_retries_total{service="users",target="next_server"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "minilb_calls_total", "minilb_retries_total"); err != nil {
		t.Fatal(err)
	}
}

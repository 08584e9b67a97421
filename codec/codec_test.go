package codec

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"mini-lb/message"
)

func newResponse(status int, body string) *message.Response {
	return &message.Response{
		Status: status,
		Header: http.Header{},
		Body:   io.NopCloser(strings.NewReader(body)),
	}
}

type account struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestJSONCodec(t *testing.T) {
	c := JSON{}

	data, err := c.Encode(account{ID: 7, Name: "alice"})
	if err != nil {
		t.Fatalf("JSON Encode failed: %v", err)
	}
	if string(data) != `{"id":7,"name":"alice"}` {
		t.Fatalf("unexpected encoding: %s", data)
	}

	var got account
	if err := c.Decode(newResponse(200, string(data)), &got); err != nil {
		t.Fatalf("JSON Decode failed: %v", err)
	}
	if got.ID != 7 || got.Name != "alice" {
		t.Errorf("decoded mismatch: %+v", got)
	}
}

func TestJSONDecodeEmptyBody(t *testing.T) {
	got := account{ID: 1}
	if err := (JSON{}).Decode(&message.Response{Status: 204}, &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := (JSON{}).Decode(newResponse(200, ""), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != 1 {
		t.Fatal("empty body should leave the target untouched")
	}
}

func TestJSONDecodeMalformed(t *testing.T) {
	var got account
	err := (JSON{}).Decode(newResponse(200, "{not json"), &got)
	if err == nil {
		t.Fatal("expect error for malformed body")
	}
	if IsRetryable(err) {
		t.Fatal("malformed body must not be retryable")
	}
}

func TestStringCodec(t *testing.T) {
	c := String{}

	var s string
	if err := c.Decode(newResponse(200, "hello"), &s); err != nil {
		t.Fatalf("String Decode failed: %v", err)
	}
	if s != "hello" {
		t.Fatalf("expect 'hello', got '%s'", s)
	}

	var b []byte
	if err := c.Decode(newResponse(200, "raw"), &b); err != nil {
		t.Fatalf("String Decode failed: %v", err)
	}
	if string(b) != "raw" {
		t.Fatalf("expect 'raw', got '%s'", b)
	}

	var n int
	if err := c.Decode(newResponse(200, "1"), &n); err == nil {
		t.Fatal("expect error decoding into *int")
	}

	data, err := c.Encode("body")
	if err != nil || string(data) != "body" {
		t.Fatalf("String Encode: %q, %v", data, err)
	}
	if _, err := c.Encode(42); err == nil {
		t.Fatal("expect error encoding int")
	}
}

func TestStringCodecCharset(t *testing.T) {
	resp := newResponse(200, "caf\xe9")
	resp.Header.Set("Content-Type", "text/plain; charset=ISO-8859-1")

	var s string
	if err := (String{}).Decode(resp, &s); err != nil {
		t.Fatalf("String Decode failed: %v", err)
	}
	if s != "café" {
		t.Fatalf("expect 'café', got %q", s)
	}

	raw := newResponse(200, "caf\xe9")
	raw.Header.Set("Content-Type", "text/plain; charset=ISO-8859-1")
	var b []byte
	if err := (String{}).Decode(raw, &b); err != nil {
		t.Fatalf("String Decode failed: %v", err)
	}
	if string(b) != "caf\xe9" {
		t.Fatalf("expect raw bytes, got %q", b)
	}

	bad := newResponse(200, "x")
	bad.Header.Set("Content-Type", "text/plain; charset=no-such-charset")
	if err := (String{}).Decode(bad, &s); err == nil {
		t.Fatal("expect error for unknown charset")
	}
}

func TestRetryOnStatus(t *testing.T) {
	dec := RetryOnStatus(String{}, http.StatusServiceUnavailable, http.StatusTooManyRequests)

	var s string
	err := dec.Decode(newResponse(503, "busy"), &s)
	if !IsRetryable(err) {
		t.Fatalf("expect retryable error, got %v", err)
	}
	var re *RetryableError
	if !errors.As(err, &re) || re.Status != 503 {
		t.Fatalf("expect status 503 in error, got %v", err)
	}
	if s != "" {
		t.Fatal("wrapped decoder should not run on a retryable status")
	}

	if err := dec.Decode(newResponse(200, "ok"), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "ok" {
		t.Fatalf("expect 'ok', got '%s'", s)
	}
}

func TestRetryableErrorUnwrap(t *testing.T) {
	cause := errors.New("stale replica")
	err := error(&RetryableError{Status: 200, Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("expect RetryableError to unwrap to its cause")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatal("plain error must not be retryable")
	}
}

func TestGetCodec(t *testing.T) {
	if GetCodec(ContentTypeJSON).ContentType() != ContentTypeJSON {
		t.Fatal("expect JSON codec")
	}
	if GetCodec("text/html").ContentType() != ContentTypeText {
		t.Fatal("expect String codec as fallback")
	}
}

package codec

import (
	"errors"
	"fmt"

	"mini-lb/message"
)

// Decoder turns a response into a value. The executor calls it inside the
// retry loop, so a decoder can still reject a response by returning a
// *RetryableError.
type Decoder interface {
	Decode(resp *message.Response, v any) error
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(resp *message.Response, v any) error

func (f DecoderFunc) Decode(resp *message.Response, v any) error {
	return f(resp, v)
}

// Codec encodes request bodies and decodes response bodies of one content type.
type Codec interface {
	Decoder
	Encode(v any) ([]byte, error)
	ContentType() string
}

const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// GetCodec returns the codec for a content type, falling back to String.
func GetCodec(contentType string) Codec {
	if contentType == ContentTypeJSON {
		return JSON{}
	}
	return String{}
}

// RetryableError reports that a response was received but should be treated
// as a read failure and retried.
type RetryableError struct {
	Status int
	Err    error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("retryable response (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("retryable response (status %d)", e.Status)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err carries a *RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// RetryOnStatus wraps dec so that responses with one of codes fail with a
// *RetryableError before dec sees them.
func RetryOnStatus(dec Decoder, codes ...int) Decoder {
	set := make(map[int]struct{}, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return DecoderFunc(func(resp *message.Response, v any) error {
		if _, ok := set[resp.Status]; ok {
			return &RetryableError{Status: resp.Status}
		}
		return dec.Decode(resp, v)
	})
}

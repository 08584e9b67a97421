package codec

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"

	"mini-lb/message"
)

// String reads bodies as plain text. Decode targets must be *string or *[]byte.
//
// A *string receives the body transcoded to UTF-8 from the response charset.
// A *[]byte receives the raw bytes.
type String struct{}

func (String) Encode(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	case fmt.Stringer:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("string codec: cannot encode %T", v)
	}
}

func (String) Decode(resp *message.Response, v any) error {
	var data []byte
	if resp.HasBody() {
		var err error
		if data, err = io.ReadAll(resp.Body); err != nil {
			return err
		}
	}
	switch dst := v.(type) {
	case *string:
		text, err := toUTF8(data, resp.Charset())
		if err != nil {
			return err
		}
		*dst = text
	case *[]byte:
		*dst = data
	default:
		return fmt.Errorf("string codec: cannot decode into %T", v)
	}
	return nil
}

func (String) ContentType() string {
	return ContentTypeText
}

func toUTF8(data []byte, charset string) (string, error) {
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "utf8") {
		return string(data), nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("string codec: unsupported charset %q: %w", charset, err)
	}
	if enc == unicode.UTF8 {
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("string codec: decode %s body: %w", charset, err)
	}
	return string(out), nil
}

package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"mini-lb/message"
)

// JSON encodes and decodes bodies with encoding/json.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals the body into v. An empty body leaves v untouched.
func (JSON) Decode(resp *message.Response, v any) error {
	if !resp.HasBody() {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json body: %w", err)
	}
	return nil
}

func (JSON) ContentType() string {
	return ContentTypeJSON
}

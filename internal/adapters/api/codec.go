package api

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// jsonCodec lets connect carry plain Go structs. The codec connect ships for
// "json" only accepts generated proto messages.
type jsonCodec struct{}

var _ connect.Codec = jsonCodec{}

// Codec is the option both the handler and its clients need
func Codec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(message any) ([]byte, error) {
	return json.Marshal(message)
}

func (jsonCodec) Unmarshal(data []byte, message any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, message); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

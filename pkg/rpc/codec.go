// Package rpc holds ConnectRPC helpers shared by services and their clients.
package rpc

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// JSONCodec lets ConnectRPC carry plain Go structs as application/json.
// It replaces the default protojson codec registered under the same name.
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// WithJSON configures a handler or client to use JSONCodec.
func WithJSON() connect.Option {
	return connect.WithCodec(JSONCodec{})
}

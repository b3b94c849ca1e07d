// Package proto defines the platform's internal RPC contracts (§6.5). The
// services are small and change often during this build-out, so messages
// are plain Go structs carried over gRPC with a JSON codec instead of
// generated protobuf bindings — the wire protocol, channel pooling
// (internal/platform/rpcpool), and deadline propagation are still real
// gRPC, only the payload encoding differs from the usual protoc output.
package proto

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

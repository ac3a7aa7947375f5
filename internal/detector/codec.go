package detector

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes and decodes inference results on the wire.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return "json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct{}

func (cborCodec) Name() string                       { return "cbor" }
func (cborCodec) Marshal(v any) ([]byte, error)      { return cbor.Marshal(v) }
func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                       { return "msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Built-in codecs.
var (
	JSON    Codec = jsonCodec{}
	CBOR    Codec = cborCodec{}
	MsgPack Codec = msgpackCodec{}
)

// CodecByName returns the codec registered under name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	case "msgpack":
		return MsgPack, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// DecodeFrame decodes and validates a single inference result.
// Malformed payloads and non-finite scores wrap ErrInvalidFeatureInput.
func DecodeFrame(c Codec, data []byte) (*Frame, error) {
	var frame Frame
	if err := c.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %s decode: %v", ErrInvalidFeatureInput, c.Name(), err)
	}
	for i := range frame.Faces {
		if err := frame.Faces[i].Blendshapes.Validate(); err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
	}
	return &frame, nil
}

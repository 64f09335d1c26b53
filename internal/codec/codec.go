// Package codec abstracts the wire encodings used by the engine: JSON for
// the record store and JSON or CBOR for the UI bridge.
package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
)

type Encoder interface {
	Encode(v any) error
}

type Decoder interface {
	Decode(v any) error
}

type Marshaler interface {
	Marshal(v any) ([]byte, error)
	NewEncoder(w io.Writer) Encoder
}

type Unmarshaler interface {
	Unmarshal(data []byte, dst any) error
	NewDecoder(r io.Reader) Decoder
}

// Codec is a Marshaler and an Unmarshaler sharing a content type.
type Codec interface {
	Marshaler
	Unmarshaler
	ContentType() string
}

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

type jsonCodec struct{}

// JSON returns the JSON codec backed by goccy/go-json.
func JSON() Codec { return jsonCodec{} }

func (jsonCodec) Marshal(v any) ([]byte, error)        { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, dst any) error { return json.Unmarshal(data, dst) }
func (jsonCodec) NewEncoder(w io.Writer) Encoder       { return json.NewEncoder(w) }
func (jsonCodec) NewDecoder(r io.Reader) Decoder       { return json.NewDecoder(r) }
func (jsonCodec) ContentType() string                  { return ContentTypeJSON }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a CBOR codec. Time values are encoded as RFC 3339 strings so
// that JSON and CBOR clients see the same representation.
func CBOR() Codec {
	enc, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{DefaultMapType: mapStringAny}.DecMode()
	if err != nil {
		panic(err)
	}
	return &cborCodec{enc: enc, dec: dec}
}

func (c *cborCodec) Marshal(v any) ([]byte, error)        { return c.enc.Marshal(v) }
func (c *cborCodec) Unmarshal(data []byte, dst any) error { return c.dec.Unmarshal(data, dst) }
func (c *cborCodec) NewEncoder(w io.Writer) Encoder       { return c.enc.NewEncoder(w) }
func (c *cborCodec) NewDecoder(r io.Reader) Decoder       { return c.dec.NewDecoder(r) }
func (c *cborCodec) ContentType() string                  { return ContentTypeCBOR }

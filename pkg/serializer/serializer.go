package serializer

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer encodes task payloads. Both implementations honour json struct tags.
type Serializer interface {
	Serialize(val interface{}) ([]byte, error)
	Deserialize(b []byte, val interface{}) error
}

var (
	MsgPack Serializer = msgPackSerializer{}
	JSON    Serializer = jsonSerializer{}
)

type msgPackSerializer struct{}

func (msgPackSerializer) Serialize(val interface{}) ([]byte, error) {
	var buf bytes.Buffer

	encoder := msgpack.GetEncoder()
	defer msgpack.PutEncoder(encoder)

	encoder.SetCustomStructTag("json")
	encoder.Reset(&buf)

	if err := encoder.Encode(val); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgPackSerializer) Deserialize(b []byte, val interface{}) error {
	decoder := msgpack.GetDecoder()
	defer msgpack.PutDecoder(decoder)

	decoder.SetCustomStructTag("json")
	decoder.Reset(bytes.NewReader(b))

	return decoder.Decode(val)
}

type jsonSerializer struct{}

func (jsonSerializer) Serialize(val interface{}) ([]byte, error) {
	return json.Marshal(val)
}

func (jsonSerializer) Deserialize(b []byte, val interface{}) error {
	return json.Unmarshal(b, val)
}

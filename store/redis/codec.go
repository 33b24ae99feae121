package redis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/xraph/mediator/cache"
)

// Codec defines the serialization of cache entries stored in Redis.
type Codec interface {
	// Encode serializes an envelope to bytes.
	Encode(env *Envelope) ([]byte, error)

	// Decode deserializes bytes into an envelope.
	Decode(data []byte) (*Envelope, error)

	// Name returns the codec identifier ("json" or "msgpack").
	Name() string
}

// Codec names.
const (
	CodecNameJSON    = "json"
	CodecNameMsgpack = "msgpack"
)

// GetCodec returns a codec by name. Unknown names get JSON.
func GetCodec(name string) Codec {
	if name == CodecNameMsgpack {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// Envelope is the stored form of a cache.Entry. Data is always JSON so the
// query result can be decoded into the caller's type regardless of codec.
type Envelope struct {
	Data      json.RawMessage `json:"data" msgpack:"data"`
	StoredAt  time.Time       `json:"stored_at" msgpack:"stored_at"`
	StaleAt   time.Time       `json:"stale_at" msgpack:"stale_at"`
	ExpiresAt time.Time       `json:"expires_at" msgpack:"expires_at"`
}

func toEnvelope(e *cache.Entry) (*Envelope, error) {
	var data json.RawMessage
	switch v := e.Data.(type) {
	case nil:
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode data: %w", err)
		}
		data = b
	}
	return &Envelope{
		Data:      data,
		StoredAt:  e.StoredAt,
		StaleAt:   e.StaleAt,
		ExpiresAt: e.ExpiresAt,
	}, nil
}

func (env *Envelope) entry() *cache.Entry {
	e := &cache.Entry{
		StoredAt:  env.StoredAt,
		StaleAt:   env.StaleAt,
		ExpiresAt: env.ExpiresAt,
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		e.Data = env.Data
	}
	return e
}

// JSONCodec encodes envelopes as JSON.
type JSONCodec struct{}

func (JSONCodec) Encode(env *Envelope) ([]byte, error) { return json.Marshal(env) }

func (JSONCodec) Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (JSONCodec) Name() string { return CodecNameJSON }

// MsgpackCodec encodes envelopes as MessagePack.
type MsgpackCodec struct{}

func (MsgpackCodec) Encode(env *Envelope) ([]byte, error) { return msgpack.Marshal(env) }

func (MsgpackCodec) Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (MsgpackCodec) Name() string { return CodecNameMsgpack }

package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Envelope codec for the websocket protocol.
// Every server -> client frame is a msgpack-encoded {type, data} pair.

// Server -> client envelope types.
const (
	TypeStocksInfo   = "stocksInfo"
	TypeBaseStock    = "baseStock"
	TypeUpdateTarget = "updateTarget"
	TypeUpdateStock  = "updateStock"
	TypeNotice       = "notice"
	TypeError        = "error"
)

// Client -> server request types.
const (
	TypeOpen  = "open"
	TypeAlarm = "alarm"
)

// Envelope is the unit exchanged over the wire.
type Envelope struct {
	Type string `msgpack:"type"`
	Data any    `msgpack:"data"`
}

// Request is a client -> server message. Fields other than Type are
// populated depending on the request type.
type Request struct {
	Type       string `msgpack:"type"`
	StockCode  string `msgpack:"stockCode"`
	AlarmToken string `msgpack:"alarmToken"`
}

// BaseStock is the reply payload for an "open" request.
type BaseStock struct {
	Conclusions any   `msgpack:"conclusions"`
	Charts      []any `msgpack:"charts"`
}

// Encode serializes a typed envelope for transport.
func Encode(typ string, data any) ([]byte, error) {
	buf, err := msgpack.Marshal(Envelope{Type: typ, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", typ, err)
	}
	return buf, nil
}

// Decode parses a transport frame back into an envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// DecodeRequest parses a client frame into a Request.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := msgpack.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// EncodeRequest serializes a client -> server request. Used by client
// tooling and tests; the server only decodes requests.
func EncodeRequest(req Request) ([]byte, error) {
	buf, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Type, err)
	}
	return buf, nil
}

package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Body layouts (the 4-byte frame length is handled by net.ReadFrame):
//
//	request: [H cmd][C up_tag][payload]
//	reply:   [C kind=0][H cmd][h result][C up_tag][C down_tag][payload]
//	push:    [C kind=1][H cmd][h 0][C 0][C down_tag][payload]
//
// All multi-byte fields are big-endian.
const (
	RequestHeaderSize  = 3
	OutboundHeaderSize = 7

	kindReply byte = 0
	kindPush  byte = 1
)

// ErrShortBody is returned when a frame body is smaller than its header.
var ErrShortBody = errors.New("packet body shorter than header")

// Request is one decoded inbound frame. Cmd is the raw wire id; it is only
// interpreted as a CmdID by the dispatcher.
type Request struct {
	Cmd     uint16
	UpTag   uint8
	Payload []byte
}

// Outbound is either a *Reply or a *Push.
type Outbound interface {
	Command() CmdID
	DownTag() uint8
	isOutbound()
}

// Reply answers exactly one request and echoes its up tag.
type Reply struct {
	Cmd        CmdID
	Payload    []byte
	ResultCode int16
	UpTag      uint8
	Down       uint8
}

// Push is a server-initiated message not correlated to a request.
type Push struct {
	Cmd     CmdID
	Payload []byte
	Down    uint8
}

func (r *Reply) Command() CmdID { return r.Cmd }
func (r *Reply) DownTag() uint8 { return r.Down }
func (*Reply) isOutbound()      {}

func (p *Push) Command() CmdID { return p.Cmd }
func (p *Push) DownTag() uint8 { return p.Down }
func (*Push) isOutbound()      {}

// DecodeRequest parses an inbound frame body. The payload aliases body.
func DecodeRequest(body []byte) (*Request, error) {
	if len(body) < RequestHeaderSize {
		return nil, fmt.Errorf("decode request (%d bytes): %w", len(body), ErrShortBody)
	}
	req := &Request{
		Cmd:   binary.BigEndian.Uint16(body[0:2]),
		UpTag: body[2],
	}
	if len(body) > RequestHeaderSize {
		req.Payload = body[RequestHeaderSize:]
	}
	return req, nil
}

// EncodeRequest builds an inbound frame body. Used by clients and tests.
func EncodeRequest(req *Request) []byte {
	buf := make([]byte, RequestHeaderSize, RequestHeaderSize+len(req.Payload))
	binary.BigEndian.PutUint16(buf[0:2], req.Cmd)
	buf[2] = req.UpTag
	return append(buf, req.Payload...)
}

// EncodeReply builds an outbound reply body.
func EncodeReply(r *Reply) []byte {
	return encodeOutbound(kindReply, r.Cmd, r.ResultCode, r.UpTag, r.Down, r.Payload)
}

// EncodePush builds an outbound push body.
func EncodePush(p *Push) []byte {
	return encodeOutbound(kindPush, p.Cmd, 0, 0, p.Down, p.Payload)
}

func encodeOutbound(kind byte, cmd CmdID, result int16, upTag, downTag uint8, payload []byte) []byte {
	buf := make([]byte, OutboundHeaderSize, OutboundHeaderSize+len(payload))
	buf[0] = kind
	binary.BigEndian.PutUint16(buf[1:3], uint16(cmd))
	binary.BigEndian.PutUint16(buf[3:5], uint16(result))
	buf[5] = upTag
	buf[6] = downTag
	return append(buf, payload...)
}

// DecodeOutbound parses a reply or push body. Used by clients and tests.
func DecodeOutbound(body []byte) (Outbound, error) {
	if len(body) < OutboundHeaderSize {
		return nil, fmt.Errorf("decode outbound (%d bytes): %w", len(body), ErrShortBody)
	}
	cmd := CmdID(binary.BigEndian.Uint16(body[1:3]))
	var payload []byte
	if len(body) > OutboundHeaderSize {
		payload = body[OutboundHeaderSize:]
	}

	switch body[0] {
	case kindReply:
		return &Reply{
			Cmd:        cmd,
			Payload:    payload,
			ResultCode: int16(binary.BigEndian.Uint16(body[3:5])),
			UpTag:      body[5],
			Down:       body[6],
		}, nil
	case kindPush:
		return &Push{Cmd: cmd, Payload: payload, Down: body[6]}, nil
	default:
		return nil, fmt.Errorf("decode outbound: unknown kind %d", body[0])
	}
}

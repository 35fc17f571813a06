package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sonettogo/server/internal/net/packet"
)

// FrameHeaderSize is the 4-byte big-endian body length prefix.
const FrameHeaderSize = 4

// ErrFrameLength is returned for a length prefix outside [minBody, maxSize].
var ErrFrameLength = errors.New("invalid frame length")

// ReadFrame reads one frame from r.
// Wire format: [4 bytes BE: body length][body].
// The length is checked against maxSize before the body is allocated.
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	bodyLen := binary.BigEndian.Uint32(header[:])
	if bodyLen < packet.RequestHeaderSize || uint64(bodyLen) > uint64(maxSize) {
		return nil, fmt.Errorf("%w: %d", ErrFrameLength, bodyLen)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body (%d bytes): %w", bodyLen, err)
	}
	return body, nil
}

// WriteFrame writes body as one frame in a single Write call.
func WriteFrame(w io.Writer, body []byte) error {
	buf := make([]byte, FrameHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[:FrameHeaderSize], uint32(len(body)))
	copy(buf[FrameHeaderSize:], body)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

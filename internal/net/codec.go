package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameSize bounds a single message on stream transports.
const DefaultMaxFrameSize = 1 << 20

var (
	ErrEmptyFrame    = errors.New("net: empty frame")
	ErrFrameTooLarge = errors.New("net: frame too large")
)

// ReadFrame reads one message frame from r.
// Wire format: [4 bytes LE: payload length][payload].
func ReadFrame(r io.Reader, maxSize int) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	n := int(binary.LittleEndian.Uint32(header[:]))
	if n == 0 {
		return nil, ErrEmptyFrame
	}
	if maxSize > 0 && n > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, maxSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", n, err)
	}
	return payload, nil
}

// WriteFrame writes one message frame to w in a single Write call.
func WriteFrame(w io.Writer, data []byte, maxSize int) error {
	if len(data) == 0 {
		return ErrEmptyFrame
	}
	if maxSize > 0 && len(data) > maxSize {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(data), maxSize)
	}
	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(data)))
	copy(buf[4:], data)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
